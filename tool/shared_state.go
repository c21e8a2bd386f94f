package tool

import (
	"context"
	"fmt"

	"github.com/loomlabs/loom/core"
)

// SharedStateTool gives agents blackboard access as a tool call: get, set
// and key listing over namespaced shared state. Namespace grants are
// enforced by the blackboard itself; a denial comes back as an is_error
// result, leaving the blackboard untouched.
type SharedStateTool struct{}

var _ Handler = (*SharedStateTool)(nil)

// NewSharedStateTool creates the shared_state builtin.
func NewSharedStateTool() *SharedStateTool { return &SharedStateTool{} }

func (t *SharedStateTool) Name() string { return "shared_state" }

func (t *SharedStateTool) Description() string {
	return "Read or write shared session state. Operations: get, set, keys. " +
		"State lives in namespaces; omit the namespace to use \"common\"."
}

func (t *SharedStateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"op": map[string]any{
				"type":        "string",
				"description": "One of get, set, keys",
			},
			"namespace": map[string]any{
				"type":        "string",
				"description": "Target namespace (defaults to common)",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key (required for get and set)",
			},
			"value": map[string]any{
				"description": "Value to store (required for set)",
			},
		},
		"required": []string{"op"},
	}
}

func (t *SharedStateTool) Call(_ context.Context, tctx *Context, args map[string]any) (Response, error) {
	op, _ := args["op"].(string)
	namespace, _ := args["namespace"].(string)
	if namespace == "" {
		namespace = core.NamespaceCommon
	}
	key, _ := args["key"].(string)

	switch op {
	case "get":
		if key == "" {
			return ErrorResponse("get requires a key"), nil
		}
		value, ok, err := tctx.GetState(namespace, key)
		if err != nil {
			return ErrorResponse(err.Error()), nil
		}
		if !ok {
			return ErrorResponse(fmt.Sprintf("key %q not set in namespace %q", key, namespace)), nil
		}
		return TextResponse(value), nil
	case "set":
		if key == "" {
			return ErrorResponse("set requires a key"), nil
		}
		value, ok := args["value"]
		if !ok {
			return ErrorResponse("set requires a value"), nil
		}
		if err := tctx.SetState(namespace, key, value); err != nil {
			return ErrorResponse(err.Error()), nil
		}
		return TextResponse(fmt.Sprintf("stored %s/%s", namespace, key)), nil
	case "keys":
		keys, err := tctx.StateKeys(namespace)
		if err != nil {
			return ErrorResponse(err.Error()), nil
		}
		return TextResponse(keys), nil
	default:
		return ErrorResponse(fmt.Sprintf("unknown op %q", op)), nil
	}
}
