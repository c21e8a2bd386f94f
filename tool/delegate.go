package tool

import (
	"context"
	"fmt"

	"github.com/loomlabs/loom/core"
)

// DelegateTool hands a task to a child agent running under another config.
// The calling agent suspends on a Waiting marker until the child finishes;
// the session delivers the child's TaskResult back as an AgentResult.
type DelegateTool struct{}

var _ Handler = (*DelegateTool)(nil)

// NewDelegateTool creates the delegate builtin.
func NewDelegateTool() *DelegateTool { return &DelegateTool{} }

func (t *DelegateTool) Name() string { return "delegate" }

func (t *DelegateTool) Description() string {
	return "Delegate a task to a specialized sub-agent. The sub-agent runs the named task " +
		"under the named config and its result is delivered back when it finishes."
}

func (t *DelegateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"config": map[string]any{
				"type":        "string",
				"description": "Name of the agent config to run the sub-agent under",
			},
			"task": map[string]any{
				"type":        "string",
				"description": "Name of the task to delegate",
			},
			"params": map[string]any{
				"type":        "object",
				"description": "Parameters bound to the delegated task",
			},
		},
		"required": []string{"config", "task"},
	}
}

func (t *DelegateTool) Call(_ context.Context, tctx *Context, args map[string]any) (Response, error) {
	config, _ := args["config"].(string)
	task, _ := args["task"].(string)
	params, _ := args["params"].(map[string]any)

	tctx.Delegate(config, core.TaskSpec{Name: task, Params: params})
	return TextResponse(fmt.Sprintf("delegating task %q to config %q", task, config)), nil
}
