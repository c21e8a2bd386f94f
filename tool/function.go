package tool

import (
	"context"

	"github.com/loomlabs/loom/internal/util"
)

// FunctionTool exposes a plain Go function as a Handler. The registry
// validates arguments against the declared schema before the function runs,
// so implementations can assume well-typed args. A FunctionTool has no
// mutable state and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, tctx *Context, args map[string]any) (Response, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, tctx *Context, args map[string]any) (Response, error),
) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// reflection, for simple argument containers.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, tctx *Context, args map[string]any) (Response, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.SchemaFromStruct(structType), fn)
}

var _ Handler = (*FunctionTool)(nil)

func (t *FunctionTool) Name() string { return t.name }

func (t *FunctionTool) Description() string { return t.description }

func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

func (t *FunctionTool) Call(ctx context.Context, tctx *Context, args map[string]any) (Response, error) {
	return t.fn(ctx, tctx, args)
}
