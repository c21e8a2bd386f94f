package tool

import (
	"context"
	"fmt"
)

// BranchTool forks the calling agent's stack at its current tail into an
// independent branch agent. The two sides share their history up to the fork
// point and diverge freely afterwards; reconciling their outcomes is up to
// the application.
type BranchTool struct{}

var _ Handler = (*BranchTool)(nil)

// NewBranchTool creates the branch builtin.
func NewBranchTool() *BranchTool { return &BranchTool{} }

func (t *BranchTool) Name() string { return "branch" }

func (t *BranchTool) Description() string {
	return "Fork the current line of work into a parallel branch that explores an " +
		"alternative approach. Both sides continue independently."
}

func (t *BranchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"branch": map[string]any{
				"type":        "string",
				"description": "Tag naming the new branch",
			},
			"instruction": map[string]any{
				"type":        "string",
				"description": "What the branch should explore differently",
			},
		},
		"required": []string{"branch"},
	}
}

func (t *BranchTool) Call(_ context.Context, tctx *Context, args map[string]any) (Response, error) {
	branch, _ := args["branch"].(string)
	instruction, _ := args["instruction"].(string)

	tctx.Fork(branch, instruction)
	return TextResponse(fmt.Sprintf("forked branch %q", branch)), nil
}
