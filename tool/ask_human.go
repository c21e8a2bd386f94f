package tool

import (
	"context"

	"github.com/loomlabs/loom/core"
)

// AskHumanTool suspends the calling agent until a human answers. The
// question rides on the tool result as a nested AskHuman, so the suspension
// survives process restarts like any other interaction.
type AskHumanTool struct{}

var _ Handler = (*AskHumanTool)(nil)

// NewAskHumanTool creates the ask_human builtin.
func NewAskHumanTool() *AskHumanTool { return &AskHumanTool{} }

func (t *AskHumanTool) Name() string { return "ask_human" }

func (t *AskHumanTool) Description() string {
	return "Ask the human operator a question and wait for their answer. Use when a " +
		"decision needs human judgment or missing information only they can supply."
}

func (t *AskHumanTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question to put to the human",
			},
		},
		"required": []string{"question"},
	}
}

func (t *AskHumanTool) Call(_ context.Context, _ *Context, args map[string]any) (Response, error) {
	question, _ := args["question"].(string)
	return Response{
		Content:  "waiting for human input",
		AskHuman: &core.AskHuman{Question: question},
	}, nil
}
