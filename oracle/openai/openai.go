// Package openai adapts the OpenAI Chat Completions API (including
// function/tool calling) to the oracle.Oracle contract.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/oracle"
)

// Options configures the adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	Retry               oracle.RetryPolicy
}

// Oracle wraps the OpenAI Chat Completions API behind oracle.Oracle.
type Oracle struct {
	client *openai.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an OpenAI-backed oracle using the official client (API key from
// the environment).
func New(optFns ...func(o *Options)) *Oracle {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI-backed oracle from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Retry:               oracle.DefaultRetryPolicy,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Complete runs one chat completion with retries. Exhausted retries come back
// as an is_error response, never as a raised fault.
func (o *Oracle) Complete(ctx context.Context, req oracle.Request) (core.OracleResponse, error) {
	params := o.buildParams(req)

	var resp *openai.ChatCompletion
	err := o.opts.Retry.Do(ctx, func() error {
		var apiErr error
		resp, apiErr = o.client.Chat.Completions.New(ctx, params)
		if apiErr != nil {
			return apiErr
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices returned")
		}
		return nil
	})
	if err != nil {
		return oracle.ErrorResponse(fmt.Errorf("openai api error: %w", err)), nil
	}
	return decode(resp), nil
}

func (o *Oracle) buildParams(req oracle.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range oracle.Transcript(req.Context) {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Text))
		} else {
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	model := o.opts.Model
	if req.Model != "" {
		model = req.Model
	}
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               model,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

func decode(resp *openai.ChatCompletion) core.OracleResponse {
	msg := resp.Choices[0].Message
	out := core.OracleResponse{Content: msg.Content}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		out.ToolCall = &core.OracleToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}
		if out.Content != "" {
			out.Reason = out.Content
			out.Content = ""
		}
	}
	return out
}
