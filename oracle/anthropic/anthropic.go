// Package anthropic adapts the Anthropic Messages API (including tool use)
// to the oracle.Oracle contract.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/oracle"
)

// Options configures the adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Retry       oracle.RetryPolicy
}

// Oracle wraps the Anthropic Messages API behind oracle.Oracle.
type Oracle struct {
	client *anthropic.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an Anthropic-backed oracle using the official client.
func New(optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Retry:       oracle.DefaultRetryPolicy,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic-backed oracle from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Retry:       oracle.DefaultRetryPolicy,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Complete runs one Messages round-trip with retries. Exhausted retries come
// back as an is_error response, never as a raised fault.
func (o *Oracle) Complete(ctx context.Context, req oracle.Request) (core.OracleResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       o.model(req),
		Messages:    buildMessages(req),
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	var resp *anthropic.Message
	err := o.opts.Retry.Do(ctx, func() error {
		var apiErr error
		resp, apiErr = o.client.Messages.New(ctx, params)
		return apiErr
	})
	if err != nil {
		return oracle.ErrorResponse(fmt.Errorf("anthropic api error: %w", err)), nil
	}
	return decode(resp), nil
}

func (o *Oracle) model(req oracle.Request) anthropic.Model {
	if req.Model != "" {
		return anthropic.Model(req.Model)
	}
	return o.opts.Model
}

func buildMessages(req oracle.Request) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, m := range oracle.Transcript(req.Context) {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
	return messages
}

func buildTools(tools []oracle.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if t.Parameters != nil {
			if properties, ok := t.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
			inputSchema.Required = requiredNames(t.Parameters["required"])
		}
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: inputSchema,
			},
		}
	}
	return out
}

// requiredNames normalizes the schema's required list, which may be either
// []string or []any depending on where the schema came from.
func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		var out []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func decode(resp *anthropic.Message) core.OracleResponse {
	var out core.OracleResponse
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if out.Content == "" {
				out.Content = textBlock.Text
			} else {
				out.Content += "\n" + textBlock.Text
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := map[string]any{}
			if toolBlock.Input != nil {
				if raw, err := json.Marshal(toolBlock.Input); err == nil {
					_ = json.Unmarshal(raw, &args)
				}
			}
			out.ToolCall = &core.OracleToolCall{
				ID:   toolBlock.ID,
				Name: toolBlock.Name,
				Args: args,
			}
		}
	}
	if out.ToolCall != nil && out.Content != "" {
		// Text preceding a tool_use block is the model's stated reason.
		out.Reason = out.Content
		out.Content = ""
	}
	return out
}
