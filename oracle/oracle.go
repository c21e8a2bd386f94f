// Package oracle defines the language-model collaborator contract and
// adapters for it. The core never unwinds on oracle trouble: adapters own
// their retry policy and surface exhausted retries as an is_error response
// the agent can reason about.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomlabs/loom/core"
)

// ToolDefinition declaratively exposes a callable tool to the oracle.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized oracle input: the rendered prompt, the stack
// context it was rendered from, and the tools currently available.
type Request struct {
	Model   string
	Prompt  string
	Context []core.Interaction
	Tools   []ToolDefinition
}

// Oracle is the completion collaborator. Complete returns an error only for
// programmer/integrity problems; expected runtime failures (timeouts, rate
// limits, exhausted retries) come back as an OracleResponse with IsError set.
type Oracle interface {
	Complete(ctx context.Context, req Request) (core.OracleResponse, error)
}

// Message is a role-tagged line of conversation used by vendor adapters.
type Message struct {
	Role string // "user" or "assistant"
	Text string
}

// Transcript flattens prior context interactions into role-tagged messages.
// The rendered prompt itself is not included; callers append it as the final
// user message. Interactions with no conversational meaning are skipped.
func Transcript(ctx []core.Interaction) []Message {
	var out []Message
	for _, it := range ctx {
		switch p := it.Payload.(type) {
		case core.AskOracle:
			out = append(out, Message{Role: "user", Text: p.Rendered})
		case core.OracleResponse:
			text := p.Content
			if p.ToolCall != nil {
				text = fmt.Sprintf("[tool call] %s %v", p.ToolCall.Name, p.ToolCall.Args)
			}
			if p.IsError {
				text = "[error] " + p.ErrorMessage
			}
			out = append(out, Message{Role: "assistant", Text: text})
		case core.ToolResult:
			if p.IsError {
				out = append(out, Message{Role: "user", Text: fmt.Sprintf("[tool %s failed] %s", p.Tool, p.ErrorMessage)})
			} else {
				out = append(out, Message{Role: "user", Text: fmt.Sprintf("[tool %s result] %v", p.Tool, p.Result)})
			}
		case core.HumanResponse:
			out = append(out, Message{Role: "user", Text: p.Response})
		}
	}
	return collapse(out)
}

// collapse merges consecutive same-role messages; several providers reject
// back-to-back messages with the same role.
func collapse(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Text = out[n-1].Text + "\n" + m.Text
			continue
		}
		out = append(out, m)
	}
	return out
}

// ErrorResponse builds the is_error response recorded when an adapter gives
// up.
func ErrorResponse(err error) core.OracleResponse {
	msg := "oracle failed"
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	return core.OracleResponse{IsError: true, ErrorMessage: msg}
}
