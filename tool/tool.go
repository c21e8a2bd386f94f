// Package tool implements the tool-calling subsystem: named handlers with
// schema-validated arguments, a dispatch registry, and the builtin tools
// that exercise delegation, branching, shared state, human input and the
// artifact registry.
//
// Tool failures are data, never control flow: a handler error, a schema
// mismatch or an unknown tool name all come back as an is_error Response the
// agent records and the oracle can reason about on the next round-trip.
package tool

import (
	"context"

	"github.com/loomlabs/loom/core"
)

// Handler is one invokable tool. Implementations must be safe for
// concurrent use; the same handler may serve many agents at once.
type Handler interface {
	// Name returns the unique tool identifier (snake_case).
	Name() string

	// Description is the natural-language summary exposed to the oracle.
	Description() string

	// Parameters returns a minimal JSON schema for the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with already-validated arguments. An error
	// return is converted to an is_error Response by the dispatcher; handlers
	// may also build the error Response themselves for richer messages.
	Call(ctx context.Context, tctx *Context, args map[string]any) (Response, error)
}

// Response is the outcome of one tool invocation. NextTool requests a
// follow-up invocation without an oracle round-trip; AskHuman suspends the
// agent for human input. The two are mutually exclusive.
type Response struct {
	Content      any
	IsError      bool
	ErrorMessage string
	NextTool     string
	NextToolArgs map[string]any
	AskHuman     *core.AskHuman
}

// ErrorResponse builds an is_error Response from a failure message.
func ErrorResponse(msg string) Response {
	return Response{IsError: true, ErrorMessage: msg}
}

// TextResponse builds a plain success Response.
func TextResponse(content any) Response {
	return Response{Content: content}
}

// ToolResult converts a Response into the interaction payload recorded on
// the stack.
func (r Response) ToolResult(toolName, callID string) core.ToolResult {
	return core.ToolResult{
		Tool:         toolName,
		CallID:       callID,
		Result:       r.Content,
		IsError:      r.IsError,
		ErrorMessage: r.ErrorMessage,
		NextTool:     r.NextTool,
		NextToolArgs: r.NextToolArgs,
		AskHuman:     r.AskHuman,
	}
}
