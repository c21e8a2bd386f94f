package oracle

import (
	"context"
	"sync"

	"github.com/loomlabs/loom/core"
)

// Scripted is a deterministic Oracle fed with a fixed response sequence.
// Useful for tests, examples and offline dry runs. Once the script runs out
// every further call returns an is_error response.
type Scripted struct {
	mu        sync.Mutex
	responses []core.OracleResponse
	requests  []Request
}

// NewScripted creates a scripted oracle returning the given responses in
// order.
func NewScripted(responses ...core.OracleResponse) *Scripted {
	return &Scripted{responses: responses}
}

// Complete pops the next scripted response and records the request for later
// inspection.
func (s *Scripted) Complete(_ context.Context, req Request) (core.OracleResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return core.OracleResponse{IsError: true, ErrorMessage: "scripted oracle exhausted"}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// Requests returns a copy of every request seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Remaining returns how many scripted responses are left.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

// TextResponse is a convenience constructor for a final-answer response.
func TextResponse(text string) core.OracleResponse {
	return core.OracleResponse{Content: text}
}

// ToolCallResponse is a convenience constructor for a tool-call response.
func ToolCallResponse(id, name string, args map[string]any, reason string) core.OracleResponse {
	return core.OracleResponse{
		Reason:   reason,
		ToolCall: &core.OracleToolCall{ID: id, Name: name, Args: args},
	}
}
