package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loomlabs/loom/internal/util"
	"github.com/loomlabs/loom/oracle"
)

// Registry routes tool invocations by name. Registration happens at wiring
// time; dispatch is read-only and safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a registry preloaded with the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, h := range handlers {
		r.handlers[h.Name()] = h
	}
	return r
}

// Register adds or replaces a handler.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

// Get returns the handler for name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions builds the oracle-facing declarations for the named tools.
// Unknown names are skipped so a config can list tools that are only
// registered in some deployments.
func (r *Registry) Definitions(names []string) []oracle.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]oracle.ToolDefinition, 0, len(names))
	for _, name := range names {
		h, ok := r.handlers[name]
		if !ok {
			continue
		}
		out = append(out, oracle.ToolDefinition{
			Name:        h.Name(),
			Description: h.Description(),
			Parameters:  h.Parameters(),
		})
	}
	return out
}

// Builtins returns the standard tool set: delegation, branching, shared
// state, human input and artifact access.
func Builtins() []Handler {
	return []Handler{
		NewDelegateTool(),
		NewBranchTool(),
		NewSharedStateTool(),
		NewAskHumanTool(),
		NewSaveArtifactTool(),
		NewArtifactFeedbackTool(),
	}
}

// Dispatch validates args against the handler's schema and invokes it. Every
// failure mode (unknown tool, schema mismatch, handler error) is an is_error
// Response, never a returned error.
func (r *Registry) Dispatch(ctx context.Context, tctx *Context, name string, args map[string]any) Response {
	h, ok := r.Get(name)
	if !ok {
		return ErrorResponse(fmt.Sprintf("unknown tool %q", name))
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := util.ValidateArgs(args, h.Parameters()); err != nil {
		return ErrorResponse(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}

	start := time.Now()
	resp, err := h.Call(ctx, tctx, args)
	if err != nil {
		resp = ErrorResponse(err.Error())
	}
	tctx.Logger().Debug("tool dispatched",
		"tool", name,
		"call_id", tctx.CallID,
		"is_error", resp.IsError,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp
}
