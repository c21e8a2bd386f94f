// Package session implements the multi-agent scheduler: sessions own a map
// of agents, drive them to quiescence in concurrent waves, resolve the
// delegation protocol (AgentCall / Waiting / AgentResult) and mediate human
// input. Replay rebuilds a session from its persisted record stream.
package session

import (
	"context"
	"fmt"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/logging"
	"github.com/loomlabs/loom/oracle"
	"github.com/loomlabs/loom/prompt"
	"github.com/loomlabs/loom/registry"
	"github.com/loomlabs/loom/storage/memory"
	"github.com/loomlabs/loom/tool"
)

// HumanResponder supplies answers for agents whose config is interactive and
// whose stack is blocked on AskHuman. Returning an error leaves the agent
// blocked.
type HumanResponder func(ctx context.Context, agentID, question string) (string, error)

// Environment bundles the immutable collaborators shared by every session:
// the declarative registries, the record store, the oracle, the tool
// registry and the template renderer. Registries are read-only after load
// and need no synchronization.
type Environment struct {
	defs      *registry.Set
	store     core.Store
	oracle    oracle.Oracle
	tools     *tool.Registry
	renderer  *prompt.Renderer
	logger    logging.Logger
	responder HumanResponder
}

// Option customizes an Environment.
type Option func(*Environment)

// WithStore sets the record store. Defaults to the in-memory store.
func WithStore(s core.Store) Option {
	return func(e *Environment) { e.store = s }
}

// WithOracle sets the completion collaborator.
func WithOracle(o oracle.Oracle) Option {
	return func(e *Environment) { e.oracle = o }
}

// WithTools sets the tool registry. Defaults to the builtin tool set.
func WithTools(t *tool.Registry) Option {
	return func(e *Environment) { e.tools = t }
}

// WithLogger sets the logger. Defaults to no-op.
func WithLogger(l logging.Logger) Option {
	return func(e *Environment) { e.logger = l }
}

// WithHumanResponder sets the callback used to answer interactive agents
// blocked on AskHuman.
func WithHumanResponder(r HumanResponder) Option {
	return func(e *Environment) { e.responder = r }
}

// NewEnvironment builds an Environment around the loaded definitions.
func NewEnvironment(defs *registry.Set, opts ...Option) (*Environment, error) {
	if defs == nil {
		return nil, fmt.Errorf("definitions are required")
	}
	e := &Environment{
		defs:   defs,
		store:  memory.New(),
		tools:  tool.NewRegistry(tool.Builtins()...),
		logger: logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.oracle == nil {
		return nil, fmt.Errorf("an oracle is required")
	}
	renderer, err := prompt.NewRenderer(defs.Templates)
	if err != nil {
		return nil, err
	}
	e.renderer = renderer
	return e, nil
}

// Defs returns the loaded definition set.
func (e *Environment) Defs() *registry.Set { return e.defs }

// Store returns the record store.
func (e *Environment) Store() core.Store { return e.store }
