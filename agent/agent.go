// Package agent implements the step loop that drives one stack forward: a
// state machine over the stack's tail kind, plus the config state machine
// that can swap template, tools or model mid-run.
package agent

import (
	"github.com/loomlabs/loom/artifact"
	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/logging"
	"github.com/loomlabs/loom/oracle"
	"github.com/loomlabs/loom/prompt"
	"github.com/loomlabs/loom/registry"
	"github.com/loomlabs/loom/tool"
)

// Deps bundles the collaborators an agent needs to step. All fields are
// shared across agents and must be safe for concurrent use.
type Deps struct {
	Oracle    oracle.Oracle
	Tools     *tool.Registry
	Renderer  *prompt.Renderer
	Board     *core.Blackboard
	Artifacts *artifact.Registry
	Defs      *registry.Set
	Logger    logging.Logger
}

func (d Deps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NoOpLogger{}
	}
	return d.Logger
}

// Agent owns exactly one stack and a pointer to its current config. The
// config starts as a copy of the registered definition and may be swapped
// forward by transition rules; past interactions are never rewritten.
//
// An agent's stack is mutated only by its own Step, never concurrently.
type Agent struct {
	id    string
	cfg   registry.ConfigDef
	task  registry.TaskDef
	stack *core.Stack
	deps  Deps
	acl   core.NamespaceSet

	oracleCalls int
	fired       map[int]bool
}

// New creates an agent for (config, task), binds the task parameters and
// opens its history with a TaskDefinition. Malformed parameters fail fast
// with a ValidationError before anything is committed.
func New(id string, cfg registry.ConfigDef, task registry.TaskDef, params map[string]any, stack *core.Stack, deps Deps) (*Agent, error) {
	bound, err := task.BindParams(params)
	if err != nil {
		return nil, err
	}
	rendered, err := prompt.RenderText(task.Prompt, bound)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		id:    id,
		cfg:   cfg,
		task:  task,
		stack: stack,
		deps:  deps,
		acl:   cfg.NamespaceSet(),
		fired: make(map[int]bool),
	}
	if err := a.push(core.TaskDefinition{
		Task:        task.Name,
		Description: task.Description,
		Prompt:      rendered,
		Params:      bound,
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// Resume rebuilds an agent around an already-populated stack, without
// pushing anything. Config transitions are re-derived by replaying the rule
// table over the existing history, so a resumed agent carries the same
// active config it had when the stream was written.
func Resume(id string, cfg registry.ConfigDef, task registry.TaskDef, stack *core.Stack, deps Deps) *Agent {
	a := &Agent{
		id:    id,
		cfg:   cfg,
		task:  task,
		stack: stack,
		deps:  deps,
		acl:   cfg.NamespaceSet(),
		fired: make(map[int]bool),
	}
	for _, it := range stack.Interactions() {
		if it.Kind() == core.KindAskOracle {
			a.oracleCalls++
		}
		a.applyTransitions(it)
	}
	return a
}

// ID returns the agent's id.
func (a *Agent) ID() string { return a.id }

// Stack returns the agent's stack.
func (a *Agent) Stack() *core.Stack { return a.stack }

// Config returns the currently active config.
func (a *Agent) Config() registry.ConfigDef { return a.cfg }

// Task returns the task the agent is currently working on.
func (a *Agent) Task() registry.TaskDef { return a.task }

// Terminal reports whether the agent is done: tail is a TaskResult with no
// chained task remaining.
func (a *Agent) Terminal() bool {
	tail, ok := a.stack.Tail()
	if !ok {
		return false
	}
	if tail.Kind() != core.KindTaskResult {
		return false
	}
	return a.nextSequenceIndex() >= len(a.task.TaskSequence)
}

// Blocked reports whether the agent is suspended on external input, and on
// what.
func (a *Agent) Blocked() (core.Kind, bool) {
	tail, ok := a.stack.Tail()
	if !ok {
		return "", false
	}
	switch tail.Kind() {
	case core.KindAskHuman, core.KindWaiting:
		return tail.Kind(), true
	}
	return "", false
}

// BlockedDetail describes what the agent is blocked on, for stuck-session
// reporting.
func (a *Agent) BlockedDetail() core.BlockedAgent {
	tail, _ := a.stack.Tail()
	detail := ""
	switch p := tail.Payload.(type) {
	case core.AskHuman:
		detail = p.Question
	case core.Waiting:
		detail = p.Condition.Evaluator
		if child := p.Condition.ChildID(); child != "" {
			detail += " child=" + child
		}
	}
	return core.BlockedAgent{AgentID: a.id, Kind: tail.Kind(), Detail: detail}
}

// push appends a payload to the stack and evaluates config transitions
// against the new tail.
func (a *Agent) push(p core.Payload) error {
	id, err := a.stack.Push(p)
	if err != nil {
		return err
	}
	if p.Kind() == core.KindAskOracle {
		a.oracleCalls++
	}
	it, _ := a.stack.Lookup(id)
	a.applyTransitions(it)
	return nil
}

// rootDefinition returns the newest TaskDefinition on the stack.
func (a *Agent) rootDefinition() (core.TaskDefinition, bool) {
	it, ok := a.stack.LastOfKind(core.KindTaskDefinition)
	if !ok {
		return core.TaskDefinition{}, false
	}
	td, ok := it.Payload.(core.TaskDefinition)
	return td, ok
}

// nextSequenceIndex returns the position in the task_sequence the next
// chained task would occupy.
func (a *Agent) nextSequenceIndex() int {
	it, ok := a.stack.LastOfKind(core.KindTaskChain)
	if !ok {
		return 0
	}
	chain, ok := it.Payload.(core.TaskChain)
	if !ok {
		return 0
	}
	return chain.Index + 1
}
