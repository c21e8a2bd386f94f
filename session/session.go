package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loomlabs/loom/agent"
	"github.com/loomlabs/loom/artifact"
	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/logging"
	"github.com/loomlabs/loom/tool"
)

// Session owns a set of agents over one shared arena and blackboard and
// schedules them to quiescence. Each agent's stack is only ever mutated by
// that agent's own step; the session serializes everything else (spawning,
// delegation resolution, human input) between waves.
type Session struct {
	id        string
	env       *Environment
	journal   *core.Journal
	arena     *core.Arena
	board     *core.Blackboard
	artifacts *artifact.Registry
	logger    logging.Logger

	mu     sync.Mutex
	agents map[string]*agent.Agent
	order  []string
}

// New creates an empty session, durably recording its creation.
func New(env *Environment) (*Session, error) {
	return newWithID(env, uuid.NewString())
}

func newWithID(env *Environment, id string) (*Session, error) {
	journal := core.NewJournal(env.store, id)
	s := &Session{
		id:        id,
		env:       env,
		journal:   journal,
		arena:     core.NewArena(),
		board:     core.NewBlackboard(),
		artifacts: artifact.NewRegistry(journal),
		logger:    env.logger,
		agents:    make(map[string]*agent.Agent),
	}
	if err := journal.RecordSession(); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Artifacts returns the session's artifact registry.
func (s *Session) Artifacts() *artifact.Registry { return s.artifacts }

// Board returns the shared blackboard.
func (s *Session) Board() *core.Blackboard { return s.board }

// Agent returns a registered agent by id.
func (s *Session) Agent(id string) (*agent.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	return a, ok
}

// AgentIDs returns the registered agent ids in spawn order.
func (s *Session) AgentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *Session) deps() agent.Deps {
	return agent.Deps{
		Oracle:    s.env.oracle,
		Tools:     s.env.tools,
		Renderer:  s.env.renderer,
		Board:     s.board,
		Artifacts: s.artifacts,
		Defs:      s.env.defs,
		Logger:    s.logger,
	}
}

// Spawn creates a top-level agent for (config, task) and registers it for
// scheduling. Parameter problems fail fast before anything is recorded.
func (s *Session) Spawn(configName, taskName string, params map[string]any) (string, error) {
	cfg, err := s.env.defs.Configs.MustGet(configName, "config")
	if err != nil {
		return "", err
	}
	task, err := s.env.defs.Tasks.MustGet(taskName, "task")
	if err != nil {
		return "", err
	}
	if _, err := task.BindParams(params); err != nil {
		return "", err
	}

	agentID := uuid.NewString()
	err = s.journal.RecordAgent(core.AgentRecord{
		AgentID: agentID,
		Config:  cfg.Name,
		Task:    task.Name,
		Params:  params,
	})
	if err != nil {
		return "", err
	}

	stack := core.NewStack(agentID, s.arena, s.journal)
	a, err := agent.New(agentID, cfg, task, params, stack, s.deps())
	if err != nil {
		return "", err
	}
	s.register(a)
	s.logger.Info("agent spawned", "session_id", s.id, "agent_id", agentID,
		"config", cfg.Name, "task", task.Name)
	return agentID, nil
}

func (s *Session) register(a *agent.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID()] = a
	s.order = append(s.order, a.ID())
}

// Run drives every agent to quiescence: concurrent waves of one step per
// runnable agent, with delegation resolution, fork resolution and completion
// delivery serialized between waves. Returns nil when all agents are
// terminal, a StuckSessionError when unresolved suspensions remain with no
// runnable agent, and a CancelledError when the context ends first.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return s.cancelled(err)
		}
		// Resolve finished children first so a resumed stream with a
		// deliverable completion never reports itself stuck.
		if err := s.deliverCompletions(); err != nil {
			return err
		}

		runnable := s.runnable()
		if len(runnable) == 0 {
			blocked := s.blocked()
			if len(blocked) == 0 {
				s.logger.Info("session quiescent", "session_id", s.id)
				return nil
			}
			if s.answerHumans(ctx, blocked) {
				continue
			}
			details := make([]core.BlockedAgent, len(blocked))
			for i, a := range blocked {
				details[i] = a.BlockedDetail()
			}
			return &core.StuckSessionError{SessionID: s.id, Blocked: details}
		}

		results := make([]agent.StepResult, len(runnable))
		g, gctx := errgroup.WithContext(ctx)
		for i, a := range runnable {
			g.Go(func() error {
				res, err := a.Step(gctx)
				if err != nil {
					return fmt.Errorf("agent %s: %w", a.ID(), err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return s.cancelled(err)
			}
			return err
		}

		for i, res := range results {
			parent := runnable[i]
			if res.Delegation != nil {
				if err := s.spawnChild(parent, *res.Delegation); err != nil {
					return err
				}
			}
			if res.Fork != nil {
				if err := s.spawnFork(parent, *res.Fork); err != nil {
					return err
				}
			}
		}
	}
}

// runnable returns agents that are neither terminal nor blocked.
func (s *Session) runnable() []*agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*agent.Agent
	for _, id := range s.order {
		a := s.agents[id]
		if a.Terminal() {
			continue
		}
		if _, blocked := a.Blocked(); blocked {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *Session) blocked() []*agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*agent.Agent
	for _, id := range s.order {
		if _, blocked := s.agents[id].Blocked(); blocked {
			out = append(out, s.agents[id])
		}
	}
	return out
}

// spawnChild executes the delegation protocol: create the child agent, then
// append AgentCall and Waiting to the parent in the same logical step.
func (s *Session) spawnChild(parent *agent.Agent, d tool.Delegation) error {
	cfg, err := s.env.defs.Configs.MustGet(d.Config, "config")
	if err != nil {
		return s.failDelegation(parent, d, err)
	}
	task, err := s.env.defs.Tasks.MustGet(d.Task.Name, "task")
	if err != nil {
		return s.failDelegation(parent, d, err)
	}
	if _, err := task.BindParams(d.Task.Params); err != nil {
		return s.failDelegation(parent, d, err)
	}

	childID := uuid.NewString()
	err = s.journal.RecordAgent(core.AgentRecord{
		AgentID:  childID,
		Config:   cfg.Name,
		Task:     task.Name,
		Params:   d.Task.Params,
		ParentID: parent.ID(),
	})
	if err != nil {
		return err
	}

	childStack := core.NewStack(childID, s.arena, s.journal)
	child, err := agent.New(childID, cfg, task, d.Task.Params, childStack, s.deps())
	if err != nil {
		// The delegation request itself was malformed: record the failure
		// on the parent so its reasoning can react, instead of wedging it
		// on a Waiting that can never resolve.
		return s.failDelegation(parent, d, err)
	}

	if _, err := parent.Stack().Push(core.AgentCall{
		Config:  d.Config,
		Task:    core.TaskSpec{Name: d.Task.Name, Params: d.Task.Params},
		ChildID: childID,
	}); err != nil {
		return err
	}
	if _, err := parent.Stack().Push(core.Waiting{
		Status: "waiting",
		Condition: core.WaitCondition{
			Evaluator: core.EvaluatorAgentResult,
			Params:    map[string]any{"child_id": childID},
		},
		ResumeHint: "delegated " + d.Task.Name + " to " + d.Config,
	}); err != nil {
		return err
	}

	s.register(child)
	s.logger.Info("delegation resolved", "session_id", s.id,
		"parent_id", parent.ID(), "child_id", childID,
		"config", d.Config, "task", d.Task.Name)
	return nil
}

// failDelegation surfaces a failed delegation as an is_error tool result on
// the parent stack.
func (s *Session) failDelegation(parent *agent.Agent, d tool.Delegation, cause error) error {
	callID := uuid.NewString()
	if tail, ok := parent.Stack().Tail(); ok {
		if tc, isCall := tail.Payload.(core.ToolCall); isCall {
			callID = tc.CallID
		}
	}
	_, err := parent.Stack().Push(core.ToolResult{
		Tool:         "delegate",
		CallID:       callID,
		IsError:      true,
		ErrorMessage: fmt.Sprintf("delegation to %s/%s failed: %v", d.Config, d.Task.Name, cause),
	})
	return err
}

// spawnFork resolves a branch request: fork the parent stack just before its
// branch ToolResult so the child records its own result under the new
// branch tag, then register the branch agent as an independent peer.
func (s *Session) spawnFork(parent *agent.Agent, f tool.ForkRequest) error {
	forkID := uuid.NewString()
	at := parent.Stack().Len() - 1
	childStack, err := parent.Stack().Fork(at, forkID, f.Branch)
	if err != nil {
		return err
	}

	err = s.journal.RecordAgent(core.AgentRecord{
		AgentID:   forkID,
		Config:    parent.Config().Name,
		Task:      parent.Task().Name,
		ParentID:  parent.ID(),
		Branch:    f.Branch,
		PrefixIDs: childStack.IDs(),
	})
	if err != nil {
		return err
	}

	result := fmt.Sprintf("you are exploring branch %q", f.Branch)
	if f.Instruction != "" {
		result += ": " + f.Instruction
	}
	callID := uuid.NewString()
	if it, ok := childStack.Tail(); ok {
		if tc, isCall := it.Payload.(core.ToolCall); isCall {
			callID = tc.CallID
		}
	}
	if _, err := childStack.Push(core.ToolResult{
		Tool:   "branch",
		CallID: callID,
		Result: result,
	}); err != nil {
		return err
	}

	child := agent.Resume(forkID, parent.Config(), parent.Task(), childStack, s.deps())
	s.register(child)
	s.logger.Info("branch forked", "session_id", s.id,
		"parent_id", parent.ID(), "branch_id", forkID, "branch", f.Branch)
	return nil
}

// deliverCompletions appends exactly one AgentResult to every Waiting whose
// child has reached a TaskResult. Delivery happens between waves, so it is
// observed happens-before the parent's next step. A parent whose tail
// already moved past its Waiting is never delivered twice.
func (s *Session) deliverCompletions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		waiter := s.agents[id]
		tail, ok := waiter.Stack().Tail()
		if !ok {
			continue
		}
		waiting, isWaiting := tail.Payload.(core.Waiting)
		if !isWaiting {
			continue
		}
		childID := waiting.Condition.ChildID()
		if childID == "" {
			continue
		}
		child, ok := s.agents[childID]
		if !ok || !child.Terminal() {
			continue
		}
		resultIt, ok := child.Stack().LastOfKind(core.KindTaskResult)
		if !ok {
			continue
		}
		if _, err := waiter.Stack().Push(core.AgentResult{
			ChildID:  childID,
			ResultID: resultIt.ID,
		}); err != nil {
			return err
		}
		s.logger.Debug("agent result delivered", "session_id", s.id,
			"parent_id", waiter.ID(), "child_id", childID, "result_id", resultIt.ID)
	}
	return nil
}

// answerHumans asks the configured responder to answer interactive agents
// blocked on AskHuman. Returns true if at least one agent was unblocked.
func (s *Session) answerHumans(ctx context.Context, blocked []*agent.Agent) bool {
	if s.env.responder == nil {
		return false
	}
	answered := false
	for _, a := range blocked {
		kind, _ := a.Blocked()
		if kind != core.KindAskHuman || !a.Config().Interactive {
			continue
		}
		tail, _ := a.Stack().Tail()
		ask, ok := tail.Payload.(core.AskHuman)
		if !ok {
			continue
		}
		answer, err := s.env.responder(ctx, a.ID(), ask.Question)
		if err != nil {
			s.logger.Warn("human responder failed", "agent_id", a.ID(), "error", err.Error())
			continue
		}
		if _, err := a.Stack().Push(core.HumanResponse{Response: answer}); err != nil {
			s.logger.Warn("human response rejected", "agent_id", a.ID(), "error", err.Error())
			continue
		}
		answered = true
	}
	return answered
}

// ProvideHumanResponse resumes an agent blocked on AskHuman with an
// externally supplied answer.
func (s *Session) ProvideHumanResponse(agentID, response string) error {
	a, ok := s.Agent(agentID)
	if !ok {
		return fmt.Errorf("unknown agent %s", agentID)
	}
	tail, ok := a.Stack().Tail()
	if !ok || tail.Kind() != core.KindAskHuman {
		return fmt.Errorf("agent %s is not waiting for human input", agentID)
	}
	_, err := a.Stack().Push(core.HumanResponse{Response: response})
	return err
}

// ProvideExternalInput injects out-of-band input into an agent's history.
// Not allowed while the agent is suspended on a Waiting (only the session
// resolves those) or mid oracle round-trip.
func (s *Session) ProvideExternalInput(agentID, source string, input any) error {
	a, ok := s.Agent(agentID)
	if !ok {
		return fmt.Errorf("unknown agent %s", agentID)
	}
	tail, ok := a.Stack().Tail()
	if ok {
		switch tail.Kind() {
		case core.KindWaiting, core.KindAskOracle:
			return fmt.Errorf("agent %s cannot accept external input at %s", agentID, tail.Kind())
		}
	}
	_, err := a.Stack().Push(core.ExternalInput{Source: source, Input: input})
	return err
}

// cancelled builds the cancellation report: every outstanding suspension is
// listed, never silently finalized.
func (s *Session) cancelled(cause error) error {
	blocked := s.blocked()
	details := make([]core.BlockedAgent, len(blocked))
	for i, a := range blocked {
		details[i] = a.BlockedDetail()
	}
	s.logger.Warn("session cancelled", "session_id", s.id, "unresolved", len(details))
	return &core.CancelledError{SessionID: s.id, Waiting: details, Err: cause}
}

// Results returns the final TaskResult of every terminal agent, keyed by
// agent id.
func (s *Session) Results() map[string]core.TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.TaskResult)
	for id, a := range s.agents {
		if !a.Terminal() {
			continue
		}
		if it, ok := a.Stack().LastOfKind(core.KindTaskResult); ok {
			if tr, isTR := it.Payload.(core.TaskResult); isTR {
				out[id] = tr
			}
		}
	}
	return out
}
