package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/oracle"
	"github.com/loomlabs/loom/prompt"
	"github.com/loomlabs/loom/tool"
)

// Status classifies the outcome of one step.
type Status string

// Step outcomes.
const (
	StatusProgressed Status = "progressed" // pushed at least one interaction
	StatusBlocked    Status = "blocked"    // waiting on external input
	StatusTerminal   Status = "terminal"   // task finished, nothing chained
)

// StepResult is what one step produced. Delegation and Fork are flow-control
// requests the session resolves after the step returns; the agent itself
// never spawns other agents.
type StepResult struct {
	Status     Status
	Delegation *tool.Delegation
	Fork       *tool.ForkRequest
}

// Step advances the agent by exactly one transition of the state machine.
// The state is the kind of the stack's tail. Oracle and tool failures are
// recorded as is_error interactions rather than returned; an error return
// means a programmer or integrity problem.
func (a *Agent) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	tail, ok := a.stack.Tail()
	if !ok {
		return StepResult{}, fmt.Errorf("agent %s: empty stack", a.id)
	}

	start := time.Now()
	res, err := a.transition(ctx, tail)
	if err != nil {
		return res, err
	}
	a.deps.logger().Debug("agent stepped",
		"agent_id", a.id,
		"tail", string(tail.Kind()),
		"status", string(res.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (a *Agent) transition(ctx context.Context, tail core.Interaction) (StepResult, error) {
	switch p := tail.Payload.(type) {
	case core.TaskDefinition, core.HumanResponse, core.ExternalInput, core.AgentResult:
		return a.askOracle(ctx, tail)

	case core.AskOracle:
		// Tail left by a crash between the prompt push and the response
		// push: re-ask with the already rendered prompt.
		return a.completeOracle(ctx, p.Rendered)

	case core.OracleResponse:
		return a.onOracleResponse(ctx, tail, p)

	case core.ToolCall:
		return a.onToolCall(ctx, tail, p)

	case core.ToolResult:
		if p.NextTool != "" {
			// Deterministic pipeline: chain the next tool without an
			// oracle round-trip.
			err := a.push(core.ToolCall{
				Tool:   p.NextTool,
				CallID: uuid.NewString(),
				Args:   p.NextToolArgs,
			})
			return StepResult{Status: StatusProgressed}, err
		}
		return a.askOracle(ctx, tail)

	case core.TaskResult:
		return a.onTaskResult(p)

	case core.TaskChain:
		// Tail left by a crash between the chain push and the next task
		// definition: finish the handoff.
		return a.pushChainedTask(p)

	case core.AgentCall:
		// Tail left by a crash between AgentCall and its Waiting: restore
		// the suspension marker.
		err := a.push(core.Waiting{
			Status: "waiting",
			Condition: core.WaitCondition{
				Evaluator: core.EvaluatorAgentResult,
				Params:    map[string]any{"child_id": p.ChildID},
			},
		})
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{Status: StatusBlocked}, nil

	case core.AskHuman, core.Waiting:
		return StepResult{Status: StatusBlocked}, nil

	default:
		return StepResult{}, fmt.Errorf("agent %s: no transition from tail kind %s", a.id, tail.Kind())
	}
}

// askOracle renders the active template over the current context, pushes
// AskOracle and completes the round-trip.
func (a *Agent) askOracle(ctx context.Context, tail core.Interaction) (StepResult, error) {
	td, ok := a.rootDefinition()
	if !ok {
		return StepResult{}, fmt.Errorf("agent %s: no task definition on stack", a.id)
	}

	vars := map[string]any{
		"agent_id": a.id,
		"task":     td.Task,
		"prompt":   td.Prompt,
		"params":   td.Params,
	}
	switch p := tail.Payload.(type) {
	case core.HumanResponse:
		vars["input"] = p.Response
		vars["input_source"] = "human"
	case core.ExternalInput:
		vars["input"] = p.Input
		vars["input_source"] = p.Source
	case core.AgentResult:
		if it, ok := a.stack.Lookup(p.ResultID); ok {
			if tr, ok := it.Payload.(core.TaskResult); ok {
				vars["input"] = tr.Summary
				vars["input_source"] = "agent " + p.ChildID
			}
		}
	case core.ToolResult:
		if p.IsError {
			vars["input"] = p.ErrorMessage
		} else {
			vars["input"] = p.Result
		}
		vars["input_source"] = "tool " + p.Tool
	case core.OracleResponse:
		// Failed round-trip observed as state: surface the failure so the
		// next completion can react to it.
		vars["input"] = p.ErrorMessage
		vars["input_source"] = "oracle_error"
	}

	rendered, err := a.deps.Renderer.Render(a.cfg.Template, vars)
	if err != nil {
		return StepResult{}, err
	}
	if err := a.push(core.AskOracle{
		PromptType: string(tail.Kind()),
		Template:   a.cfg.Template,
		Rendered:   rendered,
		Inputs:     vars,
	}); err != nil {
		return StepResult{}, err
	}
	return a.completeOracle(ctx, rendered)
}

// completeOracle runs the oracle round-trip for an already pushed AskOracle
// and records the answer.
func (a *Agent) completeOracle(ctx context.Context, rendered string) (StepResult, error) {
	start := time.Now()
	resp, err := a.deps.Oracle.Complete(ctx, oracle.Request{
		Model:   a.cfg.Model,
		Prompt:  rendered,
		Context: a.stack.ContextInteractions(),
		Tools:   a.deps.Tools.Definitions(a.cfg.Tools),
	})
	if err != nil {
		return StepResult{}, err
	}
	if resp.IsError {
		a.deps.logger().Warn("oracle call failed",
			"agent_id", a.id,
			"model", a.cfg.Model,
			"error", resp.ErrorMessage,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	if err := a.push(resp); err != nil {
		return StepResult{}, err
	}
	return StepResult{Status: StatusProgressed}, nil
}

func (a *Agent) onOracleResponse(ctx context.Context, tail core.Interaction, p core.OracleResponse) (StepResult, error) {
	if p.ToolCall != nil {
		callID := p.ToolCall.ID
		if callID == "" {
			callID = uuid.NewString()
		}
		err := a.push(core.ToolCall{
			Tool:   p.ToolCall.Name,
			CallID: callID,
			Args:   p.ToolCall.Args,
			Reason: p.Reason,
		})
		return StepResult{Status: StatusProgressed}, err
	}
	if p.IsError {
		// The error is ordinary reasoning state: re-prompt with it in view.
		return a.askOracle(ctx, tail)
	}

	result := any(p.Content)
	if p.Structured != nil {
		result = p.Structured
	}
	err := a.push(core.TaskResult{
		FinishType: core.FinishSuccess,
		Summary:    p.Content,
		Result:     result,
	})
	return StepResult{Status: StatusProgressed}, err
}

func (a *Agent) onToolCall(ctx context.Context, tail core.Interaction, p core.ToolCall) (StepResult, error) {
	tctx := &tool.Context{
		AgentID:       a.id,
		CallID:        p.CallID,
		InteractionID: tail.ID,
		Board:         a.deps.Board,
		ACL:           a.acl,
		Artifacts:     a.deps.Artifacts,
		Log:           a.deps.logger(),
	}
	resp := a.deps.Tools.Dispatch(ctx, tctx, p.Tool, p.Args)
	actions := tctx.Actions()

	if actions.Delegation != nil && !resp.IsError {
		// No ToolResult yet: the session appends AgentCall and Waiting in
		// this same logical step.
		return StepResult{Status: StatusProgressed, Delegation: actions.Delegation}, nil
	}

	if err := a.push(resp.ToolResult(p.Tool, p.CallID)); err != nil {
		return StepResult{}, err
	}
	if resp.AskHuman != nil {
		if err := a.push(*resp.AskHuman); err != nil {
			return StepResult{}, err
		}
		return StepResult{Status: StatusBlocked}, nil
	}
	if actions.Fork != nil && !resp.IsError {
		return StepResult{Status: StatusProgressed, Fork: actions.Fork}, nil
	}
	return StepResult{Status: StatusProgressed}, nil
}

func (a *Agent) onTaskResult(p core.TaskResult) (StepResult, error) {
	idx := a.nextSequenceIndex()
	if idx >= len(a.task.TaskSequence) {
		return StepResult{Status: StatusTerminal}, nil
	}

	next := a.task.TaskSequence[idx]
	chain := core.TaskChain{
		NextTask:       next,
		TaskSequence:   a.task.TaskSequence,
		Index:          idx,
		ConfigOverride: a.task.SequenceConfigs[next],
		PrevResult:     p.Result,
	}
	if err := a.push(chain); err != nil {
		return StepResult{}, err
	}
	return a.pushChainedTask(chain)
}

// pushChainedTask opens the next task of a sequence: binds its parameters
// with the previous result substituted under pass_result_as, optionally
// swaps the active config, and pushes the new TaskDefinition.
func (a *Agent) pushChainedTask(chain core.TaskChain) (StepResult, error) {
	nextDef, err := a.deps.Defs.Tasks.MustGet(chain.NextTask, "task")
	if err != nil {
		return StepResult{}, err
	}

	params := map[string]any{}
	if a.task.PassResultAs != "" {
		params[a.task.PassResultAs] = chain.PrevResult
	}
	bound, err := nextDef.BindParams(params)
	if err != nil {
		return StepResult{}, err
	}
	rendered, err := prompt.RenderText(nextDef.Prompt, bound)
	if err != nil {
		return StepResult{}, err
	}

	if chain.ConfigOverride != "" {
		cfg, err := a.deps.Defs.Configs.MustGet(chain.ConfigOverride, "config")
		if err != nil {
			return StepResult{}, err
		}
		a.cfg = cfg
		a.acl = cfg.NamespaceSet()
		a.deps.logger().Info("config swapped for chained task",
			"agent_id", a.id, "config", cfg.Name, "task", nextDef.Name)
	}

	if err := a.push(core.TaskDefinition{
		Task:        nextDef.Name,
		Description: nextDef.Description,
		Prompt:      rendered,
		Params:      bound,
	}); err != nil {
		return StepResult{}, err
	}
	return StepResult{Status: StatusProgressed}, nil
}
