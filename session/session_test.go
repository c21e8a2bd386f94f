package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/oracle"
	"github.com/loomlabs/loom/registry"
)

func testDefs(t *testing.T) *registry.Set {
	t.Helper()
	set, err := registry.NewSet(
		[]registry.ConfigDef{
			{
				Name: "coordinator", Template: "plain", Model: "m",
				Tools: []string{"delegate"},
			},
			{
				Name: "researcher", Template: "plain", Model: "m",
				Tools: []string{"shared_state"},
			},
			{
				Name: "explorer", Template: "plain", Model: "m",
				Tools: []string{"branch"},
			},
			{
				Name: "assistant", Template: "plain", Model: "m",
				Tools: []string{"ask_human"}, Interactive: true,
			},
		},
		[]registry.TaskDef{
			{
				Name: "report", Prompt: "Write a report on {{.topic}}.",
				Params: map[string]registry.ParamSpec{"topic": {Type: "string", Required: true}},
			},
			{
				Name: "research", Prompt: "Research {{.topic}}.",
				Params: map[string]registry.ParamSpec{"topic": {Type: "string", Required: true}},
			},
		},
		[]registry.TemplateDef{{Name: "plain", Text: "{{.prompt}}{{if .input}}\n\n{{.input_source}}: {{.input}}{{end}}"}},
	)
	require.NoError(t, err)
	return set
}

func testEnv(t *testing.T, scripted *oracle.Scripted, opts ...Option) *Environment {
	t.Helper()
	env, err := NewEnvironment(testDefs(t), append([]Option{WithOracle(scripted)}, opts...)...)
	require.NoError(t, err)
	return env
}

func TestSession_SingleAgentRunsToQuiescence(t *testing.T) {
	env := testEnv(t, oracle.NewScripted(oracle.TextResponse("all done")))
	s, err := New(env)
	require.NoError(t, err)

	id, err := s.Spawn("researcher", "research", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	results := s.Results()
	require.Contains(t, results, id)
	assert.Equal(t, core.FinishSuccess, results[id].FinishType)
	assert.Equal(t, "all done", results[id].Summary)
}

func TestSession_SpawnRejectsBadInputBeforeRecording(t *testing.T) {
	env := testEnv(t, oracle.NewScripted())
	s, err := New(env)
	require.NoError(t, err)

	_, err = s.Spawn("ghost", "research", nil)
	require.Error(t, err)

	_, err = s.Spawn("researcher", "research", nil)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	// Only the session record landed.
	count := 0
	for _, err := range env.Store().List(core.Filter{SessionID: s.ID()}) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestSession_DelegationRoundTrip(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "delegate", map[string]any{
			"config": "researcher",
			"task":   "research",
			"params": map[string]any{"topic": "arenas"},
		}, "needs research"),
		oracle.TextResponse("arenas are append-only"),
		oracle.TextResponse("final report: arenas are append-only"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)

	parentID, err := s.Spawn("coordinator", "report", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	ids := s.AgentIDs()
	require.Len(t, ids, 2)
	assert.Equal(t, parentID, ids[0])
	childID := ids[1]

	parent, _ := s.Agent(parentID)
	child, _ := s.Agent(childID)
	assert.True(t, parent.Terminal())
	assert.True(t, child.Terminal())

	// Parent history carries the full protocol: AgentCall, Waiting, then the
	// delivered AgentResult pointing at the child's TaskResult.
	callIt, ok := parent.Stack().LastOfKind(core.KindAgentCall)
	require.True(t, ok)
	assert.Equal(t, childID, callIt.Payload.(core.AgentCall).ChildID)

	_, ok = parent.Stack().LastOfKind(core.KindWaiting)
	require.True(t, ok)

	resIt, ok := parent.Stack().LastOfKind(core.KindAgentResult)
	require.True(t, ok)
	ar := resIt.Payload.(core.AgentResult)
	assert.Equal(t, childID, ar.ChildID)

	childResult, ok := child.Stack().LastOfKind(core.KindTaskResult)
	require.True(t, ok)
	assert.Equal(t, childResult.ID, ar.ResultID)

	// The child's summary flowed into the parent's final prompt.
	askIt, ok := parent.Stack().LastOfKind(core.KindAskOracle)
	require.True(t, ok)
	assert.Contains(t, askIt.Payload.(core.AskOracle).Rendered, "arenas are append-only")

	assert.Equal(t, "final report: arenas are append-only", s.Results()[parentID].Summary)
}

func TestSession_FailedDelegationUnwindsToParent(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "delegate", map[string]any{
			"config": "researcher",
			"task":   "research",
			"params": map[string]any{}, // missing required topic
		}, ""),
		oracle.TextResponse("could not delegate, answering directly"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)

	parentID, err := s.Spawn("coordinator", "report", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	assert.Len(t, s.AgentIDs(), 1, "no child registered for a failed delegation")

	parent, _ := s.Agent(parentID)
	tr, ok := parent.Stack().LastToolResult("delegate")
	require.True(t, ok)
	assert.True(t, tr.IsError)
	assert.Contains(t, tr.ErrorMessage, "delegation")
	assert.True(t, parent.Terminal())
}

func TestSession_BranchForkSharesPrefix(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "branch", map[string]any{
			"branch":      "greedy",
			"instruction": "try the greedy strategy",
		}, ""),
		// Both lines finish on their next completion, so wave ordering does
		// not matter.
		oracle.TextResponse("wrapped up"),
		oracle.TextResponse("wrapped up"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)

	parentID, err := s.Spawn("explorer", "research", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	ids := s.AgentIDs()
	require.Len(t, ids, 2)
	branchID := ids[1]

	parent, _ := s.Agent(parentID)
	branch, _ := s.Agent(branchID)
	assert.True(t, parent.Terminal())
	assert.True(t, branch.Terminal())
	assert.Equal(t, "greedy", branch.Stack().Branch())

	// The fork shares the parent's prefix through the branch ToolCall.
	parentIDs := parent.Stack().IDs()
	branchIDs := branch.Stack().IDs()
	shared := 0
	for i := range branchIDs {
		if i < len(parentIDs) && branchIDs[i] == parentIDs[i] {
			shared++
		}
	}
	assert.Greater(t, shared, 0)

	// Each line recorded its own branch ToolResult.
	parentTR, ok := parent.Stack().LastToolResult("branch")
	require.True(t, ok)
	assert.False(t, parentTR.IsError)

	branchTR, ok := branch.Stack().LastToolResult("branch")
	require.True(t, ok)
	assert.Contains(t, branchTR.Result, `exploring branch "greedy"`)
	assert.Contains(t, branchTR.Result, "greedy strategy")
}

func TestSession_StuckWithoutResponder(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ask_human", map[string]any{"question": "which topic?"}, ""),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)

	agentID, err := s.Spawn("assistant", "research", map[string]any{"topic": "tbd"})
	require.NoError(t, err)

	err = s.Run(context.Background())
	var stuck *core.StuckSessionError
	require.ErrorAs(t, err, &stuck)
	assert.Equal(t, s.ID(), stuck.SessionID)
	require.Len(t, stuck.Blocked, 1)
	assert.Equal(t, agentID, stuck.Blocked[0].AgentID)
	assert.Equal(t, core.KindAskHuman, stuck.Blocked[0].Kind)
	assert.Equal(t, "which topic?", stuck.Blocked[0].Detail)
}

func TestSession_ResponderUnblocksInteractiveAgents(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ask_human", map[string]any{"question": "which topic?"}, ""),
		oracle.TextResponse("researched arenas"),
	)
	responder := func(_ context.Context, _ string, question string) (string, error) {
		assert.Equal(t, "which topic?", question)
		return "arenas", nil
	}
	env := testEnv(t, scripted, WithHumanResponder(responder))
	s, err := New(env)
	require.NoError(t, err)

	agentID, err := s.Spawn("assistant", "research", map[string]any{"topic": "tbd"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	a, _ := s.Agent(agentID)
	hrIt, ok := a.Stack().LastOfKind(core.KindHumanResponse)
	require.True(t, ok)
	assert.Equal(t, "arenas", hrIt.Payload.(core.HumanResponse).Response)

	askIt, ok := a.Stack().LastOfKind(core.KindAskOracle)
	require.True(t, ok)
	assert.Contains(t, askIt.Payload.(core.AskOracle).Rendered, "human: arenas")
}

func TestSession_ProvideHumanResponse(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ask_human", map[string]any{"question": "proceed?"}, ""),
		oracle.TextResponse("done"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)

	agentID, err := s.Spawn("assistant", "research", map[string]any{"topic": "x"})
	require.NoError(t, err)

	var stuck *core.StuckSessionError
	require.ErrorAs(t, s.Run(context.Background()), &stuck)

	require.Error(t, s.ProvideHumanResponse("ghost", "yes"))
	require.NoError(t, s.ProvideHumanResponse(agentID, "yes"))
	require.Error(t, s.ProvideHumanResponse(agentID, "yes"), "tail no longer AskHuman")

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, s.Results(), agentID)
}

func TestSession_ProvideExternalInputRejectedWhileSuspended(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ask_human", map[string]any{"question": "proceed?"}, ""),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)

	agentID, err := s.Spawn("assistant", "research", map[string]any{"topic": "x"})
	require.NoError(t, err)

	// Fresh agent accepts input.
	require.NoError(t, s.ProvideExternalInput(agentID, "webhook", map[string]any{"event": "push"}))

	var stuck *core.StuckSessionError
	require.ErrorAs(t, s.Run(context.Background()), &stuck)

	// A suspension the session owns rejects out-of-band input.
	a, _ := s.Agent(agentID)
	_, err = a.Stack().Push(core.Waiting{
		Status:    "waiting",
		Condition: core.WaitCondition{Evaluator: core.EvaluatorAgentResult},
	})
	require.NoError(t, err)
	err = s.ProvideExternalInput(agentID, "webhook", "late event")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot accept external input")
}

func TestSession_CancellationReportsUnresolvedWaits(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ask_human", map[string]any{"question": "proceed?"}, ""),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)

	_, err = s.Spawn("assistant", "research", map[string]any{"topic": "x"})
	require.NoError(t, err)

	// Run once so the agent parks on AskHuman, then cancel.
	var stuck *core.StuckSessionError
	require.ErrorAs(t, s.Run(context.Background()), &stuck)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Run(ctx)
	var cancelled *core.CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, s.ID(), cancelled.SessionID)
	require.Len(t, cancelled.Waiting, 1)
	assert.Equal(t, core.KindAskHuman, cancelled.Waiting[0].Kind)
	assert.ErrorIs(t, err, context.Canceled)
}
