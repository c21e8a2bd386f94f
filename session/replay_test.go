package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/oracle"
)

func TestRestore_RebuildsCompletedSession(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "shared_state",
			map[string]any{"op": "set", "key": "k", "value": "v"}, ""),
		oracle.TextResponse("finished"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)
	agentID, err := s.Spawn("researcher", "research", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	restored, err := Restore(env, s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), restored.ID())
	assert.Equal(t, s.AgentIDs(), restored.AgentIDs())

	orig, _ := s.Agent(agentID)
	again, ok := restored.Agent(agentID)
	require.True(t, ok)
	assert.Equal(t, orig.Stack().IDs(), again.Stack().IDs())
	assert.True(t, again.Terminal())

	for i, it := range orig.Stack().Interactions() {
		got, ok := again.Stack().At(i)
		require.True(t, ok)
		assert.Equal(t, it.Kind(), got.Kind())
		assert.Equal(t, it.ID, got.ID)
	}

	// Replay writes nothing back.
	before := countRecords(t, env, s.ID())
	_, err = Restore(env, s.ID())
	require.NoError(t, err)
	assert.Equal(t, before, countRecords(t, env, s.ID()))
}

func TestRestore_ResumeContinuesToCompletion(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ask_human", map[string]any{"question": "which topic?"}, ""),
		oracle.TextResponse("done after restart"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)
	agentID, err := s.Spawn("assistant", "research", map[string]any{"topic": "tbd"})
	require.NoError(t, err)

	var stuck *core.StuckSessionError
	require.ErrorAs(t, s.Run(context.Background()), &stuck)

	// Simulate a process restart: rebuild from the store, answer the
	// question, and drive the rest of the run.
	restored, err := Restore(env, s.ID())
	require.NoError(t, err)

	a, ok := restored.Agent(agentID)
	require.True(t, ok)
	kind, blocked := a.Blocked()
	require.True(t, blocked)
	assert.Equal(t, core.KindAskHuman, kind)

	require.NoError(t, restored.ProvideHumanResponse(agentID, "arenas"))
	require.NoError(t, restored.Run(context.Background()))
	assert.Equal(t, "done after restart", restored.Results()[agentID].Summary)
}

func TestRestore_DelegationSessionKeepsParentChildLink(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "delegate", map[string]any{
			"config": "researcher",
			"task":   "research",
			"params": map[string]any{"topic": "arenas"},
		}, ""),
		oracle.TextResponse("child finding"),
		oracle.TextResponse("parent conclusion"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)
	parentID, err := s.Spawn("coordinator", "report", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	restored, err := Restore(env, s.ID())
	require.NoError(t, err)
	require.Len(t, restored.AgentIDs(), 2)

	parent, _ := restored.Agent(parentID)
	assert.True(t, parent.Terminal())
	it, ok := parent.Stack().LastOfKind(core.KindAgentResult)
	require.True(t, ok)
	assert.Equal(t, restored.AgentIDs()[1], it.Payload.(core.AgentResult).ChildID)
}

func TestRestore_RebuildsForkedBranchSharing(t *testing.T) {
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "branch", map[string]any{
			"branch":      "greedy",
			"instruction": "try the greedy strategy",
		}, ""),
		oracle.TextResponse("wrapped up"),
		oracle.TextResponse("wrapped up"),
	)
	env := testEnv(t, scripted)
	s, err := New(env)
	require.NoError(t, err)
	parentID, err := s.Spawn("explorer", "research", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	restored, err := Restore(env, s.ID())
	require.NoError(t, err)
	require.Len(t, restored.AgentIDs(), 2)
	branchID := restored.AgentIDs()[1]

	branch, ok := restored.Agent(branchID)
	require.True(t, ok)
	assert.Equal(t, "greedy", branch.Stack().Branch())

	// The fork's full id slice survives the round trip, prefix included.
	orig, _ := s.Agent(branchID)
	assert.Equal(t, orig.Stack().IDs(), branch.Stack().IDs())

	// Prefix entries still point at the parent's interactions rather than
	// copies of them.
	parent, _ := restored.Agent(parentID)
	parentIDs := parent.Stack().IDs()
	branchIDs := branch.Stack().IDs()
	shared := 0
	for i := range branchIDs {
		if i < len(parentIDs) && branchIDs[i] == parentIDs[i] {
			shared++
		}
	}
	assert.Greater(t, shared, 0)

	// Both lines replay to their recorded branch ToolResults.
	branchTR, ok := branch.Stack().LastToolResult("branch")
	require.True(t, ok)
	assert.Contains(t, branchTR.Result, `exploring branch "greedy"`)
	parentTR, ok := parent.Stack().LastToolResult("branch")
	require.True(t, ok)
	assert.False(t, parentTR.IsError)
}

func TestRestore_MissingSessionRecord(t *testing.T) {
	env := testEnv(t, oracle.NewScripted())
	_, err := Restore(env, "never-created")
	var re *core.ReplayError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Reason, "no session record")
}

func TestRestore_RejectsCorruptedStream(t *testing.T) {
	env := testEnv(t, oracle.NewScripted(oracle.TextResponse("done")))
	s, err := New(env)
	require.NoError(t, err)
	_, err = s.Spawn("researcher", "research", map[string]any{"topic": "x"})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	// An interaction for an agent the stream never introduced.
	_, err = env.Store().Append(core.Record{
		Kind:      core.RecordInteraction,
		SessionID: s.ID(),
		AgentID:   "phantom",
		Payload:   mustJSON(t, core.Interaction{ID: 99, Payload: core.HumanResponse{Response: "x"}}),
	})
	require.NoError(t, err)

	_, err = Restore(env, s.ID())
	var re *core.ReplayError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Reason, "unknown agent")
}

func TestRestore_RejectsUnknownRecordKind(t *testing.T) {
	env := testEnv(t, oracle.NewScripted())
	s, err := New(env)
	require.NoError(t, err)

	_, err = env.Store().Append(core.Record{
		Kind:      core.RecordKind("checkpoint"),
		SessionID: s.ID(),
		Payload:   []byte(`{}`),
	})
	require.NoError(t, err)

	_, err = Restore(env, s.ID())
	var re *core.ReplayError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Reason, "unknown record kind")
}

func countRecords(t *testing.T, env *Environment, sessionID string) int {
	t.Helper()
	n := 0
	for _, err := range env.Store().List(core.Filter{SessionID: sessionID}) {
		require.NoError(t, err)
		n++
	}
	return n
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
