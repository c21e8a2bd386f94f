package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/artifact"
	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/oracle"
	"github.com/loomlabs/loom/prompt"
	"github.com/loomlabs/loom/registry"
	"github.com/loomlabs/loom/tool"
)

func testDefs(t *testing.T, configs []registry.ConfigDef, tasks []registry.TaskDef) *registry.Set {
	t.Helper()
	if configs == nil {
		configs = []registry.ConfigDef{{
			Name:     "worker",
			Template: "plain",
			Model:    "test-model",
			Tools:    []string{"shared_state", "ask_human"},
		}}
	}
	if tasks == nil {
		tasks = []registry.TaskDef{{
			Name:   "solve",
			Prompt: "Solve {{.problem}}.",
			Params: map[string]registry.ParamSpec{
				"problem": {Type: "string", Required: true},
			},
		}}
	}
	set, err := registry.NewSet(configs, tasks,
		[]registry.TemplateDef{{Name: "plain", Text: "{{.prompt}}"}, {Name: "focused", Text: "FOCUS {{.prompt}}"}})
	require.NoError(t, err)
	return set
}

func testAgent(t *testing.T, defs *registry.Set, scripted *oracle.Scripted, configName, taskName string, params map[string]any) *Agent {
	t.Helper()
	renderer, err := prompt.NewRenderer(defs.Templates)
	require.NoError(t, err)
	deps := Deps{
		Oracle:    scripted,
		Tools:     tool.NewRegistry(tool.Builtins()...),
		Renderer:  renderer,
		Board:     core.NewBlackboard(),
		Artifacts: artifact.NewRegistry(nil),
		Defs:      defs,
	}
	cfg, err := defs.Configs.MustGet(configName, "config")
	require.NoError(t, err)
	task, err := defs.Tasks.MustGet(taskName, "task")
	require.NoError(t, err)

	stack := core.NewStack("a1", core.NewArena(), nil)
	a, err := New("a1", cfg, task, params, stack, deps)
	require.NoError(t, err)
	return a
}

func stepUntil(t *testing.T, a *Agent, want Status, maxSteps int) {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		res, err := a.Step(context.Background())
		require.NoError(t, err)
		if res.Status == want {
			return
		}
	}
	t.Fatalf("status %s not reached within %d steps", want, maxSteps)
}

func kinds(s *core.Stack) []core.Kind {
	var out []core.Kind
	for _, it := range s.Interactions() {
		out = append(out, it.Kind())
	}
	return out
}

func TestNew_FailsFastOnMissingParams(t *testing.T) {
	defs := testDefs(t, nil, nil)
	renderer, err := prompt.NewRenderer(defs.Templates)
	require.NoError(t, err)
	cfg, _ := defs.Configs.Get("worker")
	task, _ := defs.Tasks.Get("solve")

	stack := core.NewStack("a1", core.NewArena(), nil)
	_, err = New("a1", cfg, task, nil, stack, Deps{Renderer: renderer, Defs: defs})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, 0, stack.Len(), "nothing committed on validation failure")
}

func TestStep_FinalAnswerPath(t *testing.T) {
	defs := testDefs(t, nil, nil)
	scripted := oracle.NewScripted(oracle.TextResponse("the answer is 42"))
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "life"})

	stepUntil(t, a, StatusTerminal, 5)
	assert.True(t, a.Terminal())
	assert.Equal(t, []core.Kind{
		core.KindTaskDefinition,
		core.KindAskOracle,
		core.KindOracleResponse,
		core.KindTaskResult,
	}, kinds(a.Stack()))

	it, _ := a.Stack().LastOfKind(core.KindTaskResult)
	tr := it.Payload.(core.TaskResult)
	assert.Equal(t, core.FinishSuccess, tr.FinishType)
	assert.Equal(t, "the answer is 42", tr.Summary)
}

func TestStep_ToolCallRoundTrip(t *testing.T) {
	defs := testDefs(t, nil, nil)
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "shared_state",
			map[string]any{"op": "set", "key": "note", "value": "hi"}, "remember"),
		oracle.TextResponse("done"),
	)
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "x"})

	stepUntil(t, a, StatusTerminal, 10)
	assert.Equal(t, []core.Kind{
		core.KindTaskDefinition,
		core.KindAskOracle,
		core.KindOracleResponse,
		core.KindToolCall,
		core.KindToolResult,
		core.KindAskOracle,
		core.KindOracleResponse,
		core.KindTaskResult,
	}, kinds(a.Stack()))

	assert.Equal(t, "hi", a.deps.Board.Snapshot(core.NamespaceCommon)["note"])
}

func TestStep_UnknownToolSurfacesAsErrorData(t *testing.T) {
	defs := testDefs(t, nil, nil)
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ghost", nil, ""),
		oracle.TextResponse("recovered"),
	)
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "x"})

	stepUntil(t, a, StatusTerminal, 10)
	tr, ok := a.Stack().LastToolResult("ghost")
	require.True(t, ok)
	assert.True(t, tr.IsError)
	assert.Contains(t, tr.ErrorMessage, "unknown tool")
}

func TestStep_OracleErrorIsDataNotFailure(t *testing.T) {
	defs := testDefs(t, nil, nil)
	// Script exhausted from the start: every completion is an error response.
	scripted := oracle.NewScripted()
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "x"})

	res, err := a.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusProgressed, res.Status)

	it, ok := a.Stack().LastOfKind(core.KindOracleResponse)
	require.True(t, ok)
	assert.True(t, it.Payload.(core.OracleResponse).IsError)

	// The next step re-prompts with the error in view instead of unwinding.
	res, err = a.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusProgressed, res.Status)
	asks := 0
	for _, k := range kinds(a.Stack()) {
		if k == core.KindAskOracle {
			asks++
		}
	}
	assert.Equal(t, 2, asks)
}

func TestStep_AskHumanBlocksUntilResponse(t *testing.T) {
	defs := testDefs(t, nil, nil)
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "ask_human", map[string]any{"question": "proceed?"}, ""),
		oracle.TextResponse("proceeding"),
	)
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "x"})

	stepUntil(t, a, StatusBlocked, 10)
	kind, blocked := a.Blocked()
	assert.True(t, blocked)
	assert.Equal(t, core.KindAskHuman, kind)

	// Blocked steps stay blocked without pushing anything.
	n := a.Stack().Len()
	res, err := a.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, res.Status)
	assert.Equal(t, n, a.Stack().Len())

	_, err = a.Stack().Push(core.HumanResponse{Response: "yes"})
	require.NoError(t, err)
	stepUntil(t, a, StatusTerminal, 10)
}

func TestStep_NextToolChainSkipsOracle(t *testing.T) {
	defs := testDefs(t,
		[]registry.ConfigDef{{
			Name: "worker", Template: "plain", Model: "m",
			Tools: []string{"chainer", "shared_state"},
		}}, nil)
	scripted := oracle.NewScripted(
		oracle.ToolCallResponse("c1", "chainer", nil, ""),
		oracle.TextResponse("done"),
	)
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "x"})
	a.deps.Tools.Register(tool.NewFunctionTool("chainer", "Chains into shared_state",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ *tool.Context, _ map[string]any) (tool.Response, error) {
			return tool.Response{
				Content:      "chaining",
				NextTool:     "shared_state",
				NextToolArgs: map[string]any{"op": "set", "key": "from", "value": "chain"},
			}, nil
		},
	))

	stepUntil(t, a, StatusTerminal, 12)
	assert.Equal(t, []core.Kind{
		core.KindTaskDefinition,
		core.KindAskOracle,
		core.KindOracleResponse,
		core.KindToolCall,
		core.KindToolResult, // chainer result carrying next_tool
		core.KindToolCall,   // chained call, no oracle round-trip between
		core.KindToolResult,
		core.KindAskOracle,
		core.KindOracleResponse,
		core.KindTaskResult,
	}, kinds(a.Stack()))
	assert.Equal(t, "chain", a.deps.Board.Snapshot(core.NamespaceCommon)["from"])
}

func TestStep_TaskSequenceChains(t *testing.T) {
	defs := testDefs(t, nil, []registry.TaskDef{
		{
			Name: "solve", Prompt: "Solve {{.problem}}.",
			Params:       map[string]registry.ParamSpec{"problem": {Type: "string", Required: true}},
			TaskSequence: []string{"review"},
			PassResultAs: "draft",
		},
		{
			Name: "review", Prompt: "Review: {{.draft}}",
			Params: map[string]registry.ParamSpec{"draft": {Type: "string", Required: true}},
		},
	})
	scripted := oracle.NewScripted(
		oracle.TextResponse("draft v1"),
		oracle.TextResponse("review passed"),
	)
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "x"})

	stepUntil(t, a, StatusTerminal, 12)
	assert.Equal(t, []core.Kind{
		core.KindTaskDefinition,
		core.KindAskOracle,
		core.KindOracleResponse,
		core.KindTaskResult, // solve done, sequence remains
		core.KindTaskChain,
		core.KindTaskDefinition, // review opens with the draft substituted
		core.KindAskOracle,
		core.KindOracleResponse,
		core.KindTaskResult,
	}, kinds(a.Stack()))

	it, _ := a.Stack().LastOfKind(core.KindTaskDefinition)
	td := it.Payload.(core.TaskDefinition)
	assert.Equal(t, "review", td.Task)
	assert.Equal(t, "draft v1", td.Params["draft"])
	assert.Contains(t, td.Prompt, "draft v1")
	assert.True(t, a.Terminal())
}

func TestResume_RebuildsOracleCallCount(t *testing.T) {
	defs := testDefs(t, nil, nil)
	scripted := oracle.NewScripted(oracle.TextResponse("done"))
	a := testAgent(t, defs, scripted, "worker", "solve", map[string]any{"problem": "x"})
	stepUntil(t, a, StatusTerminal, 5)

	resumed := Resume("a1", a.cfg, a.task, a.stack, a.deps)
	assert.Equal(t, a.oracleCalls, resumed.oracleCalls)
	assert.True(t, resumed.Terminal())
}
