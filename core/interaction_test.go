package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteraction_EnvelopeRoundTrip(t *testing.T) {
	original := Interaction{
		ID:               7,
		Branch:           "alt",
		Timestamp:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		IncludeInContext: true,
		Payload: ToolResult{
			Tool:     "search",
			CallID:   "c1",
			Result:   "found it",
			NextTool: "summarize",
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"tool_result"`)

	var decoded Interaction
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Branch, decoded.Branch)
	assert.Equal(t, KindToolResult, decoded.Kind())

	tr, ok := decoded.Payload.(ToolResult)
	require.True(t, ok)
	assert.Equal(t, "search", tr.Tool)
	assert.Equal(t, "summarize", tr.NextTool)
}

func TestInteraction_NestedAskHumanSurvivesEncoding(t *testing.T) {
	it := Interaction{
		ID:        1,
		Timestamp: time.Now().UTC(),
		Payload: ToolResult{
			Tool:     "ask_human",
			CallID:   "c1",
			AskHuman: &AskHuman{Question: "proceed?"},
		},
	}
	data, err := json.Marshal(it)
	require.NoError(t, err)

	var decoded Interaction
	require.NoError(t, json.Unmarshal(data, &decoded))
	tr := decoded.Payload.(ToolResult)
	require.NotNil(t, tr.AskHuman)
	assert.Equal(t, "proceed?", tr.AskHuman.Question)
}

func TestDecodePayload_UnknownKind(t *testing.T) {
	_, err := DecodePayload("telepathy", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown interaction kind")
}

func TestWaitCondition_ChildID(t *testing.T) {
	c := WaitCondition{
		Evaluator: EvaluatorAgentResult,
		Params:    map[string]any{"child_id": "a-42"},
	}
	assert.Equal(t, "a-42", c.ChildID())

	other := WaitCondition{Evaluator: "timer", Params: map[string]any{"child_id": "a-42"}}
	assert.Empty(t, other.ChildID())
}
