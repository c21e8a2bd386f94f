package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoomLogger_ContextualAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
	l.WithComponent("session").WithSession("s1").WithAgent("a1").Info("wave complete", "agents", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "wave complete", entry["msg"])
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "a1", entry["agent_id"])
	assert.Equal(t, float64(2), entry["agents"])
}

func TestLoomLogger_WithCopiesShareNothing(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	tagged := base.WithComponent("agent")

	base.Info("untagged")
	tagged.Info("tagged")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.NotContains(t, string(lines[0]), "component")
	assert.Contains(t, string(lines[1]), `"component":"agent"`)
}

func TestLoomLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	var l Logger = New(&Config{Level: slog.LevelWarn, Format: "text", Output: &buf})
	l.Debug("hidden")
	l.Info("also hidden")
	l.Warn("shown")
	l.Error("shown too")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "shown too")
}

func TestLoomLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: slog.LevelDebug, Format: "text", Output: &buf})

	l.LogStep("oracle_response", "progressed", 5*time.Millisecond)
	l.LogOracleCall("test-model", 10*time.Millisecond, false, "")
	l.LogOracleCall("test-model", 10*time.Millisecond, true, "rate limited")
	l.LogToolCall("shared_state", "c1", time.Millisecond, false)
	l.LogToolCall("shared_state", "c2", time.Millisecond, true)

	out := buf.String()
	assert.Contains(t, out, "agent step")
	assert.Contains(t, out, "oracle call completed")
	assert.Contains(t, out, "oracle call failed")
	assert.Contains(t, out, "rate limited")
	assert.Contains(t, out, "tool call completed")
	assert.Contains(t, out, "tool call failed")
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	l.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "k=v")
}
