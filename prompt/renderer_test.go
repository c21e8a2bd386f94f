package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/registry"
)

func newTestRenderer(t *testing.T, templates ...registry.TemplateDef) *Renderer {
	t.Helper()
	set, err := registry.NewSet(nil, nil, templates)
	require.NoError(t, err)
	r, err := NewRenderer(set.Templates)
	require.NoError(t, err)
	return r
}

func TestRenderer_Render(t *testing.T) {
	r := newTestRenderer(t, registry.TemplateDef{
		Name: "greeting",
		Text: "Hello {{.name}}, your task is {{.task}}.",
	})

	out, err := r.Render("greeting", map[string]any{"name": "gopher", "task": "report"})
	require.NoError(t, err)
	assert.Equal(t, "Hello gopher, your task is report.", out)
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.Render("missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestRenderer_Funcs(t *testing.T) {
	r := newTestRenderer(t, registry.TemplateDef{
		Name: "funcs",
		Text: `{{upper .word}} {{default "anon" .name}}`,
	})

	out, err := r.Render("funcs", map[string]any{"word": "go"})
	require.NoError(t, err)
	assert.Equal(t, "GO anon", out)
}

func TestRenderText_FastPathWithoutMarkers(t *testing.T) {
	out, err := RenderText("plain text, no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text, no markers", out)
}

func TestRenderText_SubstitutesVars(t *testing.T) {
	out, err := RenderText("Investigate {{.topic}} thoroughly.", map[string]any{"topic": "arenas"})
	require.NoError(t, err)
	assert.Equal(t, "Investigate arenas thoroughly.", out)
}
