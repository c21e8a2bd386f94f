package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/core"
)

func TestSchemaFromStruct(t *testing.T) {
	type input struct {
		Query   string  `json:"query" description:"What to search for"`
		Limit   int     `json:"limit,omitempty"`
		Cursor  *string `json:"cursor"`
		private string  `json:"private"`
		Skipped string  `json:"-"`
	}

	schema := SchemaFromStruct(input{})
	assert.Equal(t, "object", schema["type"])

	props := schema["properties"].(map[string]any)
	require.Contains(t, props, "query")
	require.Contains(t, props, "limit")
	require.Contains(t, props, "cursor")
	assert.NotContains(t, props, "private")
	assert.NotContains(t, props, "Skipped")

	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "What to search for", query["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])

	// Pointer and omitempty fields are optional.
	assert.Equal(t, []string{"query"}, schema["required"])
}

func TestValidateArgs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
			"tags":  map[string]any{"type": "array"},
		},
		"required": []string{"name"},
	}

	require.NoError(t, ValidateArgs(map[string]any{"name": "x"}, schema))
	require.NoError(t, ValidateArgs(map[string]any{"name": "x", "extra": true}, schema))

	err := ValidateArgs(map[string]any{}, schema)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	err = ValidateArgs(map[string]any{"name": 7}, schema)
	require.Error(t, err)

	// JSON numbers arrive as float64; whole values pass as integers.
	require.NoError(t, ValidateArgs(map[string]any{"name": "x", "count": float64(3)}, schema))
	require.Error(t, ValidateArgs(map[string]any{"name": "x", "count": 3.5}, schema))

	require.NoError(t, ValidateArgs(map[string]any{"name": "x", "tags": []any{"a"}}, schema))
	require.Error(t, ValidateArgs(map[string]any{"name": "x", "tags": "a"}, schema))
}

func TestValidateArgs_RequiredListFromDecodedJSON(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"key": map[string]any{"type": "string"}},
		"required":   []any{"key"},
	}
	require.Error(t, ValidateArgs(map[string]any{}, schema))
	require.NoError(t, ValidateArgs(map[string]any{"key": "v"}, schema))
}
