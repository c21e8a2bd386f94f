package tool

import (
	"context"
	"fmt"
)

// SaveArtifactTool writes a long-term memory record through the artifact
// registry, linked to the interaction that created it.
type SaveArtifactTool struct{}

var _ Handler = (*SaveArtifactTool)(nil)

// NewSaveArtifactTool creates the save_artifact builtin.
func NewSaveArtifactTool() *SaveArtifactTool { return &SaveArtifactTool{} }

func (t *SaveArtifactTool) Name() string { return "save_artifact" }

func (t *SaveArtifactTool) Description() string {
	return "Save a durable artifact (note, plan, document, result) to long-term memory. " +
		"Artifacts outlive the session and can receive feedback later."
}

func (t *SaveArtifactTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type":        "string",
				"description": "Artifact category, e.g. note, plan, report",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The artifact body",
			},
		},
		"required": []string{"type", "content"},
	}
}

func (t *SaveArtifactTool) Call(_ context.Context, tctx *Context, args map[string]any) (Response, error) {
	artifactType, _ := args["type"].(string)
	content, _ := args["content"].(string)

	id, err := tctx.SaveArtifact(artifactType, content)
	if err != nil {
		return ErrorResponse(fmt.Sprintf("save artifact: %v", err)), nil
	}
	return TextResponse(map[string]any{"artifact_id": id}), nil
}

// ArtifactFeedbackTool appends feedback to an existing artifact. The
// artifact body never changes; feedback and rating accumulate beside it.
type ArtifactFeedbackTool struct{}

var _ Handler = (*ArtifactFeedbackTool)(nil)

// NewArtifactFeedbackTool creates the artifact_feedback builtin.
func NewArtifactFeedbackTool() *ArtifactFeedbackTool { return &ArtifactFeedbackTool{} }

func (t *ArtifactFeedbackTool) Name() string { return "artifact_feedback" }

func (t *ArtifactFeedbackTool) Description() string {
	return "Attach feedback to a saved artifact: a free-form note and an optional " +
		"rating from 1 to 5."
}

func (t *ArtifactFeedbackTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"artifact_id": map[string]any{
				"type":        "string",
				"description": "Id of the artifact to annotate",
			},
			"note": map[string]any{
				"type":        "string",
				"description": "Free-form feedback",
			},
			"rating": map[string]any{
				"type":        "integer",
				"description": "Optional rating, 1 (poor) to 5 (excellent)",
			},
		},
		"required": []string{"artifact_id"},
	}
}

func (t *ArtifactFeedbackTool) Call(_ context.Context, tctx *Context, args map[string]any) (Response, error) {
	id, _ := args["artifact_id"].(string)
	note, _ := args["note"].(string)

	var rating *int
	if raw, ok := args["rating"].(float64); ok {
		v := int(raw)
		if v < 1 || v > 5 {
			return ErrorResponse("rating must be between 1 and 5"), nil
		}
		rating = &v
	}
	if note == "" && rating == nil {
		return ErrorResponse("feedback needs a note or a rating"), nil
	}

	if err := tctx.Artifacts.AddFeedback(tctx.AgentID, id, rating, note); err != nil {
		return ErrorResponse(fmt.Sprintf("artifact feedback: %v", err)), nil
	}
	return TextResponse(fmt.Sprintf("feedback recorded for artifact %s", id)), nil
}
