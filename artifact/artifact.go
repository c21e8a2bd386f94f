// Package artifact implements the long-term memory registry: durable records
// produced by tool calls that outlive the session that created them. An
// artifact is immutable once created; feedback accumulates append-only next
// to it.
package artifact

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/core"
)

// Artifact is one long-term memory record. InteractionID links it back to
// the interaction whose tool call created it.
type Artifact struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Content       string     `json:"content"`
	AgentID       string     `json:"agent_id"`
	InteractionID int64      `json:"interaction_id"`
	Rating        *int       `json:"rating,omitempty"`
	Feedback      []string   `json:"feedback,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Registry keeps artifacts in memory and journals every creation and
// feedback entry through the session journal. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	journal   *core.Journal
	artifacts map[string]*Artifact
	order     []string
}

// NewRegistry creates an empty registry. journal may be nil for tests.
func NewRegistry(journal *core.Journal) *Registry {
	return &Registry{
		journal:   journal,
		artifacts: make(map[string]*Artifact),
	}
}

// Create journals and stores a new artifact, returning its assigned id. The
// durable append happens before the in-memory commit.
func (r *Registry) Create(agentID, artifactType, content string, interactionID int64) (string, error) {
	a := &Artifact{
		ID:            uuid.NewString(),
		Type:          artifactType,
		Content:       content,
		AgentID:       agentID,
		InteractionID: interactionID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.journal.RecordArtifact(agentID, a); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[a.ID] = a
	r.order = append(r.order, a.ID)
	return a.ID, nil
}

// Get returns a copy of the artifact or ErrNotFound.
func (r *Registry) Get(id string) (Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[id]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return copyArtifact(a), nil
}

// List returns copies of every artifact in creation order.
func (r *Registry) List() []Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Artifact, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyArtifact(r.artifacts[id]))
	}
	return out
}

// AddFeedback appends a feedback note, optionally updating the rating. The
// artifact content itself never changes.
func (r *Registry) AddFeedback(agentID, id string, rating *int, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[id]
	if !ok {
		return ErrNotFound
	}
	err := r.journal.RecordFeedback(agentID, core.FeedbackRecord{
		ArtifactID: id,
		Rating:     rating,
		Note:       note,
	})
	if err != nil {
		return err
	}
	if rating != nil {
		v := *rating
		a.Rating = &v
	}
	if note != "" {
		a.Feedback = append(a.Feedback, note)
	}
	return nil
}

// Len returns the number of stored artifacts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.artifacts)
}

// Restore installs an artifact replayed from the record stream without
// journaling it again.
func (r *Registry) Restore(a Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := copyArtifact(&a)
	r.artifacts[a.ID] = &cp
	r.order = append(r.order, a.ID)
}

// RestoreFeedback applies a replayed feedback record without journaling.
func (r *Registry) RestoreFeedback(f core.FeedbackRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[f.ArtifactID]
	if !ok {
		return ErrNotFound
	}
	if f.Rating != nil {
		v := *f.Rating
		a.Rating = &v
	}
	if f.Note != "" {
		a.Feedback = append(a.Feedback, f.Note)
	}
	return nil
}

func copyArtifact(a *Artifact) Artifact {
	cp := *a
	if a.Rating != nil {
		v := *a.Rating
		cp.Rating = &v
	}
	cp.Feedback = make([]string, len(a.Feedback))
	copy(cp.Feedback, a.Feedback)
	return cp
}
