package core

import (
	"encoding/json"
	"iter"
	"time"
)

// RecordKind tags the entries of the persisted record stream.
type RecordKind string

// Record kinds.
const (
	RecordSession     RecordKind = "session"
	RecordAgent       RecordKind = "agent"
	RecordInteraction RecordKind = "interaction"
	RecordArtifact    RecordKind = "artifact"
	RecordFeedback    RecordKind = "feedback"
)

// Record is one durably appended entry. A push, an agent or session creation
// and an artifact creation each become exactly one record, appended before
// the in-memory mutation is considered committed. Replaying the stream from
// empty reconstructs an equivalent session.
type Record struct {
	ID        int64           `json:"id"` // assigned by the store
	Kind      RecordKind      `json:"kind"`
	SessionID string          `json:"session_id"`
	AgentID   string          `json:"agent_id,omitempty"`
	Seq       int64           `json:"seq,omitempty"` // interaction id for interaction records
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Kind      RecordKind
	SessionID string
	AgentID   string
	AfterID   int64 // exclusive lower bound on record id
}

// Matches reports whether the record passes the filter.
func (f Filter) Matches(r Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if f.AgentID != "" && r.AgentID != f.AgentID {
		return false
	}
	if f.AfterID > 0 && r.ID <= f.AfterID {
		return false
	}
	return true
}

// Store is the storage collaborator: an append-only record log. Append must
// be durable before it returns; Get and List observe every completed append.
// List yields records in id order as a lazy sequence so large streams can be
// replayed without loading everything at once.
type Store interface {
	Append(r Record) (int64, error)
	Get(id int64) (Record, error)
	List(f Filter) iter.Seq2[Record, error]
}

// AgentRecord is the payload of an agent-creation record. PrefixIDs captures
// the shared fork prefix for branch agents so replay can rebuild structural
// sharing; it is empty for agents started from scratch.
type AgentRecord struct {
	AgentID   string         `json:"agent_id"`
	Config    string         `json:"config"`
	Task      string         `json:"task"`
	Params    map[string]any `json:"params,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	Branch    string         `json:"branch,omitempty"`
	PrefixIDs []int64        `json:"prefix_ids,omitempty"`
}

// SessionRecord is the payload of a session-creation record.
type SessionRecord struct {
	SessionID string `json:"session_id"`
}

// FeedbackRecord is the payload of an artifact feedback record.
type FeedbackRecord struct {
	ArtifactID string `json:"artifact_id"`
	Rating     *int   `json:"rating,omitempty"`
	Note       string `json:"note,omitempty"`
}

// Journal binds a Store to one session and knows how to encode each record
// kind. A nil *Journal is valid and drops everything, which keeps unit tests
// free of storage wiring.
type Journal struct {
	store     Store
	sessionID string
}

// NewJournal creates a journal for the session. store must not be nil.
func NewJournal(store Store, sessionID string) *Journal {
	return &Journal{store: store, sessionID: sessionID}
}

// SessionID returns the session this journal belongs to.
func (j *Journal) SessionID() string {
	if j == nil {
		return ""
	}
	return j.sessionID
}

func (j *Journal) append(kind RecordKind, agentID string, seq int64, payload any) error {
	if j == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = j.store.Append(Record{
		Kind:      kind,
		SessionID: j.sessionID,
		AgentID:   agentID,
		Seq:       seq,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

// RecordSession appends the session-creation record.
func (j *Journal) RecordSession() error {
	return j.append(RecordSession, "", 0, SessionRecord{SessionID: j.SessionID()})
}

// RecordAgent appends an agent-creation record.
func (j *Journal) RecordAgent(a AgentRecord) error {
	return j.append(RecordAgent, a.AgentID, 0, a)
}

// RecordInteraction appends one pushed interaction.
func (j *Journal) RecordInteraction(agentID string, it Interaction) error {
	return j.append(RecordInteraction, agentID, it.ID, it)
}

// RecordArtifact appends an artifact-creation record.
func (j *Journal) RecordArtifact(agentID string, payload any) error {
	return j.append(RecordArtifact, agentID, 0, payload)
}

// RecordFeedback appends an artifact feedback record.
func (j *Journal) RecordFeedback(agentID string, f FeedbackRecord) error {
	return j.append(RecordFeedback, agentID, 0, f)
}
