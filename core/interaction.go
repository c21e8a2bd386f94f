package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the interaction variants. The set is closed: the agent
// step loop switches exhaustively over it.
type Kind string

// Interaction kinds.
const (
	KindTaskDefinition Kind = "task_definition"
	KindAskOracle      Kind = "ask_oracle"
	KindOracleResponse Kind = "oracle_response"
	KindToolCall       Kind = "tool_call"
	KindToolResult     Kind = "tool_result"
	KindAgentCall      Kind = "agent_call"
	KindAgentResult    Kind = "agent_result"
	KindAskHuman       Kind = "ask_human"
	KindHumanResponse  Kind = "human_response"
	KindExternalInput  Kind = "external_input"
	KindWaiting        Kind = "waiting"
	KindTaskResult     Kind = "task_result"
	KindTaskChain      Kind = "task_chain"
)

// Payload is the variant-specific body of an interaction. Implementations are
// plain structs; Validate is called by Stack.Push before anything is
// committed, so a failing payload never reaches the arena or the store.
type Payload interface {
	Kind() Kind
	Validate() error
}

// Interaction is one immutable record in an agent's history. Once appended to
// an arena it must never be modified; state evolution happens by appending
// new interactions, not by rewriting old ones.
type Interaction struct {
	ID               int64     `json:"id"`
	Branch           string    `json:"branch,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	IncludeInContext bool      `json:"include_in_context"`
	Payload          Payload   `json:"payload"`
}

// Kind returns the payload kind, or the empty Kind for a zero interaction.
func (it Interaction) Kind() Kind {
	if it.Payload == nil {
		return ""
	}
	return it.Payload.Kind()
}

// interactionEnvelope is the wire form: the payload is tagged with its kind
// so the stream can be decoded without guessing.
type interactionEnvelope struct {
	ID               int64           `json:"id"`
	Branch           string          `json:"branch,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	IncludeInContext bool            `json:"include_in_context"`
	Kind             Kind            `json:"kind"`
	Payload          json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the interaction as a kind-tagged envelope.
func (it Interaction) MarshalJSON() ([]byte, error) {
	if it.Payload == nil {
		return nil, fmt.Errorf("interaction %d has no payload", it.ID)
	}
	body, err := json.Marshal(it.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(interactionEnvelope{
		ID:               it.ID,
		Branch:           it.Branch,
		Timestamp:        it.Timestamp,
		IncludeInContext: it.IncludeInContext,
		Kind:             it.Payload.Kind(),
		Payload:          body,
	})
}

// UnmarshalJSON decodes a kind-tagged envelope into a concrete payload.
func (it *Interaction) UnmarshalJSON(data []byte) error {
	var env interactionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	payload, err := DecodePayload(env.Kind, env.Payload)
	if err != nil {
		return err
	}
	it.ID = env.ID
	it.Branch = env.Branch
	it.Timestamp = env.Timestamp
	it.IncludeInContext = env.IncludeInContext
	it.Payload = payload
	return nil
}

// DecodePayload decodes raw JSON into the payload struct for the given kind.
// Unknown kinds are rejected; the decode table is the closed variant set.
func DecodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch kind {
	case KindTaskDefinition:
		p = &TaskDefinition{}
	case KindAskOracle:
		p = &AskOracle{}
	case KindOracleResponse:
		p = &OracleResponse{}
	case KindToolCall:
		p = &ToolCall{}
	case KindToolResult:
		p = &ToolResult{}
	case KindAgentCall:
		p = &AgentCall{}
	case KindAgentResult:
		p = &AgentResult{}
	case KindAskHuman:
		p = &AskHuman{}
	case KindHumanResponse:
		p = &HumanResponse{}
	case KindExternalInput:
		p = &ExternalInput{}
	case KindWaiting:
		p = &Waiting{}
	case KindTaskResult:
		p = &TaskResult{}
	case KindTaskChain:
		p = &TaskChain{}
	default:
		return nil, fmt.Errorf("unknown interaction kind %q", kind)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return deref(p), nil
}

// deref converts the pointer used for unmarshalling back into the value form
// payloads are passed around as.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *TaskDefinition:
		return *v
	case *AskOracle:
		return *v
	case *OracleResponse:
		return *v
	case *ToolCall:
		return *v
	case *ToolResult:
		return *v
	case *AgentCall:
		return *v
	case *AgentResult:
		return *v
	case *AskHuman:
		return *v
	case *HumanResponse:
		return *v
	case *ExternalInput:
		return *v
	case *Waiting:
		return *v
	case *TaskResult:
		return *v
	case *TaskChain:
		return *v
	default:
		return p
	}
}
