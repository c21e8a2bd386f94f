package core

import (
	"fmt"
	"sync"
	"time"
)

// Stack is one agent's ordered, append-only interaction history. It holds
// arena ids rather than payloads; Fork shares the prefix by reference and the
// two stacks diverge independently afterwards.
//
// The scheduler guarantees a stack is mutated by at most one step at a time,
// but reads (monitoring, context assembly) may be concurrent, so the id slice
// is still guarded.
type Stack struct {
	agentID string
	branch  string
	arena   *Arena
	journal *Journal

	mu  sync.RWMutex
	ids []int64
}

// NewStack creates an empty stack for the given agent, backed by the shared
// arena. journal may be nil, in which case pushes are not persisted (tests).
func NewStack(agentID string, arena *Arena, journal *Journal) *Stack {
	return &Stack{agentID: agentID, arena: arena, journal: journal}
}

// RestoreStack rebuilds a stack around an existing id slice during replay.
func RestoreStack(agentID, branch string, arena *Arena, journal *Journal, ids []int64) *Stack {
	s := &Stack{agentID: agentID, branch: branch, arena: arena, journal: journal}
	s.ids = append(s.ids, ids...)
	return s
}

// AgentID returns the owning agent's id.
func (s *Stack) AgentID() string { return s.agentID }

// Branch returns the stack's branch tag ("" for the main line).
func (s *Stack) Branch() string { return s.branch }

// Push validates the payload, durably records the interaction, appends it to
// the arena and finally to this stack's index, returning the new tail id.
// A validation failure commits nothing.
func (s *Stack) Push(p Payload) (int64, error) {
	if p == nil {
		return 0, &ValidationError{Field: "payload", Message: "payload is required"}
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	it := Interaction{
		Branch:           s.branch,
		Timestamp:        time.Now().UTC(),
		IncludeInContext: true,
		Payload:          p,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.arena.Append(it, func(committed Interaction) error {
		if s.journal == nil {
			return nil
		}
		return s.journal.RecordInteraction(s.agentID, committed)
	})
	if err != nil {
		return 0, err
	}
	s.ids = append(s.ids, id)
	return id, nil
}

// Len returns the number of interactions on the stack.
func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Tail returns the most recently pushed interaction.
func (s *Stack) Tail() (Interaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ids) == 0 {
		return Interaction{}, false
	}
	it, ok := s.arena.Get(s.ids[len(s.ids)-1])
	return it, ok
}

// At returns the interaction at position i (0-based).
func (s *Stack) At(i int) (Interaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.ids) {
		return Interaction{}, false
	}
	return s.arena.Get(s.ids[i])
}

// IDs returns a snapshot of the stack's arena ids.
func (s *Stack) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Interactions returns a snapshot of all interactions in stack order.
func (s *Stack) Interactions() []Interaction {
	ids := s.IDs()
	out := make([]Interaction, 0, len(ids))
	for _, id := range ids {
		if it, ok := s.arena.Get(id); ok {
			out = append(out, it)
		}
	}
	return out
}

// ContextInteractions returns the interactions flagged for inclusion in the
// oracle context, in stack order.
func (s *Stack) ContextInteractions() []Interaction {
	all := s.Interactions()
	out := make([]Interaction, 0, len(all))
	for _, it := range all {
		if it.IncludeInContext {
			out = append(out, it)
		}
	}
	return out
}

// LastOfKind scans from the tail backwards for the newest interaction of the
// given kind.
func (s *Stack) LastOfKind(k Kind) (Interaction, bool) {
	ids := s.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		it, ok := s.arena.Get(ids[i])
		if ok && it.Kind() == k {
			return it, true
		}
	}
	return Interaction{}, false
}

// LastToolResult scans from the tail backwards for the newest ToolResult of
// the named tool ("" matches any tool).
func (s *Stack) LastToolResult(toolName string) (ToolResult, bool) {
	ids := s.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		it, ok := s.arena.Get(ids[i])
		if !ok {
			continue
		}
		if tr, isTR := it.Payload.(ToolResult); isTR {
			if toolName == "" || tr.Tool == toolName {
				return tr, true
			}
		}
	}
	return ToolResult{}, false
}

// Lookup resolves an arena id regardless of whether it belongs to this
// stack. Used to follow cross-stack references such as AgentResult.ResultID.
func (s *Stack) Lookup(id int64) (Interaction, bool) {
	return s.arena.Get(id)
}

// Fork creates an independent stack for forkAgentID that shares this stack's
// first at entries by reference and carries the given branch tag. The source
// stack is never mutated; pushes on either side stay invisible to the other.
func (s *Stack) Fork(at int, forkAgentID, branchTag string) (*Stack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if at < 0 || at > len(s.ids) {
		return nil, &ValidationError{Field: "at", Message: fmt.Sprintf("fork index out of range [0,%d]", len(s.ids)), Value: at}
	}
	child := &Stack{agentID: forkAgentID, branch: branchTag, arena: s.arena, journal: s.journal}
	child.ids = make([]int64, at)
	copy(child.ids, s.ids[:at])
	return child, nil
}
