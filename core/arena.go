package core

import "sync"

// Arena is the append-only store of interactions for one session. Every
// interaction lives here exactly once, keyed by a monotonically increasing
// sequence id starting at 1; stacks hold id slices into the arena, which is
// what makes forking an O(1) index copy instead of a deep payload copy.
//
// Appends are serialized; reads are concurrent.
type Arena struct {
	mu    sync.RWMutex
	items []Interaction
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Append assigns the next sequence id to it, runs the commit hook while the
// id is reserved, and stores the interaction. If commit fails nothing is
// appended and the id is released, so a failed durable write never leaves a
// phantom interaction behind.
func (a *Arena) Append(it Interaction, commit func(Interaction) error) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	it.ID = int64(len(a.items)) + 1
	if commit != nil {
		if err := commit(it); err != nil {
			return 0, err
		}
	}
	a.items = append(a.items, it)
	return it.ID, nil
}

// Restore re-inserts an interaction from a persisted stream. The id must be
// the next sequence id; anything else means the stream is corrupt.
func (a *Arena) Restore(it Interaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if want := int64(len(a.items)) + 1; it.ID != want {
		return &ReplayError{RecordID: it.ID, Reason: "interaction id out of sequence"}
	}
	a.items = append(a.items, it)
	return nil
}

// Get returns the interaction with the given id.
func (a *Arena) Get(id int64) (Interaction, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id < 1 || id > int64(len(a.items)) {
		return Interaction{}, false
	}
	return a.items[id-1], true
}

// Len returns the number of interactions in the arena.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}
