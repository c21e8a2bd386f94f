// Package memory provides the in-process record store used by tests,
// examples and single-process runs. Records live in an id-ordered slice
// guarded by an RWMutex; appended payloads are copied so callers cannot
// mutate stored bytes.
package memory

import (
	"fmt"
	"iter"
	"sync"

	"github.com/loomlabs/loom/core"
)

// Store is an append-only in-memory record log.
type Store struct {
	mu      sync.RWMutex
	records []core.Record
	nextID  int64
}

var _ core.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{nextID: 1}
}

// Append assigns the next id and stores a copy of the record.
func (s *Store) Append(r core.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	r.Payload = append([]byte(nil), r.Payload...)
	s.records = append(s.records, r)
	return r.ID, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id int64) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := int(id - 1)
	if idx < 0 || idx >= len(s.records) {
		return core.Record{}, fmt.Errorf("record %d not found", id)
	}
	return copyRecord(s.records[idx]), nil
}

// List yields matching records in id order. The snapshot is taken when List
// is called; appends during iteration are not observed.
func (s *Store) List(f core.Filter) iter.Seq2[core.Record, error] {
	s.mu.RLock()
	snapshot := make([]core.Record, len(s.records))
	copy(snapshot, s.records)
	s.mu.RUnlock()

	return func(yield func(core.Record, error) bool) {
		for _, r := range snapshot {
			if !f.Matches(r) {
				continue
			}
			if !yield(copyRecord(r), nil) {
				return
			}
		}
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(r core.Record) core.Record {
	r.Payload = append([]byte(nil), r.Payload...)
	return r
}
