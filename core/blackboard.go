package core

import (
	"sort"
	"sync"
)

// NamespaceCommon is readable and writable by every agent regardless of its
// config's allowed namespace set.
const NamespaceCommon = "common"

// NamespaceSet is the set of blackboard namespaces an agent may touch.
// The common namespace is always a member.
type NamespaceSet map[string]struct{}

// NewNamespaceSet builds a set from the given names, always including common.
func NewNamespaceSet(names ...string) NamespaceSet {
	s := NamespaceSet{NamespaceCommon: {}}
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Allows reports whether the namespace is a member of the set.
func (s NamespaceSet) Allows(ns string) bool {
	if ns == NamespaceCommon {
		return true
	}
	_, ok := s[ns]
	return ok
}

// Names returns the members in sorted order.
func (s NamespaceSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Blackboard is the session's partitioned shared state. Writes within a
// namespace are serialized; reads may run concurrently. Every access is
// checked against the caller's allowed namespace set and a denied access
// leaves the board untouched.
type Blackboard struct {
	mu         sync.RWMutex
	namespaces map[string]*namespaceState
}

type namespaceState struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewBlackboard returns an empty blackboard with the common namespace ready.
func NewBlackboard() *Blackboard {
	return &Blackboard{namespaces: map[string]*namespaceState{
		NamespaceCommon: {values: map[string]any{}},
	}}
}

// ns returns the namespace state, creating it when create is set.
func (b *Blackboard) ns(name string, create bool) *namespaceState {
	b.mu.RLock()
	st, ok := b.namespaces[name]
	b.mu.RUnlock()
	if ok || !create {
		return st
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok = b.namespaces[name]; ok {
		return st
	}
	st = &namespaceState{values: map[string]any{}}
	b.namespaces[name] = st
	return st
}

// Get reads a value. The caller is identified only for error reporting.
func (b *Blackboard) Get(agentID string, acl NamespaceSet, namespace, key string) (any, bool, error) {
	if !acl.Allows(namespace) {
		return nil, false, &PermissionError{AgentID: agentID, Namespace: namespace, Op: "read"}
	}
	st := b.ns(namespace, false)
	if st == nil {
		return nil, false, nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	v, ok := st.values[key]
	return v, ok, nil
}

// Set writes a value. A permission failure happens before the namespace is
// even created, so a denied write is invisible.
func (b *Blackboard) Set(agentID string, acl NamespaceSet, namespace, key string, value any) error {
	if !acl.Allows(namespace) {
		return &PermissionError{AgentID: agentID, Namespace: namespace, Op: "write"}
	}
	st := b.ns(namespace, true)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.values[key] = value
	return nil
}

// Keys lists the keys present in a namespace, sorted.
func (b *Blackboard) Keys(agentID string, acl NamespaceSet, namespace string) ([]string, error) {
	if !acl.Allows(namespace) {
		return nil, &PermissionError{AgentID: agentID, Namespace: namespace, Op: "list"}
	}
	st := b.ns(namespace, false)
	if st == nil {
		return []string{}, nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	keys := make([]string, 0, len(st.values))
	for k := range st.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot returns a copy of a namespace's contents without access checks.
// Intended for tests and read-only monitors.
func (b *Blackboard) Snapshot(namespace string) map[string]any {
	st := b.ns(namespace, false)
	if st == nil {
		return map[string]any{}
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]any, len(st.values))
	for k, v := range st.values {
		out[k] = v
	}
	return out
}
