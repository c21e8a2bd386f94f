// Package registry holds the declarative definitions agents are built from:
// configs, tasks and templates. Registries are populated once when the
// environment loads (from YAML documents or programmatically) and are
// immutable afterwards, so concurrent reads need no synchronization.
package registry

import (
	"fmt"
	"sort"
)

// Registry is a read-only name→definition lookup. Build one with the
// functions in this package; never mutate it after load.
type Registry[T any] struct {
	items map[string]T
}

// newRegistry wraps the given map. Callers must not retain the map.
func newRegistry[T any](items map[string]T) *Registry[T] {
	if items == nil {
		items = map[string]T{}
	}
	return &Registry[T]{items: items}
}

// Get returns the definition registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	v, ok := r.items[name]
	return v, ok
}

// MustGet returns the definition or an error naming what is missing.
func (r *Registry[T]) MustGet(name, what string) (T, error) {
	v, ok := r.items[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", what, name)
	}
	return v, nil
}

// Names returns all registered names, sorted.
func (r *Registry[T]) Names() []string {
	out := make([]string, 0, len(r.items))
	for n := range r.items {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered definitions.
func (r *Registry[T]) Len() int { return len(r.items) }

// Set bundles the three registries an environment needs.
type Set struct {
	Configs   *Registry[ConfigDef]
	Tasks     *Registry[TaskDef]
	Templates *Registry[TemplateDef]
}

// NewSet validates the definitions and freezes them into a Set. Duplicate
// names and invalid definitions are rejected.
func NewSet(configs []ConfigDef, tasks []TaskDef, templates []TemplateDef) (*Set, error) {
	cfgMap := make(map[string]ConfigDef, len(configs))
	for _, c := range configs {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("config %q: %w", c.Name, err)
		}
		if _, dup := cfgMap[c.Name]; dup {
			return nil, fmt.Errorf("duplicate config %q", c.Name)
		}
		cfgMap[c.Name] = c
	}
	taskMap := make(map[string]TaskDef, len(tasks))
	for _, t := range tasks {
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("task %q: %w", t.Name, err)
		}
		if _, dup := taskMap[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.Name)
		}
		taskMap[t.Name] = t
	}
	tmplMap := make(map[string]TemplateDef, len(templates))
	for _, tp := range templates {
		if tp.Name == "" {
			return nil, fmt.Errorf("template with empty name")
		}
		if _, dup := tmplMap[tp.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", tp.Name)
		}
		tmplMap[tp.Name] = tp
	}
	// Cross-checks: configs reference templates, tasks reference tasks and
	// per-task config overrides.
	for _, c := range cfgMap {
		if _, ok := tmplMap[c.Template]; !ok {
			return nil, fmt.Errorf("config %q references unknown template %q", c.Name, c.Template)
		}
	}
	for _, t := range taskMap {
		for _, next := range t.TaskSequence {
			if _, ok := taskMap[next]; !ok {
				return nil, fmt.Errorf("task %q sequence references unknown task %q", t.Name, next)
			}
		}
		for next, cfg := range t.SequenceConfigs {
			if _, ok := taskMap[next]; !ok {
				return nil, fmt.Errorf("task %q sequence_configs references unknown task %q", t.Name, next)
			}
			if _, ok := cfgMap[cfg]; !ok {
				return nil, fmt.Errorf("task %q sequence_configs references unknown config %q", t.Name, cfg)
			}
		}
	}
	return &Set{
		Configs:   newRegistry(cfgMap),
		Tasks:     newRegistry(taskMap),
		Templates: newRegistry(tmplMap),
	}, nil
}
