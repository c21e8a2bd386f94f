package registry

import (
	"fmt"
	"regexp"

	"github.com/loomlabs/loom/core"
)

// ConfigDef describes one agent configuration: which template renders its
// prompts, which model answers them, which tools it may call, which
// blackboard namespaces it may touch, and the transition rules that can swap
// any of those mid-run.
type ConfigDef struct {
	Name              string           `yaml:"name" json:"name"`
	Description       string           `yaml:"description,omitempty" json:"description,omitempty"`
	Template          string           `yaml:"template" json:"template"`
	Model             string           `yaml:"model" json:"model"`
	Tools             []string         `yaml:"tools,omitempty" json:"tools,omitempty"`
	Interactive       bool             `yaml:"interactive,omitempty" json:"interactive,omitempty"`
	AllowedNamespaces []string         `yaml:"allowed_namespaces,omitempty" json:"allowed_namespaces,omitempty"`
	Transitions       []TransitionRule `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

// NamespaceSet returns the config's allowed namespaces as a core set
// (common is always included).
func (c ConfigDef) NamespaceSet() core.NamespaceSet {
	return core.NewNamespaceSet(c.AllowedNamespaces...)
}

func (c ConfigDef) validate() error {
	if c.Name == "" {
		return fmt.Errorf("empty name")
	}
	if c.Template == "" {
		return fmt.Errorf("template is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	for i, r := range c.Transitions {
		if err := r.validate(); err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
	}
	return nil
}

// Trigger fires a transition rule. Exactly one condition must be set: a tool
// name that fired, a pattern matched against prompts/responses, or a
// step-count threshold.
type Trigger struct {
	ToolFired     string `yaml:"tool_fired,omitempty" json:"tool_fired,omitempty"`
	PromptPattern string `yaml:"prompt_pattern,omitempty" json:"prompt_pattern,omitempty"`
	StepCount     int    `yaml:"step_count,omitempty" json:"step_count,omitempty"`
}

// Swap is the replacement applied when a trigger fires. Empty fields keep the
// current value.
type Swap struct {
	Template string   `yaml:"template,omitempty" json:"template,omitempty"`
	Tools    []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	Model    string   `yaml:"model,omitempty" json:"model,omitempty"`
}

// TransitionRule pairs a trigger with its replacement. Rules are purely
// forward-looking: firing one never rewrites past interactions.
type TransitionRule struct {
	Trigger Trigger `yaml:"trigger" json:"trigger"`
	Swap    Swap    `yaml:"swap" json:"swap"`
}

func (r TransitionRule) validate() error {
	set := 0
	if r.Trigger.ToolFired != "" {
		set++
	}
	if r.Trigger.PromptPattern != "" {
		set++
		if _, err := regexp.Compile(r.Trigger.PromptPattern); err != nil {
			return fmt.Errorf("invalid prompt_pattern: %w", err)
		}
	}
	if r.Trigger.StepCount > 0 {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one trigger condition must be set")
	}
	if r.Swap.Template == "" && len(r.Swap.Tools) == 0 && r.Swap.Model == "" {
		return fmt.Errorf("swap must replace at least one of template, tools, model")
	}
	return nil
}

// ParamSpec declares one task parameter.
type ParamSpec struct {
	Type        string `yaml:"type" json:"type"` // string, integer, number, boolean, array, object
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
}

// TaskDef describes one runnable task: its prompt, declared parameters and
// an optional task_sequence chained after completion.
type TaskDef struct {
	Name            string               `yaml:"name" json:"name"`
	Description     string               `yaml:"description,omitempty" json:"description,omitempty"`
	Prompt          string               `yaml:"prompt" json:"prompt"`
	Params          map[string]ParamSpec `yaml:"params,omitempty" json:"params,omitempty"`
	TaskSequence    []string             `yaml:"task_sequence,omitempty" json:"task_sequence,omitempty"`
	PassResultAs    string               `yaml:"pass_result_as,omitempty" json:"pass_result_as,omitempty"`
	SequenceConfigs map[string]string    `yaml:"sequence_configs,omitempty" json:"sequence_configs,omitempty"`
}

func (t TaskDef) validate() error {
	if t.Name == "" {
		return fmt.Errorf("empty name")
	}
	if t.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(t.TaskSequence) > 0 && t.PassResultAs == "" {
		return fmt.Errorf("task_sequence requires pass_result_as")
	}
	return nil
}

// BindParams validates params against the declared specs, applies defaults
// and fails fast with a core.ValidationError before anything is committed.
func (t TaskDef) BindParams(params map[string]any) (map[string]any, error) {
	bound := make(map[string]any, len(params))
	for k, v := range params {
		bound[k] = v
	}
	for name, spec := range t.Params {
		v, present := bound[name]
		if !present {
			if spec.Default != nil {
				bound[name] = spec.Default
				continue
			}
			if spec.Required {
				return nil, &core.ValidationError{Field: name, Message: "required parameter is missing"}
			}
			continue
		}
		if !matchesType(v, spec.Type) {
			return nil, &core.ValidationError{
				Field:   name,
				Message: fmt.Sprintf("expected type %s, got %T", spec.Type, v),
				Value:   v,
			}
		}
	}
	return bound, nil
}

// matchesType checks a value against a JSON-schema style type name. Unknown
// or empty type names accept anything.
func matchesType(v any, typ string) bool {
	if v == nil {
		return true
	}
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON numbers decode as float64
			return n == float64(int64(n))
		}
		return false
	case "number":
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
