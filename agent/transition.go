package agent

import (
	"regexp"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/registry"
)

// applyTransitions evaluates the active config's transition rules against a
// freshly pushed interaction and applies the first matching swap of each
// rule. Rules fire at most once per agent and are purely forward-looking:
// the swap only affects renders and dispatches after this push.
func (a *Agent) applyTransitions(it core.Interaction) {
	for i, rule := range a.cfg.Transitions {
		if a.fired[i] || !a.triggered(rule.Trigger, it) {
			continue
		}
		a.fired[i] = true
		if rule.Swap.Template != "" {
			a.cfg.Template = rule.Swap.Template
		}
		if len(rule.Swap.Tools) > 0 {
			a.cfg.Tools = append([]string(nil), rule.Swap.Tools...)
		}
		if rule.Swap.Model != "" {
			a.cfg.Model = rule.Swap.Model
		}
		a.deps.logger().Info("config transition fired",
			"agent_id", a.id,
			"config", a.cfg.Name,
			"template", a.cfg.Template,
			"model", a.cfg.Model,
		)
	}
}

func (a *Agent) triggered(t registry.Trigger, it core.Interaction) bool {
	switch {
	case t.ToolFired != "":
		tr, ok := it.Payload.(core.ToolResult)
		return ok && tr.Tool == t.ToolFired

	case t.PromptPattern != "":
		var text string
		switch p := it.Payload.(type) {
		case core.AskOracle:
			text = p.Rendered
		case core.OracleResponse:
			text = p.Content
		default:
			return false
		}
		// Pattern validity was checked at registry load.
		re, err := regexp.Compile(t.PromptPattern)
		return err == nil && re.MatchString(text)

	case t.StepCount > 0:
		return a.oracleCalls >= t.StepCount

	default:
		return false
	}
}
