// Package prompt renders registered templates into oracle prompts. Parsed
// templates are cached in a small LRU keyed by template name, so repeated
// steps do not re-parse the same text.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/loomlabs/loom/registry"
)

// DefaultCacheSize bounds the parsed-template cache.
const DefaultCacheSize = 64

// Renderer resolves template names through the registry and executes them
// with Go text/template semantics. Safe for concurrent use.
type Renderer struct {
	templates *registry.Registry[registry.TemplateDef]
	cache     *lru.Cache[string, *template.Template]
}

// NewRenderer builds a renderer over the given template registry.
func NewRenderer(templates *registry.Registry[registry.TemplateDef]) (*Renderer, error) {
	cache, err := lru.New[string, *template.Template](DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: templates, cache: cache}, nil
}

// Render executes the named template with vars and returns the text.
func (r *Renderer) Render(name string, vars map[string]any) (string, error) {
	def, ok := r.templates.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	tmpl, err := r.parsed(name, def.Text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}
	return buf.String(), nil
}

// RenderText executes inline template text (no registry lookup, no caching).
// Used for task prompts which carry their own text.
func RenderText(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}
	tmpl, err := template.New("inline").Funcs(funcs()).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) parsed(name, text string) (*template.Template, error) {
	if tmpl, ok := r.cache.Get(name); ok {
		return tmpl, nil
	}
	tmpl, err := template.New(name).Funcs(funcs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}
	r.cache.Add(name, tmpl)
	return tmpl, nil
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"default": func(defaultVal, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join": func(sep string, items []any) string {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = fmt.Sprintf("%v", item)
			}
			return strings.Join(parts, sep)
		},
	}
}
