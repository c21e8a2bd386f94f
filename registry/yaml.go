package registry

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a definition file: three top-level lists.
type Document struct {
	Configs   []ConfigDef   `yaml:"configs"`
	Tasks     []TaskDef     `yaml:"tasks"`
	Templates []TemplateDef `yaml:"templates"`
}

// TemplateDef names a prompt template body. Rendering happens in the prompt
// package; the registry only stores the text.
type TemplateDef struct {
	Name string `yaml:"name" json:"name"`
	Text string `yaml:"text" json:"text"`
}

// Load reads a definition document from r and freezes it into a Set.
func Load(r io.Reader) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	return NewSet(doc.Configs, doc.Tasks, doc.Templates)
}

// LoadFile reads a definition document from the named file.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
