package dispatcher

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preset is a named, reusable subject/body pair.
type Preset struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Subject     string `yaml:"subject" json:"subject"`
	Body        string `yaml:"body" json:"body"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// PresetCatalog holds presets by name.
type PresetCatalog struct {
	byName map[string]Preset
}

// LoadPresets reads a presets YAML file. An empty path yields an empty catalog.
func LoadPresets(path string) (*PresetCatalog, error) {
	if path == "" {
		return NewPresetCatalog(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes presets YAML.
func ParsePresets(data []byte) (*PresetCatalog, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return NewPresetCatalog(f.Presets)
}

// NewPresetCatalog indexes presets, rejecting blank or duplicate names.
func NewPresetCatalog(presets []Preset) (*PresetCatalog, error) {
	c := &PresetCatalog{byName: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("preset without name")
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", name)
		}
		p.Name = name
		c.byName[name] = p
	}
	return c, nil
}

// Get returns the named preset.
func (c *PresetCatalog) Get(name string) (Preset, bool) {
	if c == nil {
		return Preset{}, false
	}
	p, ok := c.byName[name]
	return p, ok
}

// List returns all presets sorted by name.
func (c *PresetCatalog) List() []Preset {
	if c == nil {
		return []Preset{}
	}
	out := make([]Preset, 0, len(c.byName))
	for _, p := range c.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Problems reports presets that would render badly: empty fields or
// tokens that are never substituted.
func (c *PresetCatalog) Problems() []string {
	var problems []string
	for _, p := range c.List() {
		if strings.TrimSpace(p.Subject) == "" {
			problems = append(problems, fmt.Sprintf("%s: subject is empty", p.Name))
		}
		if strings.TrimSpace(p.Body) == "" {
			problems = append(problems, fmt.Sprintf("%s: body is empty", p.Name))
		}
		for _, tok := range UnknownTokens(p.Subject + "\n" + p.Body) {
			problems = append(problems, fmt.Sprintf("%s: unknown token %s", p.Name, tok))
		}
	}
	return problems
}
