// Package prompt turns citation bundles into LLM instructions in one of the
// teaching styles.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownStyle = errors.New("unknown teaching style")

const DefaultStyle = "simple"

type Style struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description" json:"description"`
	Instruction string `yaml:"instruction" json:"instruction"`
	// UsesGame adds the subject's game to the instruction.
	UsesGame bool `yaml:"uses_game" json:"uses_game"`
}

// Catalog is the set of teaching styles keyed by lower-case name.
type Catalog struct {
	styles map[string]Style
}

func DefaultCatalog() *Catalog {
	return &Catalog{styles: map[string]Style{
		"genz": {
			Name:        "genz",
			Description: "Gen-Z slang, memes and relatable references",
			Instruction: "Explain using Gen-Z slang, memes, and relatable references. Be casual and fun.",
		},
		"mnemonic": {
			Name:        "mnemonic",
			Description: "Memory tricks and mnemonics using video game references",
			Instruction: "Create memorable mnemonics and memory tricks using video game references.",
			UsesGame:    true,
		},
		"simple": {
			Name:        "simple",
			Description: "Clear, simple explanations with examples",
			Instruction: "Explain in clear, simple terms with examples.",
		},
		"detailed": {
			Name:        "detailed",
			Description: "Comprehensive explanations with technical accuracy",
			Instruction: "Provide comprehensive, detailed explanations with technical accuracy.",
		},
	}}
}

// LoadCatalog returns the default catalog overlaid with the styles in a YAML
// file mapping style name to {description, instruction, uses_game}. An empty
// path returns the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read styles file failed: %w", err)
	}
	var overrides map[string]Style
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse styles file failed: %w", err)
	}
	for name, s := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || strings.TrimSpace(s.Instruction) == "" {
			return nil, fmt.Errorf("style %q needs an instruction", name)
		}
		s.Name = name
		c.styles[name] = s
	}
	return c, nil
}

// Lookup finds a style by name, case-insensitively.
func (c *Catalog) Lookup(name string) (Style, error) {
	s, ok := c.styles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Style{}, fmt.Errorf("%q: %w", name, ErrUnknownStyle)
	}
	return s, nil
}

// Styles lists every style sorted by name.
func (c *Catalog) Styles() []Style {
	out := make([]Style, 0, len(c.styles))
	for _, s := range c.styles {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists the style names sorted.
func (c *Catalog) Names() []string {
	styles := c.Styles()
	names := make([]string, len(styles))
	for i, s := range styles {
		names[i] = s.Name
	}
	return names
}
