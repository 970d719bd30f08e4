package plugin

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Priority orders a plugin's results against other plugins' results.
type Priority string

const (
	PriorityHigh    Priority = "High"
	PriorityDefault Priority = "Default"
	PriorityLow     Priority = "Low"
)

func (p Priority) valid() bool {
	return p == PriorityHigh || p == PriorityDefault || p == PriorityLow
}

// UnmarshalYAML accepts the variant name in any case; missing means Default.
func (p *Priority) UnmarshalYAML(n *yaml.Node) error {
	if n == nil || n.Tag == "!!null" {
		*p = PriorityDefault
		return nil
	}
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("priority must be one of High, Default, Low")
	}
	for _, candidate := range []Priority{PriorityHigh, PriorityDefault, PriorityLow} {
		if strings.EqualFold(n.Value, string(candidate)) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("invalid priority %q (valid: High, Default, Low)", n.Value)
}

// Binary is the executable a plugin is launched with.
type Binary struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// Icon is either a themed icon name or a mime type, written Name("...") or
// Mime("...") in the descriptor.
type Icon struct {
	Name string `yaml:"Name,omitempty"`
	Mime string `yaml:"Mime,omitempty"`
}

// Query controls when the launcher routes a search to the plugin.
type Query struct {
	Help        string   `yaml:"help,omitempty"`
	Isolate     bool     `yaml:"isolate"`
	IsolateWith string   `yaml:"isolate_with,omitempty"`
	NoSort      bool     `yaml:"no_sort"`
	Persistent  bool     `yaml:"persistent"`
	Priority    Priority `yaml:"priority"`
	Regex       string   `yaml:"regex,omitempty"`
}

// PluginConfig is the contents of a plugin.ron descriptor.
type PluginConfig struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Bin         *Binary `yaml:"bin"`
	Icon        *Icon   `yaml:"icon,omitempty"`
	Query       Query   `yaml:"query"`
	History     bool    `yaml:"history"`

	Descriptor string `yaml:"-"` // Absolute path of the plugin.ron it was read from
	Digest     string `yaml:"-"` // BLAKE3 of the descriptor bytes, hex encoded
}

// validateConfig checks the fields a launcher cannot do without.
func validateConfig(c *PluginConfig) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if c.Bin == nil || strings.TrimSpace(c.Bin.Path) == "" {
		return fmt.Errorf("bin.path is required")
	}
	if c.Query.Priority == "" {
		c.Query.Priority = PriorityDefault
	}
	if !c.Query.Priority.valid() {
		return fmt.Errorf("invalid priority %q", c.Query.Priority)
	}
	if c.Icon != nil && c.Icon.Name != "" && c.Icon.Mime != "" {
		return fmt.Errorf("icon must be either Name or Mime, not both")
	}
	return nil
}
