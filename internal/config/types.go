package config

import (
	"os"

	"github.com/mattjoyce/plugscan/internal/paths"
)

// Config represents the complete plugscan configuration.
type Config struct {
	Service     ServiceConfig `yaml:"service"`
	PluginRoots []string      `yaml:"plugin_roots,omitempty"` // Highest priority first
	Loader      LoaderConfig  `yaml:"loader"`
	API         APIConfig     `yaml:"api"`

	// Source is the file the config was read from; empty for defaults.
	Source string `yaml:"-" json:"-"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// PIDFile, when set, makes `system serve` hold an exclusive lock there.
	PIDFile string `yaml:"pid_file,omitempty"`
}

// LoaderConfig tunes the asynchronous load pipeline.
type LoaderConfig struct {
	// MaxConcurrency caps in-flight descriptor loads; 0 means the logical core count.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
	// Token enables bearer auth on /plugins when non-empty. Supports ${VAR}.
	Token string `yaml:"token,omitempty"`
	// Metrics serves Prometheus metrics on /metrics.
	Metrics bool `yaml:"metrics"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "plugscan",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Loader: LoaderConfig{
			MaxConcurrency: 0,
		},
		API: APIConfig{
			Listen:  "127.0.0.1:8089",
			Metrics: true,
		},
	}
}

// Resolver returns the configured roots, or the conventional roots for the
// service name when none are configured.
func (c *Config) Resolver() paths.Static {
	if len(c.PluginRoots) > 0 {
		return paths.Clean(c.PluginRoots)
	}
	return paths.Default(c.Service.Name, os.Getenv)
}
