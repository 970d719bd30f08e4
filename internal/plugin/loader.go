package plugin

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/plugscan/internal/ron"
)

// LoadedPlugin is one plugin emitted by a pipeline run.
type LoadedPlugin struct {
	Source  string         // Plugin directory
	Config  *PluginConfig  // Parsed descriptor
	Pattern *regexp.Regexp // Compiled query.regex; nil when there is none
}

//go:generate mockgen -destination=mocks/mock_loader.go -package=mocks github.com/mattjoyce/plugscan/internal/plugin ConfigLoader

// ConfigLoader turns a candidate into a LoadedPlugin. Any failure is reported
// as ok == false; callers skip the candidate without knowing why.
type ConfigLoader interface {
	Load(source, descriptor string) (LoadedPlugin, bool)
}

// LoaderFunc adapts a function to ConfigLoader.
type LoaderFunc func(source, descriptor string) (LoadedPlugin, bool)

// Load calls f.
func (f LoaderFunc) Load(source, descriptor string) (LoadedPlugin, bool) {
	return f(source, descriptor)
}

// RONLoader reads plugin.ron descriptors from disk.
type RONLoader struct {
	logger *slog.Logger
}

// NewRONLoader creates a RONLoader. A nil logger discards.
func NewRONLoader(logger *slog.Logger) *RONLoader {
	if logger == nil {
		logger = discardLogger()
	}
	return &RONLoader{logger: logger}
}

// Load implements ConfigLoader. Failures are logged and reported as absent.
func (l *RONLoader) Load(source, descriptor string) (LoadedPlugin, bool) {
	lp, err := l.Parse(source, descriptor)
	if err != nil {
		l.logger.Warn("failed to load plugin", "source", source, "descriptor", descriptor, "error", err.Error())
		return LoadedPlugin{}, false
	}
	return lp, true
}

// Parse is Load with the failure reason kept. An invalid query.regex is not
// a failure: the plugin loads without a pattern.
func (l *RONLoader) Parse(source, descriptor string) (LoadedPlugin, error) {
	data, err := os.ReadFile(descriptor)
	if err != nil {
		return LoadedPlugin{}, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var cfg PluginConfig
	if err := ron.Unmarshal(data, &cfg); err != nil {
		return LoadedPlugin{}, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return LoadedPlugin{}, fmt.Errorf("invalid descriptor: %w", err)
	}

	if !filepath.IsAbs(cfg.Bin.Path) {
		cfg.Bin.Path = filepath.Join(source, cfg.Bin.Path)
	}
	sum := blake3.Sum256(data)
	cfg.Descriptor = descriptor
	cfg.Digest = hex.EncodeToString(sum[:])

	var pattern *regexp.Regexp
	if cfg.Query.Regex != "" {
		pattern, err = regexp.Compile(cfg.Query.Regex)
		if err != nil {
			l.logger.Warn("ignoring invalid query regex", "plugin", cfg.Name, "descriptor", descriptor, "error", err.Error())
			pattern = nil
		}
	}

	return LoadedPlugin{Source: source, Config: &cfg, Pattern: pattern}, nil
}
