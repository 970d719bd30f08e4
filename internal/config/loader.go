package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding a config path.
const EnvConfigPath = "PLUGSCAN_CONFIG"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrNoConfig is returned by Locate when no config file was found implicitly.
var ErrNoConfig = errors.New("no config file found")

// Load reads and parses configuration from a file.
// A directory is accepted and means <dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.Source = absPath
	cfg.Service.PIDFile = interpolateEnv(cfg.Service.PIDFile)

	if err := expandRoots(cfg); err != nil {
		return nil, err
	}
	if err := expandToken(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", absPath, err)
	}
	return cfg, nil
}

// Locate finds the config file to use.
// Priority order: explicit flag value, $PLUGSCAN_CONFIG, ~/.config/plugscan/config.yaml.
// An explicit path is returned as-is even if missing so Load reports it;
// ErrNoConfig means the caller should fall back to Defaults.
func Locate(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "plugscan", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, nil
		}
	}
	return "", ErrNoConfig
}

// LoadOrDefault locates and loads the config, returning Defaults when no
// config exists at any implicit location.
func LoadOrDefault(flagValue string) (*Config, error) {
	path, err := Locate(flagValue)
	if errors.Is(err, ErrNoConfig) {
		cfg := Defaults()
		return cfg, validate(cfg)
	}
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// expandRoots interpolates ${VAR} in plugin roots. Unlike the rest of the
// file an unset variable here is an error: an unexpanded root would silently
// scan a literal "${HOME}" directory.
func expandRoots(cfg *Config) error {
	for i, root := range cfg.PluginRoots {
		expanded := interpolateEnv(root)
		if m := envVarPattern.FindStringSubmatch(expanded); m != nil {
			return fmt.Errorf("plugin_roots[%d]: environment variable ${%s} is not set", i, m[1])
		}
		cfg.PluginRoots[i] = expanded
	}
	return nil
}

// expandToken interpolates ${VAR} in api.token. An unset variable is an error
// so a literal placeholder never becomes the accepted key.
func expandToken(cfg *Config) error {
	expanded := interpolateEnv(cfg.API.Token)
	if m := envVarPattern.FindStringSubmatch(expanded); m != nil {
		return fmt.Errorf("api.token: environment variable ${%s} is not set", m[1])
	}
	cfg.API.Token = expanded
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[cfg.Service.LogFormat] {
		return fmt.Errorf("service.log_format must be one of: json, text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Loader.MaxConcurrency < 0 {
		return fmt.Errorf("loader.max_concurrency must not be negative")
	}

	if cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}

	return nil
}
