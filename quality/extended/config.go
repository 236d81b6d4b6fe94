package extended

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config selects and weights the extended plugins and declares which
// standard dimensions they replace.
type Config struct {
	// EnabledPlugins lists the built-in plugins to register.
	EnabledPlugins []string `yaml:"enabled_plugins"`
	// PluginWeights weights plugins in WeightedScore (default 1.0).
	PluginWeights map[string]float64 `yaml:"plugin_weights"`
	// DimensionOverrides replaces standard dimensions with weighted blends
	// of plugin scores.
	DimensionOverrides map[string]DimensionOverride `yaml:"dimension_overrides,omitempty"`
	// CustomPluginsDir is accepted for compatibility but never loaded;
	// custom plugins are added with Manager.Register.
	CustomPluginsDir string `yaml:"custom_plugins_dir,omitempty"`
	// PluginSettings is opaque per-plugin configuration.
	PluginSettings map[string]map[string]any `yaml:"plugin_settings,omitempty"`
}

// DimensionOverride blends plugin scores into one dimension. Plugins and
// Weights are parallel lists; a length mismatch disables the override.
type DimensionOverride struct {
	Enabled bool      `yaml:"enabled"`
	Plugins []string  `yaml:"plugins"`
	Weights []float64 `yaml:"weights"`
}

// DefaultConfig enables the three built-in plugins at weight 1.0.
func DefaultConfig() *Config {
	return &Config{
		EnabledPlugins: []string{"security", "performance", "test_coverage"},
		PluginWeights: map[string]float64{
			"security":      1.0,
			"performance":   1.0,
			"test_coverage": 1.0,
		},
	}
}

// SampleConfig is a starting point for a user-edited configuration file.
func SampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.PluginWeights = map[string]float64{
		"security":      1.5,
		"performance":   1.0,
		"test_coverage": 1.2,
	}
	cfg.DimensionOverrides = map[string]DimensionOverride{
		"maintainability": {
			Enabled: false,
			Plugins: []string{"security", "test_coverage"},
			Weights: []float64{0.6, 0.4},
		},
	}
	cfg.PluginSettings = map[string]map[string]any{
		"security":      {"strict_mode": true, "check_dependencies": true},
		"performance":   {"performance_threshold": 0.8},
		"test_coverage": {"minimum_coverage": 0.7},
	}
	return cfg
}

// LoadConfig reads path over the defaults. A missing, unreadable or
// unparseable file yields the defaults; the problem is logged at debug level.
func LoadConfig(path string, logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()
	if path == "" {
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("Using default plugin config", "path", path, "error", err)
		return cfg
	}

	loaded := DefaultConfig()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		logger.Debug("Using default plugin config", "path", path, "error", err)
		return cfg
	}
	return loaded
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal plugin config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write plugin config: %w", err)
	}
	return nil
}

func (c *Config) enabled(name string) bool {
	for _, n := range c.EnabledPlugins {
		if n == name {
			return true
		}
	}
	return false
}
