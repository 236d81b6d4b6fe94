// Package config provides configuration loading and management for wfvalidate.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete wfvalidate configuration
type Config struct {
	// Exclude adds exclusion globs to the built-in defaults
	Exclude []string `yaml:"exclude,omitempty"`
	// Weights overrides quality dimension weights
	Weights  map[string]float64 `yaml:"weights,omitempty"`
	Extended ExtendedConfig     `yaml:"extended"`
	Logic    LogicConfig        `yaml:"logic"`
	Syntax   SyntaxConfig       `yaml:"syntax"`
	Output   OutputConfig       `yaml:"output"`
	Publish  PublishConfig      `yaml:"publish"`
	Metrics  MetricsConfig      `yaml:"metrics"`
}

// ExtendedConfig enables the extended quality plugins
type ExtendedConfig struct {
	Enabled bool `yaml:"enabled"`
	// Config is the path to the extended plugin YAML file
	Config string `yaml:"config,omitempty"`
}

// LogicConfig configures the logic stage
type LogicConfig struct {
	RequiredSections []string `yaml:"required_sections,omitempty"`
	MinCheckpoints   int      `yaml:"min_checkpoints"`
}

// SyntaxConfig configures script syntax checks
type SyntaxConfig struct {
	// ScriptTimeout bounds each external interpreter run (default: 10s)
	ScriptTimeout time.Duration `yaml:"script_timeout"`
	// PowerShell is the interpreter used for .ps1 files (default: pwsh)
	PowerShell string `yaml:"powershell"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	// Format is text or json
	Format string `yaml:"format"`
}

// PublishConfig configures report publishing
type PublishConfig struct {
	// NATSURL is the NATS server URL (empty = do not publish)
	NATSURL string `yaml:"nats_url,omitempty"`
	// Subject is the subject reports are published on
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the metrics endpoint in watch mode
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logic: LogicConfig{
			RequiredSections: []string{"工作流简介", "目录结构", "标准流程", "自动生成区域"},
			MinCheckpoints:   2,
		},
		Syntax: SyntaxConfig{
			ScriptTimeout: 10 * time.Second,
			PowerShell:    "pwsh",
		},
		Output: OutputConfig{
			Format: "text",
		},
		Publish: PublishConfig{
			Subject: "workflow.validation.report",
		},
	}
}

// Validate checks the settings that cannot be repaired with a default
func (c *Config) Validate() error {
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("output.format must be text or json, got %q", c.Output.Format)
	}
	return nil
}

// Normalize replaces invalid values with defaults, logging each substitution
func (c *Config) Normalize(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()

	for name, w := range c.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			logger.Warn("Dropping invalid dimension weight", "dimension", name, "weight", w)
			delete(c.Weights, name)
		}
	}
	if c.Logic.MinCheckpoints < 0 {
		logger.Warn("Invalid logic.min_checkpoints, using default", "value", c.Logic.MinCheckpoints)
		c.Logic.MinCheckpoints = def.Logic.MinCheckpoints
	}
	if c.Syntax.ScriptTimeout <= 0 {
		logger.Warn("Invalid syntax.script_timeout, using default", "value", c.Syntax.ScriptTimeout)
		c.Syntax.ScriptTimeout = def.Syntax.ScriptTimeout
	}
	if c.Syntax.PowerShell == "" {
		c.Syntax.PowerShell = def.Syntax.PowerShell
	}
	if c.Publish.Subject == "" {
		c.Publish.Subject = def.Publish.Subject
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	c.Exclude = append(c.Exclude, other.Exclude...)
	if len(other.Weights) > 0 {
		if c.Weights == nil {
			c.Weights = make(map[string]float64, len(other.Weights))
		}
		for k, v := range other.Weights {
			c.Weights[k] = v
		}
	}

	// Extended
	if other.Extended.Enabled {
		c.Extended.Enabled = true
	}
	if other.Extended.Config != "" {
		c.Extended.Config = other.Extended.Config
	}

	// Logic
	if len(other.Logic.RequiredSections) > 0 {
		c.Logic.RequiredSections = other.Logic.RequiredSections
	}
	if other.Logic.MinCheckpoints != 0 {
		c.Logic.MinCheckpoints = other.Logic.MinCheckpoints
	}

	// Syntax
	if other.Syntax.ScriptTimeout != 0 {
		c.Syntax.ScriptTimeout = other.Syntax.ScriptTimeout
	}
	if other.Syntax.PowerShell != "" {
		c.Syntax.PowerShell = other.Syntax.PowerShell
	}

	// Output
	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}

	// Publish
	if other.Publish.NATSURL != "" {
		c.Publish.NATSURL = other.Publish.NATSURL
	}
	if other.Publish.Subject != "" {
		c.Publish.Subject = other.Publish.Subject
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
