package extended

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/c360studio/wfvalidate/source"
)

// Manager runs the extended plugins and applies dimension overrides.
type Manager struct {
	mu      sync.RWMutex
	order   []string
	plugins map[string]Plugin
	config  *Config
	logger  *slog.Logger
}

// NewManager registers the built-in plugins enabled by cfg. A nil cfg means
// DefaultConfig.
func NewManager(cfg *Config, excluder *source.Excluder, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{plugins: make(map[string]Plugin), config: cfg, logger: logger}

	if cfg.CustomPluginsDir != "" {
		logger.Warn("Custom plugin directories are not loaded; register plugins from code", "dir", cfg.CustomPluginsDir)
	}

	builtins := []Plugin{
		NewSecurity(excluder, logger),
		NewPerformance(excluder, logger),
		NewTestCoverage(excluder, logger),
	}
	for _, p := range builtins {
		if cfg.enabled(p.Name()) {
			m.Register(p)
		}
	}
	return m
}

// Register adds p, replacing any plugin with the same name.
func (m *Manager) Register(p Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plugins[p.Name()]; !exists {
		m.order = append(m.order, p.Name())
	}
	m.plugins[p.Name()] = p
	m.logger.Debug("Registered extended plugin", "plugin", p.Name(), "version", p.Version())
}

// Plugins describes the registered plugins in registration order.
func (m *Manager) Plugins() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.order))
	for _, name := range m.order {
		p := m.plugins[name]
		infos = append(infos, Info{
			Name:        name,
			Version:     p.Version(),
			Description: p.Description(),
			Weight:      m.weight(p),
		})
	}
	return infos
}

// Config returns the active configuration.
func (m *Manager) Config() *Config {
	return m.config
}

func (m *Manager) weight(p Plugin) float64 {
	if w, ok := m.config.PluginWeights[p.Name()]; ok {
		return w
	}
	return p.Weight()
}

// AssessAll runs every plugin. Scores are clamped to [0, 10]; a failing
// plugin is logged and scores 0.0.
func (m *Manager) AssessAll(dir string) map[string]float64 {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	plugins := make([]Plugin, 0, len(order))
	for _, name := range order {
		plugins = append(plugins, m.plugins[name])
	}
	m.mu.RUnlock()

	scores := make(map[string]float64, len(plugins))
	for _, p := range plugins {
		score, err := m.assess(p, dir)
		if err != nil {
			m.logger.Error("Extended plugin failed", "plugin", p.Name(), "error", err)
			score = 0
		}
		scores[p.Name()] = math.Max(0, math.Min(score, 10))
		m.logger.Debug("Extended plugin assessed", "plugin", p.Name(), "score", scores[p.Name()])
	}
	return scores
}

func (m *Manager) assess(p Plugin, dir string) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	score, err = p.Assess(dir)
	if err == nil && math.IsNaN(score) {
		err = fmt.Errorf("score is NaN")
	}
	return score, err
}

// WeightedScore is the weighted mean of scores using the configured plugin
// weights (default 1.0 for plugins without a configured weight).
func (m *Manager) WeightedScore(scores map[string]float64) float64 {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum, total float64
	for _, name := range names {
		w, ok := m.config.PluginWeights[name]
		if !ok {
			w = 1.0
		}
		sum += scores[name] * w
		total += w
	}
	if total <= 0 {
		return 0
	}
	return sum / total
}

// ApplyOverrides replaces entries of dimensions according to the configured
// overrides and returns the names of the replaced dimensions, sorted. An
// override applies only to a dimension already present, only when enabled,
// only when its plugin and weight lists have equal length, and only when the
// plugins it names that produced a score carry a positive total weight.
func (m *Manager) ApplyOverrides(dimensions, pluginScores map[string]float64) []string {
	names := make([]string, 0, len(m.config.DimensionOverrides))
	for name := range m.config.DimensionOverrides {
		names = append(names, name)
	}
	sort.Strings(names)

	var overridden []string
	for _, dim := range names {
		o := m.config.DimensionOverrides[dim]
		if !o.Enabled {
			continue
		}
		if _, ok := dimensions[dim]; !ok {
			m.logger.Debug("Override for unknown dimension ignored", "dimension", dim)
			continue
		}
		if len(o.Plugins) != len(o.Weights) {
			m.logger.Warn("Override disabled: plugins and weights differ in length",
				"dimension", dim, "plugins", len(o.Plugins), "weights", len(o.Weights))
			continue
		}

		var sum, total float64
		for i, name := range o.Plugins {
			score, ok := pluginScores[name]
			if !ok {
				continue
			}
			sum += score * o.Weights[i]
			total += o.Weights[i]
		}
		if total <= 0 {
			continue
		}
		dimensions[dim] = sum / total
		overridden = append(overridden, dim)
		m.logger.Info("Dimension overridden by extended plugins", "dimension", dim, "score", dimensions[dim])
	}
	return overridden
}

// Overlay runs every plugin against dir and applies the overrides to
// scores. It satisfies quality.Overlay.
func (m *Manager) Overlay(dir string, scores map[string]float64) (map[string]float64, []string) {
	pluginScores := m.AssessAll(dir)
	return pluginScores, m.ApplyOverrides(scores, pluginScores)
}
