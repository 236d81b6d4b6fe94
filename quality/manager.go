package quality

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/c360studio/wfvalidate/source"
)

// DefaultWeights are the standard dimension weights.
var DefaultWeights = map[string]float64{
	"completeness":    0.30,
	"usability":       0.25,
	"maintainability": 0.25,
	"documentation":   0.10,
	"extensibility":   0.10,
}

// Grades in descending order of their minimum score.
const (
	GradeExcellent        = "excellent"
	GradeGood             = "good"
	GradeModerate         = "moderate"
	GradeFair             = "fair"
	GradeNeedsImprovement = "needs improvement"
)

const maxRecommendations = 5

// Overlay may replace dimension scores after the plugins ran and before
// aggregation. It returns its own per-plugin scores and the names of the
// dimensions it replaced in scores.
type Overlay interface {
	Overlay(dir string, scores map[string]float64) (pluginScores map[string]float64, overridden []string)
}

// Summary condenses the plugin details of one assessment.
type Summary struct {
	TotalChecks        int      `json:"total_checks"`
	PassedChecks       int      `json:"passed_checks"`
	FailedChecks       int      `json:"failed_checks"`
	BestDimension      string   `json:"best_dimension"`
	WorstDimension     string   `json:"worst_dimension"`
	TopRecommendations []string `json:"top_recommendations"`
}

// Assessment is the outcome of AssessQuality.
type Assessment struct {
	OverallScore    float64            `json:"overall_score"`
	Grade           string             `json:"grade"`
	DimensionScores map[string]float64 `json:"details"`
	PluginDetails   map[string]*Detail `json:"plugin_details"`
	Weights         map[string]float64 `json:"weights"`
	Summary         Summary            `json:"summary"`
	PluginScores    map[string]float64 `json:"plugin_scores,omitempty"`
	Overridden      []string           `json:"overridden,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithWeights overrides individual dimension weights.
func WithWeights(weights map[string]float64) Option {
	return func(m *Manager) {
		m.pendingWeights = weights
	}
}

// WithExcluder sets the exclusion set used by the standard plugins.
func WithExcluder(e *source.Excluder) Option {
	return func(m *Manager) {
		m.excluder = e
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithOverlay installs an overlay that may replace dimension scores.
func WithOverlay(o Overlay) Option {
	return func(m *Manager) {
		m.overlay = o
	}
}

// Manager owns the plugin registry and the dimension weights.
// Assessments may run concurrently; registration and weight updates are
// serialized against them.
type Manager struct {
	mu      sync.RWMutex
	order   []string
	plugins map[string]Plugin
	weights map[string]float64

	pendingWeights map[string]float64
	excluder       *source.Excluder
	overlay        Overlay
	logger         *slog.Logger
}

// NewManager creates a manager with the five standard plugins registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		plugins: make(map[string]Plugin),
		weights: make(map[string]float64, len(DefaultWeights)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	for k, v := range DefaultWeights {
		m.weights[k] = v
	}

	for _, p := range StandardPlugins(m.excluder, m.logger) {
		m.Register(p)
	}
	if m.pendingWeights != nil {
		m.UpdateWeights(m.pendingWeights)
		m.pendingWeights = nil
	}
	return m
}

// StandardPlugins returns new instances of the five standard plugins.
func StandardPlugins(excluder *source.Excluder, logger *slog.Logger) []Plugin {
	return []Plugin{
		NewCompleteness(excluder, logger),
		NewUsability(excluder, logger),
		NewMaintainability(excluder, logger),
		NewDocumentation(excluder, logger),
		NewExtensibility(excluder, logger),
	}
}

// Register adds p, replacing any plugin with the same name in place.
func (m *Manager) Register(p Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if _, exists := m.plugins[name]; !exists {
		m.order = append(m.order, name)
	} else {
		m.logger.Info("Replacing quality plugin", "plugin", name)
	}
	m.plugins[name] = p
}

// Unregister removes the named plugin. It reports whether one was removed.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plugins[name]; !ok {
		return false
	}
	delete(m.plugins, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Plugin returns the named plugin, if registered.
func (m *Manager) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[name]
	return p, ok
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
			MaxScore:    p.MaxScore(),
			Weight:      m.weightLocked(name),
		})
	}
	return infos
}

// Weights returns a copy of the configured weights.
func (m *Manager) Weights() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.weights))
	for k, v := range m.weights {
		out[k] = v
	}
	return out
}

// UpdateWeights merges weights into the configured weights. Negative or
// non-finite values are dropped. A total outside [0.8, 1.2] is allowed but
// logged, since aggregation re-normalizes.
func (m *Manager) UpdateWeights(weights map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			m.logger.Warn("Ignoring invalid dimension weight", "dimension", name, "weight", w)
			continue
		}
		m.weights[name] = w
	}

	total := 0.0
	for _, w := range m.weights {
		total += w
	}
	if total < 0.8 || total > 1.2 {
		m.logger.Warn("Dimension weights do not sum to 1", "total", total)
	}
}

func (m *Manager) weightLocked(name string) float64 {
	if w, ok := m.weights[name]; ok {
		return w
	}
	if p, ok := m.plugins[name]; ok {
		return p.WeightHint()
	}
	return 0
}

// AssessQuality runs every registered plugin against dir and aggregates the
// results. Plugin failures score 0.0; only a missing or non-directory dir
// returns an error.
func (m *Manager) AssessQuality(dir string) (*Assessment, error) {
	if err := source.CheckRoot(dir); err != nil {
		return nil, fmt.Errorf("assess quality: %w", err)
	}

	m.mu.RLock()
	order := append([]string(nil), m.order...)
	plugins := make(map[string]Plugin, len(m.plugins))
	weights := make(map[string]float64, len(order))
	for _, name := range order {
		plugins[name] = m.plugins[name]
		weights[name] = m.weightLocked(name)
	}
	overlay := m.overlay
	m.mu.RUnlock()

	a := &Assessment{
		DimensionScores: make(map[string]float64, len(order)),
		PluginDetails:   make(map[string]*Detail, len(order)),
		Weights:         weights,
	}

	for _, name := range order {
		detail := m.runPlugin(plugins[name], dir)
		a.DimensionScores[name] = detail.Score
		a.PluginDetails[name] = detail
	}

	if overlay != nil {
		a.PluginScores, a.Overridden = overlay.Overlay(dir, a.DimensionScores)
		sort.Strings(a.Overridden)
		for _, dim := range a.Overridden {
			d, ok := a.PluginDetails[dim]
			if !ok {
				continue
			}
			replaced := *d
			replaced.Score = a.DimensionScores[dim]
			a.PluginDetails[dim] = &replaced
		}
	}

	a.OverallScore = WeightedScore(a.DimensionScores, weights)
	a.Grade = Grade(a.OverallScore)
	a.Summary = summarize(order, a.DimensionScores, a.PluginDetails)

	m.logger.Info("Quality assessed", "dir", dir, "score", a.OverallScore, "grade", a.Grade)
	return a, nil
}

// runPlugin isolates plugin failures, including panics. The detail score is
// the dimension score; Assess is not called.
func (m *Manager) runPlugin(p Plugin, dir string) (detail *Detail) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Quality plugin panicked", "plugin", p.Name(), "panic", r)
			detail = failedDetail(p.Name(), fmt.Errorf("panic: %v", r))
		}
	}()

	d, err := p.AssessDetails(dir)
	if err != nil {
		m.logger.Error("Quality plugin failed", "plugin", p.Name(), "error", err)
		return failedDetail(p.Name(), err)
	}
	if d == nil {
		return failedDetail(p.Name(), fmt.Errorf("no result"))
	}

	out := *d
	out.Score = clamp(out.Score, 0, p.MaxScore())
	if len(out.FailedChecks) == 0 {
		out.Recommendations = []string{}
	}
	return &out
}

func failedDetail(name string, err error) *Detail {
	return &Detail{
		Score:           0,
		PassedChecks:    []string{},
		FailedChecks:    []string{fmt.Sprintf("plugin %s failed: %v", name, err)},
		Recommendations: []string{"Check the plugin configuration and directory permissions"},
	}
}

// WeightedScore combines scores with weights. Dimensions are summed in
// sorted order so the result does not depend on registration order. When the
// applied weights do not total 1 the sum is re-normalized. The result is
// clamped to [0, 10].
func WeightedScore(scores, weights map[string]float64) float64 {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum, total float64
	for _, name := range names {
		w, ok := weights[name]
		if !ok || w <= 0 {
			continue
		}
		sum += scores[name] * w
		total += w
	}
	if total == 0 {
		return 0
	}
	if math.Abs(total-1) > 1e-9 {
		sum /= total
	}
	return clamp(sum, 0, DefaultMaxScore)
}

// Grade maps an overall score to its label.
func Grade(score float64) string {
	switch {
	case score >= 9.0:
		return GradeExcellent
	case score >= 8.0:
		return GradeGood
	case score >= 7.0:
		return GradeModerate
	case score >= 6.0:
		return GradeFair
	default:
		return GradeNeedsImprovement
	}
}

func summarize(order []string, scores map[string]float64, details map[string]*Detail) Summary {
	s := Summary{TopRecommendations: []string{}}
	seen := make(map[string]bool)

	for _, name := range order {
		d := details[name]
		s.PassedChecks += len(d.PassedChecks)
		s.FailedChecks += len(d.FailedChecks)
		for _, r := range d.Recommendations {
			if seen[r] || len(s.TopRecommendations) >= maxRecommendations {
				continue
			}
			seen[r] = true
			s.TopRecommendations = append(s.TopRecommendations, r)
		}

		score := scores[name]
		if s.BestDimension == "" || score > scores[s.BestDimension] {
			s.BestDimension = name
		}
		if s.WorstDimension == "" || score < scores[s.WorstDimension] {
			s.WorstDimension = name
		}
	}
	s.TotalChecks = s.PassedChecks + s.FailedChecks
	return s
}
