// Package validation checks a workflow directory in four sequential stages
// (syntax, logic, dependencies, quality) and aggregates the findings into a
// Report. Stages never abort a run: problems are recorded as issues.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/wfvalidate/quality"
	"github.com/c360studio/wfvalidate/source"
	"github.com/c360studio/wfvalidate/source/parser"
)

// Stage names a validation stage.
type Stage string

const (
	StageSyntax       Stage = "syntax"
	StageLogic        Stage = "logic"
	StageDependencies Stage = "dependencies"
	StageQuality      Stage = "quality"
)

// Stages lists the stages in execution order.
var Stages = []Stage{StageSyntax, StageLogic, StageDependencies, StageQuality}

// Recorder observes validation runs, typically to export metrics.
type Recorder interface {
	ObserveStage(stage Stage, elapsed time.Duration)
	ObserveReport(r *Report)
}

// Option configures a Validator.
type Option func(*Validator)

// WithExcludePatterns adds exclusion globs on top of the built-in defaults.
func WithExcludePatterns(patterns ...string) Option {
	return func(v *Validator) {
		v.extraExcludes = append(v.extraExcludes, patterns...)
	}
}

// WithQualityManager replaces the default quality manager.
func WithQualityManager(m *quality.Manager) Option {
	return func(v *Validator) {
		v.quality = m
	}
}

// WithLogic sets the logic stage requirements.
func WithLogic(cfg LogicConfig) Option {
	return func(v *Validator) {
		v.logic = cfg
	}
}

// WithScriptChecker replaces the default script syntax checker.
func WithScriptChecker(c *parser.ScriptChecker) Option {
	return func(v *Validator) {
		v.scripts = c
	}
}

// WithRegistry replaces the extension registry used to dispatch syntax checks.
func WithRegistry(r *parser.Registry) Option {
	return func(v *Validator) {
		v.registry = r
	}
}

// WithRecorder installs a run observer.
func WithRecorder(r Recorder) Option {
	return func(v *Validator) {
		v.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = l
	}
}

// Validator runs the validation stages against workflow directories.
// One Validator may be reused for many directories; runs on the same
// instance are serialized.
type Validator struct {
	mu sync.Mutex

	extraExcludes []string
	excluder      *source.Excluder
	quality       *quality.Manager
	logic         LogicConfig
	scripts       *parser.ScriptChecker
	registry      *parser.Registry
	recorder      Recorder
	logger        *slog.Logger

	now func() time.Time
}

// New creates a Validator. Unset collaborators get defaults: the five
// standard quality plugins, the default logic requirements, an in-process
// script checker and the default extension registry.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	v.excluder = source.NewExcluder(v.extraExcludes, v.logger)
	if v.quality == nil {
		v.quality = quality.NewManager(quality.WithExcluder(v.excluder), quality.WithLogger(v.logger))
	}
	v.logic = v.logic.withDefaults()
	if v.scripts == nil {
		v.scripts = parser.NewScriptChecker(parser.ScriptCheckerConfig{Logger: v.logger})
	}
	if v.registry == nil {
		v.registry = parser.DefaultRegistry
	}
	return v
}

// Excluder returns the effective exclusion set.
func (v *Validator) Excluder() *source.Excluder {
	return v.excluder
}

// Quality returns the quality manager used by the quality stage.
func (v *Validator) Quality() *quality.Manager {
	return v.quality
}

// run holds the mutable state of one Validate call.
type run struct {
	v      *Validator
	tree   *source.Tree
	files  []source.File
	logger *slog.Logger

	syntax       StageResult
	logic        StageResult
	dependencies StageResult
	inventory    inventoryBuilder
}

// Validate runs every stage against dir. The only error returns are a
// missing or non-directory root and context cancellation; everything else is
// reported inside the Report.
func (v *Validator) Validate(ctx context.Context, dir string) (*Report, error) {
	tree, err := source.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("validate workflow: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	runID := uuid.New().String()
	r := &run{
		v:      v,
		tree:   tree,
		files:  v.excluder.Filter(tree.Files()),
		logger: v.logger.With("run_id", runID),
	}
	r.logger.Info("Starting workflow validation", "dir", dir, "files", len(r.files))

	stages := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageSyntax, r.checkSyntax},
		{StageLogic, r.checkLogic},
		{StageDependencies, r.checkDependencies},
	}
	for _, s := range stages {
		if err := r.timed(ctx, s.stage, s.fn); err != nil {
			return nil, err
		}
	}

	var assessment *quality.Assessment
	err = r.timed(ctx, StageQuality, func(context.Context) error {
		a, qerr := v.quality.AssessQuality(dir)
		if qerr != nil {
			return qerr
		}
		assessment = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:        runID,
		WorkflowDir:  dir,
		GeneratedAt:  v.now().UTC(),
		Syntax:       r.syntax.finish(),
		Logic:        r.logic.finish(),
		Dependencies: r.dependencies.finish(),
		Quality:      assessment,
		Inventory:    r.inventory.build(),
	}
	report.Summary = summarize(report)

	if v.recorder != nil {
		v.recorder.ObserveReport(report)
	}
	r.logger.Info("Workflow validation complete",
		"status", report.Summary.OverallStatus,
		"issues", report.Summary.TotalIssues,
		"critical", report.Summary.CriticalIssues,
		"quality_score", report.Summary.QualityScore)
	return report, nil
}

func (r *run) timed(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("validate workflow: %w", err)
	}
	start := time.Now()
	r.logger.Debug("Running stage", "stage", stage)
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s stage: %w", stage, err)
	}
	if r.v.recorder != nil {
		r.v.recorder.ObserveStage(stage, time.Since(start))
	}
	return nil
}

// withExt returns the in-scope files carrying one of exts.
func (r *run) withExt(exts ...string) []source.File {
	return r.v.excluder.Filter(r.tree.WithExt(exts...))
}

func lineRef(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
