package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/c360studio/wfvalidate/config"
	"github.com/c360studio/wfvalidate/output/report"
	"github.com/c360studio/wfvalidate/quality"
	"github.com/c360studio/wfvalidate/quality/extended"
	"github.com/c360studio/wfvalidate/source"
	"github.com/c360studio/wfvalidate/source/parser"
	"github.com/c360studio/wfvalidate/workflow/validation"
)

// options holds the flags shared by validate and watch.
type options struct {
	configPath    string
	logLevel      string
	format        string
	output        string
	excludes      []string
	weights       []string
	extended      bool
	pluginsConfig string
	natsURL       string
	noColor       bool
	metricsAddr   string
}

// loadConfig layers config files and then the command-line flags.
func (o *options) loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.NewLoader(logger).Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	weights, err := parseWeights(o.weights)
	if err != nil {
		return nil, err
	}
	cfg.Merge(&config.Config{
		Exclude:  o.excludes,
		Weights:  weights,
		Extended: config.ExtendedConfig{Enabled: o.extended, Config: o.pluginsConfig},
		Output:   config.OutputConfig{Format: o.format},
		Publish:  config.PublishConfig{NATSURL: o.natsURL},
		Metrics:  config.MetricsConfig{Addr: o.metricsAddr},
	})
	if o.pluginsConfig != "" {
		cfg.Extended.Enabled = true
	}

	cfg.Normalize(logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseWeights parses dim=weight pairs.
func parseWeights(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid weight %q (want dimension=weight)", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", pair, err)
		}
		out[strings.TrimSpace(name)] = w
	}
	return out, nil
}

// buildValidator wires the validator from configuration.
func buildValidator(cfg *config.Config, logger *slog.Logger, recorder validation.Recorder) *validation.Validator {
	excluder := source.NewExcluder(cfg.Exclude, logger)

	qopts := []quality.Option{
		quality.WithExcluder(excluder),
		quality.WithLogger(logger),
		quality.WithWeights(cfg.Weights),
	}
	if cfg.Extended.Enabled {
		ext := extended.NewManager(extended.LoadConfig(cfg.Extended.Config, logger), excluder, logger)
		qopts = append(qopts, quality.WithOverlay(ext))
	}

	vopts := []validation.Option{
		validation.WithExcludePatterns(cfg.Exclude...),
		validation.WithQualityManager(quality.NewManager(qopts...)),
		validation.WithLogic(validation.LogicConfig{
			RequiredSections: cfg.Logic.RequiredSections,
			MinCheckpoints:   cfg.Logic.MinCheckpoints,
		}),
		validation.WithScriptChecker(parser.NewScriptChecker(parser.ScriptCheckerConfig{
			PowerShell: cfg.Syntax.PowerShell,
			Timeout:    cfg.Syntax.ScriptTimeout,
			Logger:     logger,
		})),
		validation.WithLogger(logger),
	}
	if recorder != nil {
		vopts = append(vopts, validation.WithRecorder(recorder))
	}
	return validation.New(vopts...)
}

// emit writes r to the output file, or to out when no file is set.
func (o *options) emit(out io.Writer, r *validation.Report, cfg *config.Config) error {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	if o.output != "" {
		if err := report.WriteFile(o.output, r, format); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Report written to %s\n", o.output)
		return nil
	}
	styled := format == report.FormatText && !o.noColor && isTerminal(out)
	return report.Write(out, r, format, report.Options{Styled: styled})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
