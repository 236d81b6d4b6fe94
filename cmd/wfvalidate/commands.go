package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/c360studio/wfvalidate/config"
	"github.com/c360studio/wfvalidate/metrics"
	"github.com/c360studio/wfvalidate/publish"
	"github.com/c360studio/wfvalidate/quality"
	"github.com/c360studio/wfvalidate/quality/extended"
	"github.com/c360studio/wfvalidate/source"
	"github.com/c360studio/wfvalidate/watch"
	"github.com/c360studio/wfvalidate/workflow/validation"
)

func addReportFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Report format (text, json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringArrayVar(&opts.excludes, "exclude", nil, "Additional exclusion glob (repeatable)")
	cmd.Flags().StringArrayVar(&opts.weights, "weight", nil, "Dimension weight override as dimension=weight (repeatable)")
	cmd.Flags().BoolVar(&opts.extended, "extended", false, "Enable the extended quality plugins")
	cmd.Flags().StringVar(&opts.pluginsConfig, "plugins-config", "", "Extended plugin config file (YAML); implies --extended")
	cmd.Flags().StringVar(&opts.natsURL, "nats-url", "", "Publish each report to this NATS server")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored text output")
}

func validateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow-dir>",
		Short: "Validate a workflow directory once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts.logLevel)
			cfg, err := opts.loadConfig(logger)
			if err != nil {
				return err
			}

			pub := connectPublisher(cfg, logger)
			defer pub.Close()

			v := buildValidator(cfg, logger, nil)
			return runOnce(cmd.Context(), cmd, opts, cfg, v, pub, args[0], logger)
		},
	}
	addReportFlags(cmd, opts)
	return cmd
}

func watchCmd(opts *options) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <workflow-dir>",
		Short: "Re-validate a workflow directory whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := args[0]
			logger := newLogger(opts.logLevel)
			cfg, err := opts.loadConfig(logger)
			if err != nil {
				return err
			}

			var recorder validation.Recorder
			if cfg.Metrics.Addr != "" {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				recorder = metrics.NewRecorder(reg)
				stopMetrics := serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
				defer stopMetrics()
			}

			pub := connectPublisher(cfg, logger)
			defer pub.Close()

			v := buildValidator(cfg, logger, recorder)
			if err := runOnce(ctx, cmd, opts, cfg, v, pub, dir, logger); err != nil {
				return err
			}

			w, err := watch.New(watch.Config{
				Root:     dir,
				Debounce: debounce,
				Excluder: source.NewExcluder(cfg.Exclude, logger),
				Logger:   logger,
			}, func(ctx context.Context, changes []watch.Change) {
				for _, c := range changes {
					logger.Info("Changed", "path", c.Path, "op", c.Operation)
				}
				if err := runOnce(ctx, cmd, opts, cfg, v, pub, dir, logger); err != nil {
					logger.Error("Validation failed", "error", err)
				}
			})
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
	addReportFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Wait this long for further changes before re-validating")
	return cmd
}

// runOnce validates dir, publishes the report and writes it out.
func runOnce(ctx context.Context, cmd *cobra.Command, opts *options, cfg *config.Config,
	v *validation.Validator, pub *publish.Publisher, dir string, logger *slog.Logger) error {
	r, err := v.Validate(ctx, dir)
	if err != nil {
		return err
	}
	logger.Info("Validation finished", "run_id", r.RunID, "passed", r.Passed(),
		"critical", r.Summary.CriticalIssues, "quality", r.Summary.QualityScore)
	if err := pub.Publish(ctx, r); err != nil {
		logger.Warn("Failed to publish report", "error", err)
	}
	return opts.emit(cmd.OutOrStdout(), r, cfg)
}

// connectPublisher returns nil when publishing is off or the server is
// unreachable; reports are still written locally.
func connectPublisher(cfg *config.Config, logger *slog.Logger) *publish.Publisher {
	if cfg.Publish.NATSURL == "" {
		return nil
	}
	p, err := publish.Connect(cfg.Publish.NATSURL, cfg.Publish.Subject, logger)
	if err != nil {
		logger.Warn("Report publishing disabled", "url", cfg.Publish.NATSURL, "error", err)
		return nil
	}
	logger.Info("Publishing reports", "url", cfg.Publish.NATSURL, "subject", p.Subject())
	return p
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// pluginListing is the JSON shape of the plugins command.
type pluginListing struct {
	Standard []quality.Info  `json:"standard"`
	Extended []extended.Info `json:"extended"`
}

func pluginsCmd(opts *options) *cobra.Command {
	var (
		pluginsConfig string
		asJSON        bool
		sampleOut     string
	)

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List the quality plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts.logLevel)
			out := cmd.OutOrStdout()

			if sampleOut != "" {
				if err := extended.SampleConfig().SaveToFile(sampleOut); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Sample plugin config written to %s\n", sampleOut)
				return nil
			}

			listing := pluginListing{
				Standard: quality.NewManager(quality.WithLogger(logger)).Plugins(),
				Extended: extended.NewManager(extended.LoadConfig(pluginsConfig, logger), nil, logger).Plugins(),
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(listing)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FAMILY\tNAME\tVERSION\tWEIGHT\tDESCRIPTION")
			for _, p := range listing.Standard {
				fmt.Fprintf(tw, "standard\t%s\t%s\t%.2f\t%s\n", p.Name, p.Version, p.Weight, p.Description)
			}
			for _, p := range listing.Extended {
				fmt.Fprintf(tw, "extended\t%s\t%s\t%.2f\t%s\n", p.Name, p.Version, p.Weight, p.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&pluginsConfig, "plugins-config", "", "Extended plugin config file (YAML)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().StringVar(&sampleOut, "write-sample", "", "Write a sample extended plugin config to this path and exit")
	return cmd
}

func configCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(newLogger(opts.logLevel)).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(newLogger(opts.logLevel)).Load(opts.configPath)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
