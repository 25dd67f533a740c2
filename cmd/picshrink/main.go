// Command picshrink is the CLI entrypoint for the batch image shrinker.
// It binds flags and PICSHRINK_* environment variables onto the run
// configuration, then either prints system diagnostics (--check) or runs
// the resize pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backmassage/picshrink/internal/check"
	"github.com/backmassage/picshrink/internal/config"
	"github.com/backmassage/picshrink/internal/display"
	"github.com/backmassage/picshrink/internal/logging"
	"github.com/backmassage/picshrink/internal/pipeline"
)

// version and commit are set at build time via -ldflags.
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "picshrink: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	v := viper.New()
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "picshrink [INPUT_DIR] [OUTPUT_DIR]",
		Short: "Batch image resizer with adaptive concurrency",
		Long: `picshrink walks a directory tree of images and resizes and re-encodes
each file, falling back through the platform tool, an alternate format, and
a byte copy when an attempt fails. Concurrency adapts to observed latency
unless a fixed worker count is set.`,
		Version:      fmt.Sprintf("%s (%s)", version, commit),
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			config.BindEnv(v)
			applyViper(&cfg, v)
			if checkOnly {
				return nil
			}
			if len(args) > 0 {
				cfg.InputDir = config.NormalizeDirArg(args[0])
			}
			if len(args) > 1 {
				cfg.OutputDir = config.NormalizeDirArg(args[1])
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkOnly {
				check.Run()
				return nil
			}
			return run(cmd.Context(), &cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Format, "format", "f", cfg.Format, "target format (jpeg|png|webp|avif|heif|tiff|gif|bmp|original)")
	f.StringVar(&cfg.FallbackFormat, "fallback-format", cfg.FallbackFormat, "format to try when the target cannot be encoded")
	f.IntVarP(&cfg.Quality, "quality", "q", cfg.Quality, "lossy quality 1-100")
	f.IntVar(&cfg.MaxWidth, "max-width", cfg.MaxWidth, "bound output width (0 = unbounded)")
	f.IntVar(&cfg.MaxHeight, "max-height", cfg.MaxHeight, "bound output height (0 = unbounded)")
	f.StringVar(&cfg.Background, "background", cfg.Background, "background color for flattening alpha (#rrggbb)")

	f.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "fixed worker count (0 = adaptive)")
	f.IntVar(&cfg.MinWorkers, "min-workers", cfg.MinWorkers, "adaptive concurrency floor")
	f.IntVar(&cfg.MaxWorkers, "max-workers", cfg.MaxWorkers, "adaptive concurrency ceiling (0 = derived)")
	f.DurationVar(&cfg.Window, "window", cfg.Window, "adaptive telemetry window")
	f.DurationVar(&cfg.TargetLatency, "target-latency", cfg.TargetLatency, "per-file latency target")
	f.DurationVar(&cfg.LagThreshold, "lag-threshold", cfg.LagThreshold, "control-loop lag treated as overload")

	f.IntVar(&cfg.ThreadBudget, "thread-budget", cfg.ThreadBudget, "total codec threads shared by all workers (0 = CPUs)")
	f.IntVar(&cfg.MinThreads, "min-threads", cfg.MinThreads, "codec threads floor per worker")
	f.IntVar(&cfg.MaxThreads, "max-threads", cfg.MaxThreads, "codec threads ceiling per worker (0 = budget)")

	f.BoolVar(&cfg.Flatten, "flatten", cfg.Flatten, "write all outputs into one directory")
	f.StringVar(&cfg.FlattenStrategy, "flatten-strategy", cfg.FlattenStrategy, "flattened name strategy (hash|path)")
	f.IntVar(&cfg.MaxNameBytes, "max-name-bytes", cfg.MaxNameBytes, "byte cap on generated file names")

	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "rewrite files in place inside the input tree")
	f.BoolVar(&cfg.NoExternalTool, "no-external-tool", cfg.NoExternalTool, "never invoke the platform image tool")
	f.BoolVar(&cfg.AbortOnTransient, "abort-on-transient", cfg.AbortOnTransient, "stop the run on the first resource-exhaustion error")
	f.BoolVar(&cfg.PruneEmpty, "prune-empty", cfg.PruneEmpty, "remove emptied directories after an overwrite run")

	f.StringSliceVar(&cfg.AllowExts, "allow-ext", nil, "only process these extensions (repeatable)")
	f.StringSliceVar(&cfg.DenyExts, "deny-ext", nil, "copy these extensions through untouched (repeatable)")

	f.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "debug logging, including controller telemetry")
	f.BoolVar(&cfg.JSONLog, "json", cfg.JSONLog, "JSON log output")
	f.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "also append JSON logs to this file")
	f.BoolVarP(&checkOnly, "check", "c", false, "print system diagnostics and exit")

	return cmd
}

// applyViper folds environment overrides into cfg for flags the user did not
// pass explicitly. Viper already gives flag values precedence over env vars.
func applyViper(cfg *config.Config, v *viper.Viper) {
	cfg.Format = v.GetString("format")
	cfg.FallbackFormat = v.GetString("fallback-format")
	cfg.Quality = v.GetInt("quality")
	cfg.MaxWidth = v.GetInt("max-width")
	cfg.MaxHeight = v.GetInt("max-height")
	cfg.Background = v.GetString("background")
	cfg.Workers = v.GetInt("workers")
	cfg.MinWorkers = v.GetInt("min-workers")
	cfg.MaxWorkers = v.GetInt("max-workers")
	cfg.Window = v.GetDuration("window")
	cfg.TargetLatency = v.GetDuration("target-latency")
	cfg.LagThreshold = v.GetDuration("lag-threshold")
	cfg.ThreadBudget = v.GetInt("thread-budget")
	cfg.MinThreads = v.GetInt("min-threads")
	cfg.MaxThreads = v.GetInt("max-threads")
	cfg.Flatten = v.GetBool("flatten")
	cfg.FlattenStrategy = v.GetString("flatten-strategy")
	cfg.MaxNameBytes = v.GetInt("max-name-bytes")
	cfg.Overwrite = v.GetBool("overwrite")
	cfg.NoExternalTool = v.GetBool("no-external-tool")
	cfg.AbortOnTransient = v.GetBool("abort-on-transient")
	cfg.PruneEmpty = v.GetBool("prune-empty")
	cfg.AllowExts = v.GetStringSlice("allow-ext")
	cfg.DenyExts = v.GetStringSlice("deny-ext")
	cfg.Verbose = v.GetBool("verbose")
	cfg.JSONLog = v.GetBool("json")
	cfg.LogFile = v.GetString("log")
}

func run(parent context.Context, cfg *config.Config) error {
	log, closeLog, err := logging.New(logging.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.JSONLog,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting run", "version", version, "in", cfg.InputDir, "out", cfg.OutputDir, "format", cfg.Format)
	start := time.Now()

	summary, err := pipeline.Run(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Infow("run finished", "elapsed", time.Since(start).Round(time.Millisecond).String(), "total", summary.Total())

	if !cfg.JSONLog {
		display.RenderSummary(summary)
		display.RenderErrors(summary)
	}
	if summary.Errors > 0 {
		return fmt.Errorf("%d file(s) failed", summary.Errors)
	}
	return nil
}
