// Package pipeline orchestrates file discovery, scheduled per-file
// processing, and batch summary reporting.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/backmassage/picshrink/internal/codec"
	"github.com/backmassage/picshrink/internal/config"
	"github.com/backmassage/picshrink/internal/exttool"
	"github.com/backmassage/picshrink/internal/naming"
	"github.com/backmassage/picshrink/internal/sched"
	"github.com/backmassage/picshrink/internal/transient"
)

// slot pairs a discovered item with where its outcome lands. Slots are
// appended in discovery order, which fixes the summary's result order
// regardless of completion order.
type slot struct {
	item    WorkItem
	out     Outcome
	pending *sched.Pending
}

// Run is the top-level batch entry point: validate paths, build the engine,
// scheduler, and executor, stream discovered files into the scheduler, wait
// for everything to settle, and aggregate outcomes. The run continues past
// individual failures; the returned error covers only setup and discovery.
func Run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*RunSummary, error) {
	inAbs, err := resolveInput(cfg.InputDir)
	if err != nil {
		return nil, err
	}
	outAbs := inAbs
	if !cfg.Overwrite {
		outAbs, err = prepareOutput(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ValidatePaths(inAbs, outAbs); err != nil {
		return nil, err
	}

	budget := cfg.ThreadBudget
	if budget <= 0 {
		budget = runtime.NumCPU()
	}
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = budget
	}
	engine := codec.NewStdEngine(budget)
	tuner := sched.NewCoTuner(engine, budget, cfg.MinThreads, maxThreads)

	limiter := buildLimiter(cfg, tuner, log)
	defer limiter.Dispose()
	tuner.Apply(limiter.Cap())
	log.Debugw("scheduler ready", "cap", limiter.Cap(), "threads", tuner.ThreadsFor(limiter.Cap()))

	var tool *exttool.Runner
	if !cfg.NoExternalTool {
		tool = exttool.New(log)
		if tool.Available() {
			log.Debugw("platform tool available")
		}
	}

	resolver := &naming.Resolver{
		OutputRoot:   outAbs,
		Flatten:      cfg.Flatten,
		Strategy:     cfg.Strategy(),
		MaxNameBytes: cfg.MaxNameBytes,
	}
	exec := NewExecutor(cfg, engine, tool, resolver, naming.NewCollisionGuard(), log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var slots []*slot
	walkErr := Discover(inAbs, outAbs, func(item WorkItem) error {
		s := &slot{item: item}
		slots = append(slots, s)
		s.pending = limiter.Submit(runCtx, func(taskCtx context.Context) error {
			s.out = exec.Process(taskCtx, s.item)
			if s.out.Err != nil {
				if cfg.AbortOnTransient && transient.Is(s.out.Err) {
					cancel()
				}
				return s.out.Err
			}
			return nil
		})
		return runCtx.Err()
	})

	summary := &RunSummary{}
	for _, s := range slots {
		waitErr := s.pending.Wait()
		if s.out.Action == "" {
			// Task never ran (cancelled or rejected before dispatch).
			s.out = Outcome{Source: s.item.SourcePath, Action: ActionError, Err: waitErr}
		}
		logOutcome(log, inAbs, s.out)
		summary.add(s.out)
	}

	if cfg.Overwrite && cfg.PruneEmpty {
		PruneEmptyDirs(inAbs, log)
	}

	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return summary, errors.Wrap(walkErr, "discover")
	}
	return summary, nil
}

func resolveInput(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolve input directory")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrap(err, "input directory")
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		return "", errors.Wrap(err, "input directory")
	}
	if !fi.IsDir() {
		return "", errors.Newf("input path %s is not a directory", dir)
	}
	return resolved, nil
}

// prepareOutput creates the output root and returns it symlink-resolved, so
// nesting checks and the discovery skip compare the same spelling as the
// resolved input. A symlink pointing back into the input tree is caught by
// ValidatePaths rather than silently rediscovered.
func prepareOutput(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolve output directory")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", errors.Wrap(err, "prepare output directory")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrap(err, "output directory")
	}
	return resolved, nil
}

// buildLimiter picks fixed or adaptive scheduling. Workers>0 pins a fixed
// cap with no feedback; otherwise the AIMD controller drives both the cap
// and, through the co-tuner, the engine's thread budget.
func buildLimiter(cfg *config.Config, tuner *sched.CoTuner, log *zap.SugaredLogger) sched.Limiter {
	if cfg.Workers > 0 {
		return sched.NewFixed(cfg.Workers)
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = sched.DefaultMaxWorkers()
	}
	obs := sched.Observer(tuner)
	if cfg.Verbose {
		obs = sched.MultiObserver(tuner, sched.LogObserver{Log: log})
	}
	return sched.NewAdaptive(sched.AdaptiveConfig{
		MinCap:        cfg.MinWorkers,
		MaxCap:        maxWorkers,
		Window:        cfg.Window,
		TargetLatency: cfg.TargetLatency,
		LagThreshold:  cfg.LagThreshold,
	}, obs)
}

func logOutcome(log *zap.SugaredLogger, inputRoot string, o Outcome) {
	src := o.Source
	if rel, err := filepath.Rel(inputRoot, o.Source); err == nil {
		src = rel
	}
	switch o.Action {
	case ActionConverted:
		log.Infow("converted", "source", src, "dest", filepath.Base(o.Dest), "via", string(o.Via), "in", o.InBytes, "out", o.OutBytes)
	case ActionCopied:
		log.Infow("copied", "source", src)
	case ActionKept:
		log.Debugw("kept", "source", src)
	default:
		log.Errorw("failed", "source", src, "error", o.Err)
	}
}
