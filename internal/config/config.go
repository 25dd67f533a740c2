// Package config holds runtime configuration: defaults, viper binding, and
// validation. Settings come from CLI flags, PICSHRINK_* environment
// variables, or defaults, in that precedence order.
package config

import (
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/backmassage/picshrink/internal/codec"
	"github.com/backmassage/picshrink/internal/naming"
)

// Config holds all runtime settings. It is populated by [Default] and then
// mutated by flag/env binding before being passed (by pointer) to packages
// that need it.
type Config struct {
	// Paths (set from positional args).
	InputDir  string
	OutputDir string

	// Encoding.
	Format         string // Target format name; "original" keeps each file's format.
	FallbackFormat string // Second-choice format when the target has no encoder.
	Quality        int    // Lossy quality 1-100.
	MaxWidth       int    // 0 = unbounded.
	MaxHeight      int    // 0 = unbounded.
	Background     string // Hex color for alpha flattening into opaque formats.

	// Concurrency.
	Workers       int           // Fixed worker count; 0 enables the adaptive controller.
	MinWorkers    int           // Adaptive floor.
	MaxWorkers    int           // Adaptive ceiling; 0 = derived from CPU and memory.
	Window        time.Duration // Adaptive telemetry window.
	TargetLatency time.Duration // Per-file latency the controller steers toward.
	LagThreshold  time.Duration // Tick lag that signals event-loop style stall.

	// Codec threads.
	ThreadBudget int // Total codec threads shared across workers; 0 = NumCPU.
	MinThreads   int
	MaxThreads   int

	// Output naming.
	Flatten         bool
	FlattenStrategy string // "hash" or "path".
	MaxNameBytes    int

	// Behavior.
	Overwrite        bool // Rewrite files in place inside the input tree.
	NoExternalTool   bool // Skip the platform-tool fallback stage.
	AbortOnTransient bool // Stop the run on the first transient error.
	PruneEmpty       bool // After an overwrite run, remove emptied directories.

	// Selection.
	AllowExts []string // When non-empty, only these extensions are processed.
	DenyExts  []string // Extensions treated as non-image and copied through.

	// Display and logging.
	Verbose bool
	JSONLog bool
	LogFile string
}

// Default returns a Config with all defaults. Used as the base before flag
// and environment overrides apply.
func Default() Config {
	return Config{
		Format:          "jpeg",
		FallbackFormat:  "png",
		Quality:         82,
		MaxWidth:        0,
		MaxHeight:       0,
		Background:      "#ffffff",
		Workers:         0,
		MinWorkers:      1,
		MaxWorkers:      0,
		Window:          time.Second,
		TargetLatency:   1500 * time.Millisecond,
		LagThreshold:    250 * time.Millisecond,
		ThreadBudget:    0,
		MinThreads:      1,
		MaxThreads:      0,
		Flatten:         false,
		FlattenStrategy: "hash",
		MaxNameBytes:    naming.DefaultMaxNameBytes,
		Overwrite:       false,
		NoExternalTool:  false,
		PruneEmpty:      true,
	}
}

// EnvPrefix is the prefix for environment variable overrides,
// e.g. PICSHRINK_QUALITY=70.
const EnvPrefix = "PICSHRINK"

// BindEnv wires viper so every registered flag can also be set through a
// PICSHRINK_* environment variable, with dashes mapped to underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an
// empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// TargetFormat returns the parsed target format.
func (c *Config) TargetFormat() codec.Format {
	f, _ := codec.ParseFormat(c.Format)
	return f
}

// FallbackTarget returns the parsed fallback format.
func (c *Config) FallbackTarget() codec.Format {
	f, _ := codec.ParseFormat(c.FallbackFormat)
	return f
}

// BackgroundColor returns the parsed flatten background.
func (c *Config) BackgroundColor() color.NRGBA {
	col, _ := codec.ParseHexColor(c.Background)
	return col
}

// Strategy returns the parsed flatten naming strategy.
func (c *Config) Strategy() naming.Strategy {
	if strings.EqualFold(c.FlattenStrategy, "path") {
		return naming.StrategyPath
	}
	return naming.StrategyHash
}

// AllowSet returns the allow-list as a lowercase dot-prefixed extension set,
// or nil when no allow-list is configured.
func (c *Config) AllowSet() map[string]bool { return extSet(c.AllowExts) }

// DenySet returns the deny-list as a lowercase dot-prefixed extension set.
func (c *Config) DenySet() map[string]bool { return extSet(c.DenyExts) }

func extSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// Validate checks field values and cross-field constraints, and resolves the
// overwrite-mode output directory. It mutates the receiver only for
// normalization (OutputDir in overwrite mode).
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return errors.New("input directory is required")
	}
	if c.Overwrite {
		if c.OutputDir != "" && c.OutputDir != c.InputDir {
			return errors.New("--overwrite rewrites files in place; do not pass an output directory")
		}
		if c.Flatten {
			return errors.New("--overwrite and --flatten are mutually exclusive")
		}
		c.OutputDir = c.InputDir
	} else if c.OutputDir == "" {
		return errors.New("output directory is required (or pass --overwrite)")
	}

	target, err := codec.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	fallback, err := codec.ParseFormat(c.FallbackFormat)
	if err != nil {
		return errors.Wrap(err, "fallback format")
	}
	if fallback == target && target != codec.Original {
		return errors.Newf("fallback format %q must differ from the target format", c.FallbackFormat)
	}
	if fallback == codec.Original {
		return errors.New("fallback format cannot be 'original'")
	}

	if c.Quality < 1 || c.Quality > 100 {
		return errors.Newf("quality must be between 1 and 100 (got %d)", c.Quality)
	}
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		return errors.New("max dimensions must not be negative")
	}
	if _, err := codec.ParseHexColor(c.Background); err != nil {
		return err
	}

	switch strings.ToLower(c.FlattenStrategy) {
	case "hash", "path":
	default:
		return errors.Newf("invalid flatten strategy %q (use 'hash' or 'path')", c.FlattenStrategy)
	}
	if c.MaxNameBytes < 16 {
		return errors.Newf("max name bytes must be at least 16 (got %d)", c.MaxNameBytes)
	}

	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.MinWorkers < 1 {
		return errors.New("min workers must be at least 1")
	}
	if c.MaxWorkers != 0 && c.MaxWorkers < c.MinWorkers {
		return errors.Newf("max workers %d is below min workers %d", c.MaxWorkers, c.MinWorkers)
	}
	if c.Window <= 0 || c.TargetLatency <= 0 || c.LagThreshold <= 0 {
		return errors.New("window, target latency, and lag threshold must be positive")
	}

	if c.ThreadBudget < 0 || c.MinThreads < 0 || c.MaxThreads < 0 {
		return errors.New("thread settings must not be negative")
	}
	if c.MaxThreads != 0 && c.MinThreads > c.MaxThreads {
		return errors.Newf("min threads %d is above max threads %d", c.MinThreads, c.MaxThreads)
	}
	return nil
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory, which would make the walk rediscover its
// own output. Overwrite mode intentionally targets the input tree and is
// exempt. Both arguments must be absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	if c.Overwrite {
		return nil
	}
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}
