package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/backmassage/picshrink/internal/atomicfile"
	"github.com/backmassage/picshrink/internal/codec"
	"github.com/backmassage/picshrink/internal/config"
	"github.com/backmassage/picshrink/internal/exttool"
	"github.com/backmassage/picshrink/internal/naming"
	"github.com/backmassage/picshrink/internal/transient"
)

// Executor processes a single work item through the staged fallback chain:
// primary encode, platform-tool fallback, alternate-format fallback, and
// finally copy (safe mode) or keep (overwrite mode). Transient resource
// errors short-circuit the chain and surface as error outcomes so the
// scheduler's backpressure accounting sees them.
type Executor struct {
	cfg      *config.Config
	engine   codec.Engine
	tool     *exttool.Runner
	resolver *naming.Resolver
	guard    *naming.CollisionGuard
	log      *zap.SugaredLogger

	allow map[string]bool
	deny  map[string]bool
	bg    color.NRGBA
}

// NewExecutor builds an executor. tool may be nil when the platform fallback
// is disabled or unavailable.
func NewExecutor(
	cfg *config.Config,
	engine codec.Engine,
	tool *exttool.Runner,
	resolver *naming.Resolver,
	guard *naming.CollisionGuard,
	log *zap.SugaredLogger,
) *Executor {
	return &Executor{
		cfg:      cfg,
		engine:   engine,
		tool:     tool,
		resolver: resolver,
		guard:    guard,
		log:      log,
		allow:    cfg.AllowSet(),
		deny:     cfg.DenySet(),
		bg:       cfg.BackgroundColor(),
	}
}

// eligible reports whether a file extension should be sent through the
// encode chain at all. Ineligible files go straight to copy-or-keep.
func (e *Executor) eligible(ext string) bool {
	if ext == "" || e.deny[ext] {
		return false
	}
	if e.allow != nil {
		return e.allow[ext]
	}
	f, ok := codec.FormatForExt(ext)
	return ok && codec.CanDecode(f)
}

// resolveTarget picks the format the primary encode aims for. With
// format=original the source's own format is kept when it has an encoder;
// otherwise the configured fallback stands in.
func (e *Executor) resolveTarget(ext string) codec.Format {
	target := e.cfg.TargetFormat()
	if target != codec.Original {
		return target
	}
	if src, ok := codec.FormatForExt(ext); ok && codec.CanEncode(src) {
		return src
	}
	return e.cfg.FallbackTarget()
}

// Process runs one work item to a terminal outcome. It never panics and
// never returns a partial output file.
func (e *Executor) Process(ctx context.Context, item WorkItem) Outcome {
	out := Outcome{Source: item.SourcePath, Action: ActionError}

	fi, err := os.Stat(item.SourcePath)
	if err != nil {
		out.Err = errors.Wrap(err, "stat source")
		return out
	}
	out.InBytes = fi.Size()

	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	stem, ext := SplitName(item.SourcePath)
	if !e.eligible(ext) {
		return e.copyOrKeep(out, item, stem)
	}

	target := e.resolveTarget(ext)

	img, decErr := e.engine.Decode(item.SourcePath)
	if decErr != nil {
		if transient.Is(decErr) {
			out.Err = decErr
			return out
		}
		e.log.Debugw("decode failed", "source", item.SourcePath, "error", decErr)
		// No bitmap: the alternate-format stage is impossible, but the
		// platform tool decodes on its own.
		if o, done := e.tryTool(ctx, out, item, stem, target); done {
			return o
		}
		return e.copyOrKeep(out, item, stem)
	}

	img = e.engine.Resize(img, e.cfg.MaxWidth, e.cfg.MaxHeight)

	dest, encErr := e.encodeTo(item, stem, img, target)
	if encErr == nil {
		return e.finishConverted(out, item, dest, ViaEngine)
	}
	if transient.Is(encErr) {
		out.Err = encErr
		return out
	}
	e.log.Debugw("primary encode failed", "source", item.SourcePath, "format", target, "error", encErr)

	if o, done := e.tryTool(ctx, out, item, stem, target); done {
		return o
	}

	if fb := e.cfg.FallbackTarget(); fb != target {
		dest, fbErr := e.encodeTo(item, stem, img, fb)
		if fbErr == nil {
			return e.finishConverted(out, item, dest, ViaFallbackFmt)
		}
		if transient.Is(fbErr) {
			out.Err = fbErr
			return out
		}
		e.log.Debugw("fallback encode failed", "source", item.SourcePath, "format", fb, "error", fbErr)
	}

	return e.copyOrKeep(out, item, stem)
}

// encodeTo prepares the bitmap for the format (flattening alpha when the
// target cannot carry it) and commits the encoded bytes atomically.
func (e *Executor) encodeTo(item WorkItem, stem string, img image.Image, f codec.Format) (string, error) {
	var prepped image.Image
	if f.HasAlpha() {
		prepped = e.engine.Normalize(img)
	} else {
		prepped = e.engine.FlattenAlpha(img, e.bg)
	}

	dest, err := e.destFor(item, stem, f.Ext())
	if err != nil {
		return "", err
	}
	err = atomicfile.Commit(dest, func(tmp string) error {
		fh, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if err := e.engine.Encode(fh, prepped, f, e.cfg.Quality); err != nil {
			fh.Close()
			return err
		}
		return fh.Close()
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// tryTool attempts the platform-tool fallback. The second return value is
// true when the chain should stop here, either because the tool succeeded
// or because it failed transiently.
func (e *Executor) tryTool(ctx context.Context, out Outcome, item WorkItem, stem string, target codec.Format) (Outcome, bool) {
	if e.cfg.NoExternalTool || e.tool == nil || !e.tool.Available() {
		return out, false
	}

	dest, err := e.destFor(item, stem, codec.JPEG.Ext())
	if err != nil {
		out.Err = err
		return out, true
	}

	maxDim := e.cfg.MaxWidth
	if e.cfg.MaxHeight > maxDim {
		maxDim = e.cfg.MaxHeight
	}
	if err := e.tool.ConvertJPEG(ctx, item.SourcePath, dest, e.cfg.Quality, maxDim); err != nil {
		if transient.Is(err) {
			out.Err = err
			return out, true
		}
		e.log.Debugw("platform tool failed", "source", item.SourcePath, "error", err)
		return out, false
	}

	via := ViaTool
	if target != codec.JPEG {
		via = ViaToolJPEG
	}
	return e.finishConverted(out, item, dest, via), true
}

// copyOrKeep is the last stage. Safe mode copies the original byte for byte
// to its resolved destination; overwrite mode leaves it untouched.
func (e *Executor) copyOrKeep(out Outcome, item WorkItem, stem string) Outcome {
	if e.cfg.Overwrite {
		out.Action = ActionKept
		out.Dest = item.SourcePath
		out.OutBytes = out.InBytes
		return out
	}

	// Copies keep the source extension exactly as spelled.
	dest, err := e.destFor(item, stem, filepath.Ext(item.SourcePath))
	if err != nil {
		out.Err = err
		return out
	}
	data, err := os.ReadFile(item.SourcePath)
	if err != nil {
		out.Err = errors.Wrap(err, "read source")
		return out
	}
	if err := atomicfile.WriteFile(dest, data, 0o644); err != nil {
		out.Err = errors.Wrap(err, "copy")
		return out
	}

	out.Action = ActionCopied
	out.Via = ViaCopy
	out.Dest = dest
	out.OutBytes = int64(len(data))
	return out
}

// destFor resolves and reserves the destination path for one attempt, and
// makes sure its directory exists. Overwrite mode targets the source's own
// directory and may replace an existing sibling of the same name.
func (e *Executor) destFor(item WorkItem, stem, outExt string) (string, error) {
	if e.cfg.Overwrite {
		return filepath.Join(filepath.Dir(item.SourcePath), stem+outExt), nil
	}
	dest := e.guard.Claim(item.SourcePath, e.resolver.Resolve(item.RelDir, stem, outExt))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	return dest, nil
}

// finishConverted fills in the success fields and, in overwrite mode,
// removes the original when the extension changed. Removal is best-effort.
func (e *Executor) finishConverted(out Outcome, item WorkItem, dest string, via Via) Outcome {
	out.Dest = dest
	out.Action = ActionConverted
	out.Via = via
	if fi, err := os.Stat(dest); err == nil {
		out.OutBytes = fi.Size()
	}
	if e.cfg.Overwrite && dest != item.SourcePath {
		if err := os.Remove(item.SourcePath); err != nil {
			e.log.Warnw("could not remove original", "path", item.SourcePath, "error", err)
		}
	}
	return out
}
