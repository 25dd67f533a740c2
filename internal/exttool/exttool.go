// Package exttool drives the platform image tool (macOS sips) as the first
// fallback stage when the codec engine cannot produce the requested output.
// The tool always emits JPEG, so it only applies when the effective target
// is JPEG.
package exttool

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/backmassage/picshrink/internal/atomicfile"
)

// ErrUnavailable is returned when no platform tool exists on this system.
var ErrUnavailable = errors.New("exttool: no platform image tool available")

// spawnRate bounds how fast tool processes are launched; bursts of short
// subprocess spawns thrash the fork path more than they help throughput.
const (
	spawnPerSecond = 8
	spawnBurst     = 4
)

// Runner invokes the platform tool. The zero value is not usable; call New.
type Runner struct {
	path    string // resolved tool binary, empty when unavailable
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// New resolves the platform tool. On non-darwin systems, or when the binary
// is missing from PATH, the runner reports unavailable and ConvertJPEG fails
// fast with ErrUnavailable.
func New(log *zap.SugaredLogger) *Runner {
	r := &Runner{
		limiter: rate.NewLimiter(rate.Limit(spawnPerSecond), spawnBurst),
		log:     log,
	}
	if runtime.GOOS == "darwin" {
		if p, err := exec.LookPath("sips"); err == nil {
			r.path = p
		}
	}
	return r
}

// Available reports whether the tool can be invoked on this system.
func (r *Runner) Available() bool { return r.path != "" }

// ConvertJPEG re-encodes src to a JPEG at dest, bounding the longer edge to
// maxDim when positive. The write goes through the atomic committer: the
// tool targets a temporary path that is renamed only on success.
func (r *Runner) ConvertJPEG(ctx context.Context, src, dest string, quality, maxDim int) error {
	if !r.Available() {
		return ErrUnavailable
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	return atomicfile.Commit(dest, func(tmp string) error {
		args := []string{
			"-s", "format", "jpeg",
			"-s", "formatOptions", strconv.Itoa(quality),
		}
		if maxDim > 0 {
			args = append(args, "-Z", strconv.Itoa(maxDim))
		}
		args = append(args, src, "--out", tmp)

		r.log.Debugw("invoking platform tool", "cmd", shellquote.Join(append([]string{r.path}, args...)...))

		cmd := exec.CommandContext(ctx, r.path, args...)
		var stderr bytes.Buffer
		cmd.Stdout = nil
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			msg := bytes.TrimSpace(stderr.Bytes())
			if len(msg) > 0 {
				return errors.Wrapf(err, "sips: %s", msg)
			}
			return errors.Wrap(err, "sips")
		}
		return nil
	})
}
