package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionGuard hands out destination paths that are unused both on disk
// and within the current run. Claims are keyed by the owning source path, so
// successive attempts for the same source (a failed encode followed by a
// fallback to the same destination) get the same answer instead of a
// spurious suffix. All methods are goroutine-safe.
//
// Existence is re-checked with a fresh stat on every probe: a concurrent
// task may have just committed a file at a candidate path, and the owners
// map alone cannot see files left by earlier runs.
type CollisionGuard struct {
	mu     sync.Mutex
	owners map[string]string // output path -> source path that owns it
}

// NewCollisionGuard creates a ready-to-use guard.
func NewCollisionGuard() *CollisionGuard {
	return &CollisionGuard{owners: make(map[string]string)}
}

// Claim returns requested if it is free or already owned by owner, otherwise
// the first free "stem~N.ext" variant, and records the returned path as
// owned by owner.
func (g *CollisionGuard) Claim(owner, requested string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.freeLocked(owner, requested) {
		g.owners[requested] = owner
		return requested
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s~%d%s", stem, n, ext))
		if g.freeLocked(owner, candidate) {
			g.owners[candidate] = owner
			return candidate
		}
	}
}

// freeLocked reports whether owner may take path: either owner claimed it
// before, or nobody has and it is absent on disk.
func (g *CollisionGuard) freeLocked(owner, path string) bool {
	if prev, taken := g.owners[path]; taken {
		return prev == owner
	}
	_, err := os.Lstat(path)
	return os.IsNotExist(err)
}
