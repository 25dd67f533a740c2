package pipeline

import (
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// PruneEmptyDirs removes directories under root that ended up empty after an
// overwrite run, deepest first. The root itself is kept. All failures are
// swallowed; pruning is cosmetic.
func PruneEmptyDirs(root string, log *zap.SugaredLogger) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	// Deepest paths sort last lexically within a tree; remove in reverse so
	// children go before parents.
	sort.Strings(dirs)
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err == nil {
			log.Debugw("pruned empty directory", "path", dirs[i])
		}
	}
}
