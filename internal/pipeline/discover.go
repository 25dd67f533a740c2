package pipeline

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Filenames that are filesystem metadata, never user content. They are
// skipped entirely rather than copied through.
var metadataNames = map[string]bool{
	".DS_Store": true,
	"Thumbs.db": true,
}

// WorkItem is one discovered file, with its directory path relative to the
// input root ("." for root-level files).
type WorkItem struct {
	SourcePath string
	RelDir     string
}

// Discover walks inputRoot depth-first in lexical order and calls fn for
// every regular file, skipping metadata files and the output root when it is
// nested under the input (overwrite mode never is, but a careless
// invocation could be). Items are delivered lazily so submission to the
// scheduler can begin before the walk completes.
func Discover(inputRoot, outputRoot string, fn func(WorkItem) error) error {
	return filepath.WalkDir(inputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if outputRoot != "" && outputRoot != inputRoot && path == outputRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if metadataNames[d.Name()] {
			return nil
		}
		rel, err := filepath.Rel(inputRoot, filepath.Dir(path))
		if err != nil {
			return err
		}
		return fn(WorkItem{SourcePath: path, RelDir: filepath.ToSlash(rel)})
	})
}

// SplitName returns the stem and lowercase extension of a path's base name.
// Dotfiles like ".hidden" are a bare stem with no extension.
func SplitName(path string) (stem, ext string) {
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	if ext == base {
		return base, ""
	}
	return strings.TrimSuffix(base, ext), strings.ToLower(ext)
}
