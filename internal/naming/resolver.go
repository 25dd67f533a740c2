// Package naming computes collision-safe destination paths, either
// mirroring the input tree under the output root or flattening everything
// into one directory.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Strategy selects how flatten mode derives unique names.
type Strategy string

const (
	// StrategyHash appends an 8-hex-char digest of the relative location.
	StrategyHash Strategy = "hash"
	// StrategyPath prefixes sanitized directory segments onto the name.
	StrategyPath Strategy = "path"
)

// DefaultMaxNameBytes bounds the stem length; well under common filesystem
// limits (255 bytes) leaving room for collision suffixes and extensions.
const DefaultMaxNameBytes = 180

// Resolver builds destination paths for one run. Zero values for Sep and
// MaxNameBytes fall back to "_" and DefaultMaxNameBytes.
type Resolver struct {
	OutputRoot   string
	Flatten      bool
	Strategy     Strategy
	Sep          string
	MaxNameBytes int
}

// Resolve returns the destination path for a source file, before collision
// probing. relDir is the source directory relative to the input root ("." at
// the root), stem the source filename without extension, outExt the resolved
// output extension with dot.
func (r *Resolver) Resolve(relDir, stem, outExt string) string {
	if !r.Flatten {
		return filepath.Join(r.OutputRoot, relDir, stem+outExt)
	}

	var name string
	switch r.Strategy {
	case StrategyPath:
		if prefix := r.pathPrefix(relDir); prefix != "" {
			name = prefix + r.sep() + stem
		} else {
			name = stem
		}
	default: // StrategyHash
		if relDir == "." || relDir == "" {
			name = stem
		} else {
			sum := sha256.Sum256([]byte(relDir + "/" + stem))
			name = stem + "~" + hex.EncodeToString(sum[:4])
		}
	}

	name = truncateBytes(Sanitize(name), r.maxBytes())
	return filepath.Join(r.OutputRoot, name+outExt)
}

// pathPrefix joins the sanitized segments of relDir with the separator.
func (r *Resolver) pathPrefix(relDir string) string {
	if relDir == "." || relDir == "" {
		return ""
	}
	segs := strings.Split(filepath.ToSlash(relDir), "/")
	for i, s := range segs {
		segs[i] = Sanitize(s)
	}
	return strings.Join(segs, r.sep())
}

func (r *Resolver) sep() string {
	if r.Sep == "" {
		return "_"
	}
	return r.Sep
}

func (r *Resolver) maxBytes() int {
	if r.MaxNameBytes <= 0 {
		return DefaultMaxNameBytes
	}
	return r.MaxNameBytes
}

// Sanitize replaces characters that are illegal or troublesome in filenames
// with underscores.
func Sanitize(name string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c < 0x20, c == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, c):
			return '_'
		default:
			return c
		}
	}, name)
}

// truncateBytes shortens s to at most maxBytes of UTF-8, cutting only at
// rune boundaries so no partial multi-byte sequence survives.
func truncateBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	n := 0
	for n < len(s) {
		_, size := utf8.DecodeRuneInString(s[n:])
		if n+size > maxBytes {
			break
		}
		n += size
	}
	return s[:n]
}
