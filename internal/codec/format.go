// Package codec defines the image codec engine contract and a standard
// implementation backed by the Go image libraries.
//
// Format keys cover more formats than the standard engine can actually
// encode or decode; CanDecode/CanEncode report real capability and the
// pipeline's fallback chain handles the gaps.
package codec

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/cockroachdb/errors"
)

// Format is a normalized output format key.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
	AVIF Format = "avif"
	HEIF Format = "heif"
	TIFF Format = "tiff"
	GIF  Format = "gif"
	BMP  Format = "bmp"

	// Original is the non-format sentinel meaning "keep the source format".
	Original Format = "original"
)

// ParseFormat normalizes a user-supplied format string. Aliases: "jpg",
// "tif", "heic", and the "heif:hevc" bitstream variant are accepted.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	case "avif":
		return AVIF, nil
	case "heif", "heic", "heif:hevc", "heif:av1":
		return HEIF, nil
	case "tiff", "tif":
		return TIFF, nil
	case "gif":
		return GIF, nil
	case "bmp":
		return BMP, nil
	case "original", "keep", "preserve":
		return Original, nil
	default:
		return "", errors.Newf("unknown format %q (use jpeg|png|webp|avif|heif|tiff|gif|bmp|original)", s)
	}
}

// extToFormat maps lowercase file extensions (with dot) to formats.
var extToFormat = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".webp": WebP,
	".avif": AVIF,
	".heif": HEIF,
	".heic": HEIF,
	".tif":  TIFF,
	".tiff": TIFF,
	".gif":  GIF,
	".bmp":  BMP,
}

// FormatForExt returns the format corresponding to a file extension
// (".jpg" style, case-insensitive).
func FormatForExt(ext string) (Format, bool) {
	f, ok := extToFormat[strings.ToLower(ext)]
	return f, ok
}

// Ext returns the canonical output extension for a format, with dot.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case TIFF:
		return ".tiff"
	default:
		return "." + string(f)
	}
}

// HasAlpha reports whether the format can carry an alpha channel. Targets
// without alpha get their transparency flattened onto a background color
// before encoding.
func (f Format) HasAlpha() bool {
	switch f {
	case PNG, WebP, AVIF, HEIF, TIFF, GIF:
		return true
	default:
		return false
	}
}

// CanDecode reports whether the standard engine can read this format.
// AVIF and HEIF have no Go decoder, so such inputs travel the fallback chain.
func CanDecode(f Format) bool {
	switch f {
	case JPEG, PNG, WebP, TIFF, GIF, BMP:
		return true
	default:
		return false
	}
}

// CanEncode reports whether the standard engine can write this format.
// WebP, AVIF, and HEIF are decode-only or unsupported.
func CanEncode(f Format) bool {
	switch f {
	case JPEG, PNG, TIFF, GIF, BMP:
		return true
	default:
		return false
	}
}

// ParseHexColor parses "#rgb", "#rrggbb", or the bare variants into an opaque
// color, used as the background when flattening alpha.
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(h) {
	case 3:
		if _, err := fmt.Sscanf(h, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.NRGBA{}, errors.Newf("invalid background color %q", s)
		}
		r, g, b = r*17, g*17, b*17
	case 6:
		if _, err := fmt.Sscanf(h, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.NRGBA{}, errors.Newf("invalid background color %q", s)
		}
	default:
		return color.NRGBA{}, errors.Newf("invalid background color %q (use #rgb or #rrggbb)", s)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
