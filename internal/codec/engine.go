package codec

import (
	"image"
	"image/color"
	"io"

	"github.com/cockroachdb/errors"
)

// Sentinel errors used by the pipeline to distinguish capability gaps from
// corrupt input. Both are content errors, never transient.
var (
	ErrNoDecoder = errors.New("no decoder for format")
	ErrNoEncoder = errors.New("no encoder for format")
)

// Engine is the image codec collaborator. Implementations may run internal
// worker threads; SetThreadBudget bounds them and may be called concurrently
// with in-flight operations (the new budget applies to subsequent work).
type Engine interface {
	// Decode reads and decodes the image at path.
	Decode(path string) (image.Image, error)

	// Resize scales img to fit inside maxW x maxH preserving aspect ratio.
	// Images already within bounds are returned unchanged (no upscaling).
	Resize(img image.Image, maxW, maxH int) image.Image

	// Normalize converts img to the canonical 8-bit sRGB RGBA form.
	Normalize(img image.Image) *image.RGBA

	// FlattenAlpha composites img over an opaque background, for targets
	// that cannot carry an alpha channel.
	FlattenAlpha(img image.Image, bg color.Color) *image.RGBA

	// Encode writes img to w in the given format. Returns ErrNoEncoder
	// (wrapped) when the format has no encoder.
	Encode(w io.Writer, img image.Image, f Format, quality int) error

	// SetThreadBudget bounds the engine's internal parallelism.
	SetThreadBudget(n int)
}
