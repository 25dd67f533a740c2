package codec

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	_ "golang.org/x/image/webp" // decode-only registration
)

// StdEngine implements Engine on the Go standard image libraries plus
// golang.org/x/image. Pixel work (decode, scale, encode) passes through a
// resizable gate so total engine parallelism tracks the co-tuned budget.
type StdEngine struct {
	gate *gate
}

// NewStdEngine creates an engine with an initial thread budget.
func NewStdEngine(threads int) *StdEngine {
	return &StdEngine{gate: newGate(threads)}
}

// SetThreadBudget bounds concurrent pixel operations. Safe to call while
// operations are in flight; shrinks apply to subsequent admissions.
func (e *StdEngine) SetThreadBudget(n int) {
	e.gate.setLimit(n)
}

// ThreadBudget returns the current budget, for diagnostics and tests.
func (e *StdEngine) ThreadBudget() int {
	return e.gate.currentLimit()
}

// Decode reads and decodes the image at path. Unrecognized container bytes
// map to ErrNoDecoder; recognized-but-corrupt data surfaces the codec error.
func (e *StdEngine) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open source")
	}
	defer f.Close()

	e.gate.acquire()
	defer e.gate.release()

	img, _, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, errors.Wrapf(ErrNoDecoder, "%s", path)
		}
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// Resize scales img to fit inside maxW x maxH, preserving aspect ratio and
// never upscaling. Non-positive bounds disable the corresponding limit.
func (e *StdEngine) Resize(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return img
	}

	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	if scale >= 1 {
		return img
	}

	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))

	e.gate.acquire()
	defer e.gate.release()
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Normalize converts img to the canonical 8-bit sRGB RGBA form. Images that
// are already RGBA are returned as-is.
func (e *StdEngine) Normalize(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Bounds(), img, b.Min, stddraw.Src)
	return dst
}

// FlattenAlpha composites img over an opaque background color.
func (e *StdEngine) FlattenAlpha(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, stddraw.Src)
	stddraw.Draw(dst, dst.Bounds(), img, b.Min, stddraw.Over)
	return dst
}

// Encode writes img to w in the given format.
func (e *StdEngine) Encode(w io.Writer, img image.Image, f Format, quality int) error {
	e.gate.acquire()
	defer e.gate.release()

	switch f {
	case JPEG:
		q := quality
		if q < 1 {
			q = 1
		} else if q > 100 {
			q = 100
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case PNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case GIF:
		return gif.Encode(w, img, nil)
	case BMP:
		return bmp.Encode(w, img)
	default:
		return errors.Wrapf(ErrNoEncoder, "%s", f)
	}
}
