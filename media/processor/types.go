package processor

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"strings"

	"golang.org/x/text/cases"

	apperrors "github.com/leeforge/imagepipe/errors"
)

// Source is a readable image handle. Open may be called more than once per
// invocation; every call must yield the stream from its beginning.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// PixelBuffer is a packed 8-bit non-premultiplied RGBA raster.
// len(Pix) == Width*Height*4 and rows are contiguous.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.NewInvalidDimensions(fmt.Sprintf("%dx%d", width, height))
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// Image returns an *image.NRGBA view sharing the buffer's pixels.
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Bounds returns the buffer rectangle.
func (b *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// FromImage converts img into a PixelBuffer. A tightly packed NRGBA anchored
// at the origin is adopted without copying; the caller gives it up.
func FromImage(img image.Image) (*PixelBuffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, apperrors.NewInvalidDimensions(fmt.Sprintf("%dx%d", w, h))
	}

	if n, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) && n.Stride == w*4 && len(n.Pix) == w*h*4 {
		return &PixelBuffer{Width: w, Height: h, Pix: n.Pix}, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return &PixelBuffer{Width: w, Height: h, Pix: dst.Pix}, nil
}

// FilterKind names a filter variant.
type FilterKind string

const (
	KindResize      FilterKind = "resize"
	KindRotate      FilterKind = "rotate"
	KindCrop        FilterKind = "crop"
	KindColorAdjust FilterKind = "color_adjust"
	KindEffect      FilterKind = "effect"
)

// Filter is one transformation step. The set of implementations is closed.
type Filter interface {
	Kind() FilterKind
	sealed()
}

// FilterChain is applied left to right.
type FilterChain []Filter

// Resize scales the buffer down to fit inside MaxWidth x MaxHeight.
type Resize struct {
	MaxWidth  int
	MaxHeight int
}

// Rotate turns the buffer clockwise around its center.
type Rotate struct {
	Degrees float64
}

// NormalizedRect is a rectangle in [0,1] coordinates of the current buffer.
type NormalizedRect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Crop extracts a normalized sub-region.
type Crop struct {
	Rect NormalizedRect
}

// ColorAdjust applies saturation, then contrast, then brightness.
// Brightness is an offset in channel units (-255..255); the identity is
// Brightness 0, Contrast 1, Saturation 1.
type ColorAdjust struct {
	Brightness float64
	Contrast   float64
	Saturation float64
}

// Effect applies a stylistic effect.
type Effect struct {
	Kind EffectKind
}

func (Resize) Kind() FilterKind      { return KindResize }
func (Rotate) Kind() FilterKind      { return KindRotate }
func (Crop) Kind() FilterKind        { return KindCrop }
func (ColorAdjust) Kind() FilterKind { return KindColorAdjust }
func (Effect) Kind() FilterKind      { return KindEffect }

func (Resize) sealed()      {}
func (Rotate) sealed()      {}
func (Crop) sealed()        {}
func (ColorAdjust) sealed() {}
func (Effect) sealed()      {}

// EffectKind enumerates the stylistic effects.
type EffectKind int

const (
	EffectBlur EffectKind = iota + 1
	EffectVignette
	EffectGrayscale
	EffectSepia
)

var effectNames = map[EffectKind]string{
	EffectBlur:      "blur",
	EffectVignette:  "vignette",
	EffectGrayscale: "grayscale",
	EffectSepia:     "sepia",
}

func (k EffectKind) String() string {
	if name, ok := effectNames[k]; ok {
		return name
	}
	return fmt.Sprintf("effect(%d)", int(k))
}

var fold = cases.Fold()

// ParseEffectKind parses an effect name, ignoring case.
func ParseEffectKind(s string) (EffectKind, error) {
	name := fold.String(strings.TrimSpace(s))
	for kind, n := range effectNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, apperrors.NewInvalid("effect", s, "expected one of blur, vignette, grayscale, sepia")
}

// Result is the terminal outcome of one pipeline invocation: either
// Success or Failure.
type Result interface {
	isResult()
}

// Success carries the written target location.
type Success struct {
	Output string
}

// Failure carries a human-readable message and the underlying error.
type Failure struct {
	Message string
	Err     error
}

func (Success) isResult() {}
func (Failure) isResult() {}
