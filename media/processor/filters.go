package processor

import (
	"fmt"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	apperrors "github.com/leeforge/imagepipe/errors"
)

// Executor applies filter chains. It holds only read-only parameters and
// is safe for concurrent use.
type Executor struct {
	config Config
}

// NewExecutor creates an executor with the given effect parameters.
func NewExecutor(config Config) *Executor {
	config.applyDefaults()
	return &Executor{config: config}
}

// Run threads buf through chain. The first failing stage aborts the rest.
func (e *Executor) Run(buf *PixelBuffer, chain FilterChain) (*PixelBuffer, error) {
	for i, f := range chain {
		next, err := e.Apply(buf, f)
		if err != nil {
			kind := "nil"
			if f != nil {
				kind = string(f.Kind())
			}
			return nil, apperrors.FromError(err).
				WithDetail("stage", i).
				WithDetail("filter", kind)
		}
		buf = next
	}
	return buf, nil
}

// Apply runs a single filter.
func (e *Executor) Apply(buf *PixelBuffer, f Filter) (*PixelBuffer, error) {
	switch f := f.(type) {
	case Resize:
		return resizeBuffer(buf, f)
	case Rotate:
		return rotateBuffer(buf, f)
	case Crop:
		return cropBuffer(buf, f)
	case ColorAdjust:
		return adjustColors(buf, f), nil
	case Effect:
		return e.applyEffect(buf, f)
	default:
		return nil, apperrors.New(apperrors.ErrorTypeFilter, fmt.Sprintf("unknown filter %T", f)).
			WithCode(apperrors.CodeUnknownFilter)
	}
}

// ResizeDimensions returns the size after a Resize filter and whether the
// buffer changes at all.
func ResizeDimensions(width, height, maxWidth, maxHeight int) (int, int, bool) {
	if width <= maxWidth && height <= maxHeight {
		return width, height, false
	}
	// Scale by the tighter ratio; the other side truncates.
	if maxWidth*height <= maxHeight*width {
		return maxWidth, max(1, height*maxWidth/width), true
	}
	return max(1, width*maxHeight/height), maxHeight, true
}

func resizeBuffer(buf *PixelBuffer, f Resize) (*PixelBuffer, error) {
	if f.MaxWidth <= 0 || f.MaxHeight <= 0 {
		return nil, apperrors.NewInvalidDimensions(fmt.Sprintf("resize bounds %dx%d", f.MaxWidth, f.MaxHeight))
	}
	w, h, changed := ResizeDimensions(buf.Width, buf.Height, f.MaxWidth, f.MaxHeight)
	if !changed {
		return buf, nil
	}
	return FromImage(resize.Resize(uint(w), uint(h), buf.Image(), resize.Lanczos3))
}

func rotateBuffer(buf *PixelBuffer, f Rotate) (*PixelBuffer, error) {
	if math.IsNaN(f.Degrees) || math.IsInf(f.Degrees, 0) {
		return nil, apperrors.NewInvalidDimensions(fmt.Sprintf("rotation angle %v", f.Degrees))
	}
	deg := math.Mod(f.Degrees, 360)
	if deg < 0 {
		deg += 360
	}
	if deg == 0 {
		return buf, nil
	}
	// imaging takes counter-clockwise degrees.
	return FromImage(imaging.Rotate(buf.Image(), 360-deg, color.Transparent))
}

func cropBuffer(buf *PixelBuffer, f Crop) (*PixelBuffer, error) {
	r := f.Rect
	for _, v := range []float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, apperrors.NewInvalidCropRegion(fmt.Sprintf("coordinate %v outside [0,1]", v))
		}
	}

	left := int(r.Left * float64(buf.Width))
	top := int(r.Top * float64(buf.Height))
	width := int((r.Right - r.Left) * float64(buf.Width))
	height := int((r.Bottom - r.Top) * float64(buf.Height))

	if width <= 0 || height <= 0 {
		return nil, apperrors.NewInvalidCropRegion(fmt.Sprintf("region %dx%d is empty", width, height)).
			WithDetail("rect", r)
	}
	if left+width > buf.Width || top+height > buf.Height {
		return nil, apperrors.NewInvalidCropRegion("region extends past the image").
			WithDetail("rect", r)
	}
	if left == 0 && top == 0 && width == buf.Width && height == buf.Height {
		return buf, nil
	}

	out, err := NewPixelBuffer(width, height)
	if err != nil {
		return nil, err
	}
	srcStride, dstStride := buf.Width*4, width*4
	for y := 0; y < height; y++ {
		src := (top+y)*srcStride + left*4
		copy(out.Pix[y*dstStride:(y+1)*dstStride], buf.Pix[src:src+dstStride])
	}
	return out, nil
}

// ColorAdjustMatrix composes saturation, contrast and brightness into one matrix.
func ColorAdjustMatrix(f ColorAdjust) ColorMatrix {
	return SaturationMatrix(f.Saturation).
		PostConcat(ScaleMatrix(f.Contrast, f.Contrast, f.Contrast, 1)).
		PostConcat(OffsetMatrix(f.Brightness))
}

func adjustColors(buf *PixelBuffer, f ColorAdjust) *PixelBuffer {
	m := ColorAdjustMatrix(f)
	if m.IsIdentity() {
		return buf
	}
	out := &PixelBuffer{Width: buf.Width, Height: buf.Height, Pix: make([]uint8, len(buf.Pix))}
	copy(out.Pix, buf.Pix)
	m.Apply(out)
	return out
}
