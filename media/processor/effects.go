package processor

import (
	"fmt"
	"math"

	"github.com/disintegration/imaging"

	apperrors "github.com/leeforge/imagepipe/errors"
)

func (e *Executor) applyEffect(buf *PixelBuffer, f Effect) (*PixelBuffer, error) {
	switch f.Kind {
	case EffectBlur:
		return FromImage(imaging.Blur(buf.Image(), e.config.BlurSigma))
	case EffectVignette:
		return vignette(buf, e.config.VignetteStrength, e.config.VignetteInner), nil
	case EffectGrayscale:
		return FromImage(imaging.Grayscale(buf.Image()))
	case EffectSepia:
		out := cloneBuffer(buf)
		SepiaMatrix().Apply(out)
		return out, nil
	default:
		return nil, apperrors.New(apperrors.ErrorTypeFilter, fmt.Sprintf("unknown effect %v", f.Kind)).
			WithCode(apperrors.CodeUnknownFilter)
	}
}

// vignette darkens RGB by 1 - strength*smoothstep(inner, 1, d), where d is
// the distance to the center over the half diagonal.
func vignette(buf *PixelBuffer, strength, inner float64) *PixelBuffer {
	out := cloneBuffer(buf)
	cx, cy := float64(buf.Width)/2, float64(buf.Height)/2
	halfDiag := math.Hypot(cx, cy)

	for y := 0; y < buf.Height; y++ {
		dy := float64(y) + 0.5 - cy
		row := out.Pix[y*buf.Width*4 : (y+1)*buf.Width*4]
		for x := 0; x < buf.Width; x++ {
			dx := float64(x) + 0.5 - cx
			k := 1 - strength*smoothstep(inner, 1, math.Hypot(dx, dy)/halfDiag)
			if k >= 1 {
				continue
			}
			p := row[x*4 : x*4+3]
			p[0] = clamp8(float64(p[0]) * k)
			p[1] = clamp8(float64(p[1]) * k)
			p[2] = clamp8(float64(p[2]) * k)
		}
	}
	return out
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := (x - edge0) / (edge1 - edge0)
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

func cloneBuffer(buf *PixelBuffer) *PixelBuffer {
	pix := make([]uint8, len(buf.Pix))
	copy(pix, buf.Pix)
	return &PixelBuffer{Width: buf.Width, Height: buf.Height, Pix: pix}
}
