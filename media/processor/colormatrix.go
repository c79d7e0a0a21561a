package processor

import "math"

// ColorMatrix is a 4x5 row-major matrix over (R, G, B, A, 1). Row i yields
// output channel i; column 4 is an offset in channel units.
type ColorMatrix [20]float64

// IdentityMatrix returns the identity transform.
func IdentityMatrix() ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Luminance weights used for desaturation.
const (
	lumR = 0.213
	lumG = 0.715
	lumB = 0.072
)

// SaturationMatrix scales saturation; 0 is grayscale, 1 the identity.
func SaturationMatrix(s float64) ColorMatrix {
	inv := 1 - s
	r, g, b := lumR*inv, lumG*inv, lumB*inv
	return ColorMatrix{
		r + s, g, b, 0, 0,
		r, g + s, b, 0, 0,
		r, g, b + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// ScaleMatrix scales each channel.
func ScaleMatrix(r, g, b, a float64) ColorMatrix {
	return ColorMatrix{
		r, 0, 0, 0, 0,
		0, g, 0, 0, 0,
		0, 0, b, 0, 0,
		0, 0, 0, a, 0,
	}
}

// OffsetMatrix adds v to R, G and B.
func OffsetMatrix(v float64) ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, v,
		0, 1, 0, 0, v,
		0, 0, 1, 0, v,
		0, 0, 0, 1, 0,
	}
}

// SepiaMatrix is the classic sepia tone transform.
func SepiaMatrix() ColorMatrix {
	return ColorMatrix{
		0.393, 0.769, 0.189, 0, 0,
		0.349, 0.686, 0.168, 0, 0,
		0.272, 0.534, 0.131, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// PostConcat returns post ∘ m: m is applied first, then post.
func (m ColorMatrix) PostConcat(post ColorMatrix) ColorMatrix {
	var out ColorMatrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			var v float64
			for k := 0; k < 4; k++ {
				v += post[i*5+k] * m[k*5+j]
			}
			if j == 4 {
				v += post[i*5+4]
			}
			out[i*5+j] = v
		}
	}
	return out
}

// IsIdentity reports whether m leaves every pixel unchanged.
func (m ColorMatrix) IsIdentity() bool {
	return m == IdentityMatrix()
}

// Apply transforms buf in place, one pass over the pixels.
func (m ColorMatrix) Apply(buf *PixelBuffer) {
	pix := buf.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b, a := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2]), float64(pix[i+3])
		pix[i] = clamp8(m[0]*r + m[1]*g + m[2]*b + m[3]*a + m[4])
		pix[i+1] = clamp8(m[5]*r + m[6]*g + m[7]*b + m[8]*a + m[9])
		pix[i+2] = clamp8(m[10]*r + m[11]*g + m[12]*b + m[13]*a + m[14])
		pix[i+3] = clamp8(m[15]*r + m[16]*g + m[17]*b + m[18]*a + m[19])
	}
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
