package processor

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/imagepipe/errors"
	"github.com/leeforge/imagepipe/pipelinetest"
)

func TestEffects_ChangePixelsDeterministically(t *testing.T) {
	e := NewExecutor(DefaultConfig())

	for _, kind := range []EffectKind{EffectBlur, EffectVignette, EffectGrayscale, EffectSepia} {
		t.Run(kind.String(), func(t *testing.T) {
			buf := quadrantBuffer(t, 32, 32)
			before := append([]uint8(nil), buf.Pix...)

			first, err := e.Apply(buf, Effect{Kind: kind})
			require.NoError(t, err)
			second, err := e.Apply(buf, Effect{Kind: kind})
			require.NoError(t, err)

			assert.Equal(t, buf.Width, first.Width)
			assert.Equal(t, buf.Height, first.Height)
			assert.NotEqual(t, before, first.Pix, "effect left pixels unchanged")
			assert.Equal(t, first.Pix, second.Pix)
			assert.Equal(t, before, buf.Pix, "input must not change")
		})
	}
}

func TestEffect_Grayscale(t *testing.T) {
	e := NewExecutor(DefaultConfig())
	out, err := e.Apply(quadrantBuffer(t, 16, 16), Effect{Kind: EffectGrayscale})
	require.NoError(t, err)

	for i := 0; i < len(out.Pix); i += 4 {
		require.Equal(t, out.Pix[i], out.Pix[i+1])
		require.Equal(t, out.Pix[i], out.Pix[i+2])
	}
}

func TestEffect_Sepia(t *testing.T) {
	e := NewExecutor(DefaultConfig())
	out, err := e.Apply(solidBuffer(t, 2, 2, white), Effect{Kind: EffectSepia})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 239, A: 255}, out.Image().NRGBAAt(0, 0))
}

func TestEffect_Vignette(t *testing.T) {
	e := NewExecutor(DefaultConfig())
	out, err := e.Apply(solidBuffer(t, 64, 64, white), Effect{Kind: EffectVignette})
	require.NoError(t, err)

	img := out.Image()
	center := img.NRGBAAt(32, 32)
	corner := img.NRGBAAt(0, 0)
	mid := img.NRGBAAt(4, 4)

	assert.Equal(t, white, center)
	assert.Less(t, corner.R, mid.R)
	assert.Less(t, mid.R, center.R)
	assert.InDelta(t, 255*0.4, float64(corner.R), 8, "corners lose about the configured strength")
	assert.Equal(t, uint8(255), corner.A)
}

func TestEffect_Blur(t *testing.T) {
	e := NewExecutor(DefaultConfig())
	out, err := e.Apply(quadrantBuffer(t, 32, 32), Effect{Kind: EffectBlur})
	require.NoError(t, err)

	// Far from the seams a solid block stays solid; at the seam colors mix.
	assertNear(t, red, out.Image().NRGBAAt(2, 2), 2)
	seam := out.Image().NRGBAAt(16, 4)
	assert.Greater(t, seam.R, uint8(0))
	assert.Greater(t, seam.G, uint8(0))
}

func TestEffect_Unknown(t *testing.T) {
	e := NewExecutor(DefaultConfig())
	_, err := e.Apply(quadrantBuffer(t, 4, 4), Effect{Kind: EffectKind(42)})
	require.ErrorIs(t, err, apperrors.ErrFilter)
	assert.Equal(t, apperrors.CodeUnknownFilter, apperrors.FromError(err).Code)
}

func TestParseEffectKind(t *testing.T) {
	for _, s := range []string{"blur", "Blur", " SEPIA ", "grayscale", "Vignette"} {
		k, err := ParseEffectKind(s)
		require.NoError(t, err, s)
		assert.NotZero(t, k)
	}

	k, err := ParseEffectKind("VIGNETTE")
	require.NoError(t, err)
	assert.Equal(t, EffectVignette, k)

	_, err = ParseEffectKind("posterize")
	assert.Error(t, err)
	assert.Equal(t, "effect(42)", EffectKind(42).String())
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, smoothstep(0.4, 1, 0.2))
	assert.Equal(t, 1.0, smoothstep(0.4, 1, 1.3))
	assert.InDelta(t, 0.5, smoothstep(0.4, 1, 0.7), 1e-9)
}

func TestFromImage(t *testing.T) {
	t.Run("adopts packed nrgba", func(t *testing.T) {
		img := pipelinetest.Gradient(6, 4)
		buf, err := FromImage(img)
		require.NoError(t, err)
		assert.Same(t, &img.Pix[0], &buf.Pix[0])
	})

	t.Run("copies a sub image", func(t *testing.T) {
		img := pipelinetest.Quadrants(8, 8)
		sub := img.SubImage(img.Rect.Inset(2))
		buf, err := FromImage(sub)
		require.NoError(t, err)
		assert.Equal(t, 4, buf.Width)
		assert.Len(t, buf.Pix, 4*4*4)
		assert.Equal(t, red, buf.Image().NRGBAAt(0, 0))
		assert.Equal(t, white, buf.Image().NRGBAAt(3, 3))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromImage(pipelinetest.Gradient(0, 0))
		assert.ErrorIs(t, err, apperrors.ErrInvalidDimensions)
	})
}
