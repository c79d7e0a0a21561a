package processor

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/imagepipe/pipelinetest"
)

var (
	red   = pipelinetest.TopLeft
	green = pipelinetest.TopRight
	blue  = pipelinetest.BottomLeft
	white = pipelinetest.BottomRight
)

// quadrantCenters samples the middle of each quadrant: TL, TR, BL, BR.
func quadrantCenters(buf *PixelBuffer) [4]color.NRGBA {
	img := buf.Image()
	w, h := buf.Width, buf.Height
	return [4]color.NRGBA{
		img.NRGBAAt(w/4, h/4),
		img.NRGBAAt(3*w/4, h/4),
		img.NRGBAAt(w/4, 3*h/4),
		img.NRGBAAt(3*w/4, 3*h/4),
	}
}

func assertNear(t *testing.T, want, got color.NRGBA, tol int) {
	t.Helper()
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			return -d
		}
		return d
	}
	if diff(want.R, got.R) > tol || diff(want.G, got.G) > tol || diff(want.B, got.B) > tol {
		t.Errorf("color %v not within %d of %v", got, tol, want)
	}
}

func TestReadOrientation(t *testing.T) {
	ctx := context.Background()
	plain := pipelinetest.JPEG(t, pipelinetest.Quadrants(64, 32))

	for o := 1; o <= 8; o++ {
		src := pipelinetest.NewSource("tagged.jpg", pipelinetest.WithOrientation(t, plain, o))
		got, err := ReadOrientation(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, Orientation(o), got)
	}

	t.Run("out of range tag", func(t *testing.T) {
		src := pipelinetest.NewSource("odd.jpg", pipelinetest.WithOrientation(t, plain, 9))
		got, err := ReadOrientation(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, OrientationIdentity, got)
	})

	t.Run("no metadata", func(t *testing.T) {
		got, err := ReadOrientation(ctx, pipelinetest.NewSource("plain.jpg", plain))
		assert.Error(t, err)
		assert.Equal(t, OrientationIdentity, got)
	})

	t.Run("png", func(t *testing.T) {
		data := pipelinetest.PNG(t, pipelinetest.Quadrants(8, 8))
		got, err := ReadOrientation(ctx, pipelinetest.NewSource("plain.png", data))
		assert.Error(t, err)
		assert.Equal(t, OrientationIdentity, got)
	})
}

func TestOrientationCorrector_Correct(t *testing.T) {
	tests := []struct {
		orientation int
		swapped     bool
		want        [4]color.NRGBA
	}{
		{1, false, [4]color.NRGBA{red, green, blue, white}},
		{2, false, [4]color.NRGBA{green, red, white, blue}},
		{3, false, [4]color.NRGBA{white, blue, green, red}},
		{4, false, [4]color.NRGBA{blue, white, red, green}},
		{5, true, [4]color.NRGBA{red, blue, green, white}},
		{6, true, [4]color.NRGBA{blue, red, white, green}},
		{7, true, [4]color.NRGBA{white, green, blue, red}},
		{8, true, [4]color.NRGBA{green, white, red, blue}},
	}

	ctx := context.Background()
	plain := pipelinetest.JPEG(t, pipelinetest.Quadrants(64, 32))
	decoder := NewDecoder(DefaultConfig())
	corrector := NewOrientationCorrector(nil)

	for _, tt := range tests {
		t.Run(Orientation(tt.orientation).String(), func(t *testing.T) {
			src := pipelinetest.NewSource("tagged.jpg", pipelinetest.WithOrientation(t, plain, tt.orientation))
			buf, _, err := decoder.Decode(ctx, src)
			require.NoError(t, err)

			out := corrector.Correct(ctx, buf, src)
			if tt.swapped {
				assert.Equal(t, 32, out.Width)
				assert.Equal(t, 64, out.Height)
			} else {
				assert.Equal(t, 64, out.Width)
				assert.Equal(t, 32, out.Height)
			}
			got := quadrantCenters(out)
			for i := range tt.want {
				assertNear(t, tt.want[i], got[i], 48)
			}
		})
	}
}

func TestOrientationCorrector_FallsBackToIdentity(t *testing.T) {
	ctx := context.Background()
	logger, logs := pipelinetest.ObservedLogger()
	corrector := NewOrientationCorrector(logger)
	buf, err := FromImage(pipelinetest.Quadrants(16, 8))
	require.NoError(t, err)

	t.Run("no metadata", func(t *testing.T) {
		src := pipelinetest.NewSource("plain.png", pipelinetest.PNG(t, pipelinetest.Quadrants(16, 8)))
		assert.Same(t, buf, corrector.Correct(ctx, buf, src))
	})

	t.Run("source gone after decode", func(t *testing.T) {
		src := pipelinetest.NewFlakySource("gone.jpg", nil, 0)
		assert.Same(t, buf, corrector.Correct(ctx, buf, src))
	})

	assert.Equal(t, 2, logs.FilterMessage("orientation not applied").Len())
}

func TestApplyOrientation_Identity(t *testing.T) {
	buf, err := FromImage(pipelinetest.Gradient(5, 3))
	require.NoError(t, err)
	assert.Same(t, buf, ApplyOrientation(buf, OrientationIdentity))
	assert.Same(t, buf, ApplyOrientation(buf, Orientation(0)))
}
