package processor

import (
	"context"
	"fmt"
	"image"
	"io"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegn"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/leeforge/imagepipe/errors"
)

// Decoder turns a Source into a PixelBuffer no larger than MaxWidth x MaxHeight.
type Decoder struct {
	maxWidth        int
	maxHeight       int
	maxSourcePixels int64
}

// Bounds is the result of the header-only pass.
type Bounds struct {
	Width  int
	Height int
	Format string
}

// NewDecoder creates a decoder from config.
func NewDecoder(config Config) *Decoder {
	config.applyDefaults()
	return &Decoder{
		maxWidth:        config.MaxWidth,
		maxHeight:       config.MaxHeight,
		maxSourcePixels: config.MaxSourcePixels,
	}
}

// SubsampleFactor returns the smallest power of two f for which
// width/f <= maxWidth and height/f <= maxHeight.
func SubsampleFactor(width, height, maxWidth, maxHeight int) int {
	factor := 1
	for width/factor > maxWidth || height/factor > maxHeight {
		factor *= 2
	}
	return factor
}

// maxIDCTScale is the largest reduction a JPEG can be decoded at directly.
const maxIDCTScale = 8

// decodeRaster decodes the pixels of r. JPEG streams are decoded through a
// scaled IDCT at up to 1/8 of their size, so no full-resolution raster is
// built; other formats decode at full size.
func decodeRaster(r io.Reader, format string, factor int) (image.Image, error) {
	if format == "jpeg" && factor > 1 {
		return jpegn.Decode(r, &jpegn.Options{ScaleDenom: min(factor, maxIDCTScale)})
	}
	img, _, err := image.Decode(r)
	return img, err
}

// DecodeBounds reads only the header of src.
func (d *Decoder) DecodeBounds(ctx context.Context, src Source) (Bounds, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return Bounds{}, apperrors.NewSourceUnavailable(src.Name(), err)
	}
	defer rc.Close()

	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return Bounds{}, apperrors.NewUnsupportedFormat(src.Name(), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Bounds{}, apperrors.NewUnsupportedFormat(src.Name(),
			fmt.Errorf("declared size %dx%d", cfg.Width, cfg.Height))
	}
	return Bounds{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Decode runs the bounds pass, picks the subsample factor, then re-opens
// src and decodes the pixels reduced by that factor.
func (d *Decoder) Decode(ctx context.Context, src Source) (*PixelBuffer, int, error) {
	bounds, err := d.DecodeBounds(ctx, src)
	if err != nil {
		return nil, 0, err
	}

	if int64(bounds.Width)*int64(bounds.Height) > d.maxSourcePixels {
		return nil, 0, apperrors.NewDecode(
			fmt.Sprintf("source %q is %dx%d, above the %d pixel limit", src.Name(), bounds.Width, bounds.Height, d.maxSourcePixels), nil).
			WithCode(apperrors.CodeSourceTooLarge)
	}

	factor := SubsampleFactor(bounds.Width, bounds.Height, d.maxWidth, d.maxHeight)

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, apperrors.NewSourceUnavailable(src.Name(), err)
	}
	img, err := decodeRaster(rc, bounds.Format, factor)
	rc.Close()
	if err != nil {
		return nil, 0, apperrors.NewUnsupportedFormat(src.Name(), err)
	}

	// 剩余倍数用 Box 补齐
	w := max(1, bounds.Width/factor)
	h := max(1, bounds.Height/factor)
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		img = imaging.Resize(img, w, h, imaging.Box)
	}

	buf, err := FromImage(img)
	if err != nil {
		return nil, 0, apperrors.NewDecode(fmt.Sprintf("source %q decoded to an empty image", src.Name()), err)
	}
	return buf, factor, nil
}
