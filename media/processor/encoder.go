package processor

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	apperrors "github.com/leeforge/imagepipe/errors"
)

// Encoder writes JPEG files at the fixed Quality.
type Encoder struct{}

// NewEncoder creates an encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode writes buf to target atomically: the JPEG goes to a temporary file
// next to target and is renamed over it only once fully written.
func (e *Encoder) Encode(ctx context.Context, buf *PixelBuffer, target string) (err error) {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return apperrors.NewTargetNotWritable(target, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = imaging.Encode(w, buf.Image(), imaging.JPEG, imaging.JPEGQuality(Quality)); err != nil {
		return apperrors.NewEncode("jpeg encoding failed", err)
	}
	if err = w.Flush(); err != nil {
		return apperrors.NewTargetNotWritable(target, err)
	}
	if err = tmp.Sync(); err != nil {
		return apperrors.NewTargetNotWritable(target, err)
	}
	if err = tmp.Close(); err != nil {
		return apperrors.NewTargetNotWritable(target, err)
	}

	if err = ctx.Err(); err != nil {
		return apperrors.NewCanceled(err)
	}
	if err = os.Rename(tmpName, target); err != nil {
		return apperrors.NewTargetNotWritable(target, err)
	}
	return nil
}
