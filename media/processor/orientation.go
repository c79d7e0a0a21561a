package processor

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/imagepipe/errors"
	"github.com/leeforge/imagepipe/logging"
)

// Orientation is the EXIF orientation tag (1..8).
type Orientation int

const (
	OrientationIdentity   Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate90   Orientation = 6 // 90 clockwise
	OrientationTransverse Orientation = 7
	OrientationRotate270  Orientation = 8 // 270 clockwise
)

var orientationNames = [...]string{
	OrientationIdentity:   "identity",
	OrientationFlipH:      "flip-h",
	OrientationRotate180:  "rotate-180",
	OrientationFlipV:      "flip-v",
	OrientationTranspose:  "transpose",
	OrientationRotate90:   "rotate-90",
	OrientationTransverse: "transverse",
	OrientationRotate270:  "rotate-270",
}

func (o Orientation) String() string {
	if o >= OrientationIdentity && o <= OrientationRotate270 {
		return orientationNames[o]
	}
	return fmt.Sprintf("orientation(%d)", int(o))
}

// ReadOrientation reads the EXIF orientation of src. Missing metadata
// yields OrientationIdentity and an error describing why.
func ReadOrientation(ctx context.Context, src Source) (Orientation, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return OrientationIdentity, apperrors.NewOrientation(err)
	}
	defer rc.Close()

	x, err := exif.Decode(rc)
	if err != nil {
		return OrientationIdentity, apperrors.NewOrientation(err)
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationIdentity, apperrors.NewOrientation(err)
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationIdentity, apperrors.NewOrientation(err)
	}
	if v < int(OrientationIdentity) || v > int(OrientationRotate270) {
		return OrientationIdentity, nil
	}
	return Orientation(v), nil
}

// OrientationCorrector normalizes a buffer to upright using source metadata.
type OrientationCorrector struct {
	logger logging.Logger
}

// NewOrientationCorrector creates a corrector that logs skipped reads.
func NewOrientationCorrector(logger logging.Logger) *OrientationCorrector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OrientationCorrector{logger: logger}
}

// Correct never fails: unreadable metadata leaves buf untouched.
func (c *OrientationCorrector) Correct(ctx context.Context, buf *PixelBuffer, src Source) *PixelBuffer {
	o, err := ReadOrientation(ctx, src)
	if err != nil {
		logging.WithContext(c.logger, ctx).Debug("orientation not applied",
			zap.String("source", src.Name()), zap.Error(err))
		return buf
	}
	return ApplyOrientation(buf, o)
}

// ApplyOrientation returns buf itself for the identity tag.
func ApplyOrientation(buf *PixelBuffer, o Orientation) *PixelBuffer {
	var out *image.NRGBA
	img := buf.Image()

	// imaging rotates counter-clockwise.
	switch o {
	case OrientationFlipH:
		out = imaging.FlipH(img)
	case OrientationRotate180:
		out = imaging.Rotate180(img)
	case OrientationFlipV:
		out = imaging.FlipV(img)
	case OrientationTranspose:
		out = imaging.Transpose(img)
	case OrientationRotate90:
		out = imaging.Rotate270(img)
	case OrientationTransverse:
		out = imaging.Transverse(img)
	case OrientationRotate270:
		out = imaging.Rotate90(img)
	default:
		return buf
	}

	corrected, err := FromImage(out)
	if err != nil {
		return buf
	}
	return corrected
}
