// Package pipelinetest provides synthetic images, sources and loggers for
// tests of the pipeline packages.
package pipelinetest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leeforge/imagepipe/logging"
)

// Quadrant colors of Quadrants.
var (
	TopLeft     = color.NRGBA{R: 255, A: 255}
	TopRight    = color.NRGBA{G: 255, A: 255}
	BottomLeft  = color.NRGBA{B: 255, A: 255}
	BottomRight = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Gradient returns a deterministic w x h test pattern.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x * 255 / max(1, w-1))
			img.Pix[i+1] = uint8(y * 255 / max(1, h-1))
			img.Pix[i+2] = uint8((x + y) % 256)
			img.Pix[i+3] = 255
		}
	}
	return img
}

// Quadrants returns an image split into four solid color blocks.
func Quadrants(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := TopLeft
			switch {
			case x >= w/2 && y < h/2:
				c = TopRight
			case x < w/2 && y >= h/2:
				c = BottomLeft
			case x >= w/2 && y >= h/2:
				c = BottomRight
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// Solid returns a single-color image.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// JPEG encodes img at quality 95.
func JPEG(tb testing.TB, img image.Image) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		tb.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// PNG encodes img losslessly.
func PNG(tb testing.TB, img image.Image) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		tb.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WithOrientation inserts an APP1 EXIF segment carrying the given
// orientation right after the SOI marker of a JPEG stream.
func WithOrientation(tb testing.TB, jpegData []byte, orientation int) []byte {
	tb.Helper()
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		tb.Fatalf("not a JPEG stream")
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, binary.BigEndian, uint16(42))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1))      // entries
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	_ = binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(orientation))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0)) // next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}

// WriteFile stores data under dir and returns the path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Decode reads an encoded image file back.
func Decode(tb testing.TB, path string) image.Image {
	tb.Helper()
	img, err := imaging.Open(path)
	if err != nil {
		tb.Fatalf("decode %s: %v", path, err)
	}
	return img
}

// Source is an in-memory source that can be told to fail after a number
// of successful opens.
type Source struct {
	name      string
	data      []byte
	failAfter int

	mu    sync.Mutex
	opens int
}

// ErrOpen is returned by a Source once its budget of opens is used up.
var ErrOpen = errors.New("pipelinetest: source unavailable")

// NewSource returns a source that always opens.
func NewSource(name string, data []byte) *Source {
	return &Source{name: name, data: data, failAfter: -1}
}

// NewFlakySource returns a source whose opens fail after n successes.
func NewFlakySource(name string, data []byte, n int) *Source {
	return &Source{name: name, data: data, failAfter: n}
}

func (s *Source) Name() string { return s.name }

func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && s.opens >= s.failAfter {
		return nil, ErrOpen
	}
	s.opens++
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// Opens reports how many opens succeeded.
func (s *Source) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// ObservedLogger returns a debug-level Logger whose entries can be inspected.
func ObservedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}
