package common

// Image processor for icon composition
//
// Responsibilities:
// 1. Contain-fit a trimmed mark into a square content box
// 2. Centre it on a square canvas filled with the configured background
// 3. Leave encoding and disk I/O to the callers

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Background is the canvas fill: fully transparent or an opaque RGB colour.
type Background struct {
	Transparent bool
	R, G, B     uint8
}

// TransparentBackground is the zero-alpha fill.
var TransparentBackground = Background{Transparent: true}

// Opaque returns an opaque background.
func Opaque(r, g, b uint8) Background {
	return Background{R: r, G: g, B: b}
}

// Color returns the fill colour.
func (b Background) Color() color.NRGBA {
	if b.Transparent {
		return color.NRGBA{}
	}
	return color.NRGBA{R: b.R, G: b.G, B: b.B, A: 0xff}
}

// CanvasSpec describes a square blank canvas.
type CanvasSpec struct {
	Size       int
	Background Background
}

// New allocates the blank canvas.
func (c CanvasSpec) New() *image.NRGBA {
	return imaging.New(c.Size, c.Size, c.Background.Color())
}

// ContainSize scales w x h so the larger side equals box, keeping the aspect
// ratio. Neither side drops below one pixel.
func ContainSize(w, h, box int) (int, int) {
	if w <= 0 || h <= 0 || box <= 0 {
		return 0, 0
	}
	scale := float64(box) / float64(max(w, h))
	cw := int(math.Round(float64(w) * scale))
	ch := int(math.Round(float64(h) * scale))
	return min(max(cw, 1), box), min(max(ch, 1), box)
}

// CenterOffset returns round((canvas - content) / 2).
func CenterOffset(canvas, content int) int {
	return int(math.Round(float64(canvas-content) / 2))
}

// Compose resizes src to fit within content x content and centres it on a
// fresh canvas. src is not modified.
func Compose(src image.Image, content int, canvas CanvasSpec) (*image.NRGBA, error) {
	if canvas.Size <= 0 {
		return nil, errors.Errorf("invalid canvas size %d", canvas.Size)
	}
	if content <= 0 || content > canvas.Size {
		return nil, errors.Errorf("content size %d must be within 1..%d", content, canvas.Size)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, errors.Wrap(ErrNoContent, "compose")
	}

	w, h := ContainSize(b.Dx(), b.Dy(), content)
	mark := imaging.Resize(src, w, h, imaging.Lanczos)

	left := CenterOffset(canvas.Size, w)
	top := CenterOffset(canvas.Size, h)

	return imaging.Overlay(canvas.New(), mark, image.Pt(left, top), 1.0), nil
}
