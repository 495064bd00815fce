package common

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultThreshold is the near-white cutoff used by the v5 scripts.
const DefaultThreshold = 220

var (
	// ErrNoContent means a source image had no foreground pixel.
	ErrNoContent = errors.New("source image has no detectable content")
	// ErrAssetNotFound means a required input file is missing.
	ErrAssetNotFound = errors.New("asset not found")
)

// Box is an inclusive pixel bounding box.
type Box struct {
	MinX, MinY, MaxX, MaxY int
}

// EmptyBox is returned when no foreground pixel exists.
var EmptyBox = Box{MinX: 0, MinY: 0, MaxX: -1, MaxY: -1}

// Empty reports whether b encloses no pixel.
func (b Box) Empty() bool {
	return b.MaxX < b.MinX || b.MaxY < b.MinY
}

// Dx is the number of columns covered.
func (b Box) Dx() int {
	if b.Empty() {
		return 0
	}
	return b.MaxX - b.MinX + 1
}

// Dy is the number of rows covered.
func (b Box) Dy() int {
	if b.Empty() {
		return 0
	}
	return b.MaxY - b.MinY + 1
}

// Rect converts b to a half-open image.Rectangle.
func (b Box) Rect() image.Rectangle {
	if b.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(b.MinX, b.MinY, b.MaxX+1, b.MaxY+1)
}

// IsForeground applies the background rule to one non-premultiplied pixel.
func IsForeground(r, g, b, a, threshold uint8) bool {
	if a == 0 {
		return false
	}
	return r < threshold || g < threshold || b < threshold
}

// DetectBounds scans img once and returns the tightest box around every
// foreground pixel, in img's coordinate space.
func DetectBounds(img image.Image, threshold uint8) Box {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	box := Box{MinX: w, MinY: h, MaxX: -1, MaxY: -1}
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+4]
			if !IsForeground(p[0], p[1], p[2], p[3], threshold) {
				continue
			}
			if x < box.MinX {
				box.MinX = x
			}
			if x > box.MaxX {
				box.MaxX = x
			}
			if y < box.MinY {
				box.MinY = y
			}
			if y > box.MaxY {
				box.MaxY = y
			}
		}
	}

	if box.MaxX < 0 {
		return EmptyBox
	}

	off := img.Bounds().Min
	box.MinX += off.X
	box.MaxX += off.X
	box.MinY += off.Y
	box.MaxY += off.Y
	return box
}

// PadBox grows b by ratio of its own size on every side and clamps it to bounds.
func PadBox(b Box, ratio float64, bounds image.Rectangle) Box {
	if b.Empty() {
		return b
	}
	padX := int(math.Round(float64(b.Dx()) * ratio))
	padY := int(math.Round(float64(b.Dy()) * ratio))

	return Box{
		MinX: max(b.MinX-padX, bounds.Min.X),
		MinY: max(b.MinY-padY, bounds.Min.Y),
		MaxX: min(b.MaxX+padX, bounds.Max.X-1),
		MaxY: min(b.MaxY+padY, bounds.Max.Y-1),
	}
}

// TrimOptions configures Trim.
type TrimOptions struct {
	Threshold uint8
	Padding   float64
}

// Trim crops img to its padded content box. It returns ErrNoContent when the
// image is all background.
func Trim(img image.Image, opts TrimOptions) (*image.NRGBA, Box, error) {
	box := DetectBounds(img, opts.Threshold)
	if box.Empty() {
		return nil, box, ErrNoContent
	}
	box = PadBox(box, opts.Padding, img.Bounds())
	return imaging.Crop(img, box.Rect()), box, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return imaging.Clone(img)
}
