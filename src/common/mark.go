package common

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// MarkOptions controls how the source mark is loaded and trimmed.
type MarkOptions struct {
	// RasterSize is the square box the mark is fitted into before trimming.
	RasterSize int
	Trim       TrimOptions
}

// RequireFile returns ErrAssetNotFound when path does not exist.
func RequireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrAssetNotFound, "%s", path)
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return errors.Wrapf(ErrAssetNotFound, "%s is a directory", path)
	}
	return nil
}

// LoadMark reads an SVG or raster mark, fits it into RasterSize and trims it
// to its content box.
func LoadMark(path string, opts MarkOptions) (*image.NRGBA, error) {
	if err := RequireFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mark")
	}

	var img image.Image
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		img, err = RasterizeSVG(data, opts.RasterSize, opts.RasterSize)
	} else {
		img, err = DecodeRaster(data, opts.RasterSize)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load mark %s", path)
	}

	trimmed, _, err := Trim(img, opts.Trim)
	if err != nil {
		return nil, errors.Wrapf(err, "mark %s", path)
	}
	return trimmed, nil
}

// DecodeRaster decodes a PNG, JPEG or GIF and shrinks it to fit within
// box x box. Smaller images are kept at their native size.
func DecodeRaster(data []byte, box int) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	if box > 0 {
		img = resize.Thumbnail(uint(box), uint(box), img, resize.Lanczos3)
	}
	return imaging.Clone(img), nil
}

// RasterizeSVG renders an SVG document contain-fitted and centred on a
// transparent w x h canvas.
func RasterizeSVG(data []byte, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid raster size %dx%d", w, h)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse svg")
	}

	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		vw, vh = float64(w), float64(h)
	}
	scale := min(float64(w)/vw, float64(h)/vh)
	outW, outH := vw*scale, vh*scale
	icon.SetTarget((float64(w)-outW)/2, (float64(h)-outH)/2, outW, outH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	return imaging.Clone(dst), nil
}
