// Package ico packs PNG icon variants into a multi-resolution .ico container.
package ico

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"

	"github.com/pkg/errors"
	icoenc "github.com/sergeymakinen/go-ico"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Encoder turns PNG-encoded icon variants into a single .ico file.
type Encoder interface {
	Name() string
	Encode(pngs [][]byte) ([]byte, error)
}

// ErrNoImages is returned when there is nothing to pack.
var ErrNoImages = errors.New("no images to pack")

// PNGEncoder writes directory entries that embed the PNG payloads as-is.
type PNGEncoder struct{}

// Name implements Encoder.
func (PNGEncoder) Name() string { return "png" }

// Encode implements Encoder.
func (PNGEncoder) Encode(pngs [][]byte) ([]byte, error) {
	if len(pngs) == 0 {
		return nil, ErrNoImages
	}
	if len(pngs) > 0xffff {
		return nil, errors.Errorf("too many images: %d", len(pngs))
	}

	sizes := make([]image.Point, len(pngs))
	for i, p := range pngs {
		cfg, err := png.DecodeConfig(bytes.NewReader(p))
		if err != nil {
			return nil, errors.Wrapf(err, "image %d", i)
		}
		if cfg.Width > 256 || cfg.Height > 256 {
			return nil, errors.Errorf("image %d is %dx%d, icons are limited to 256x256", i, cfg.Width, cfg.Height)
		}
		sizes[i] = image.Pt(cfg.Width, cfg.Height)
	}

	var buf bytes.Buffer
	// Header: reserved, type (1=ICO), count.
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, uint16(len(pngs))})

	offset := uint32(6 + 16*len(pngs))
	for i, p := range pngs {
		buf.Write([]byte{dim(sizes[i].X), dim(sizes[i].Y), 0, 0}) // width, height, palette, reserved
		binary.Write(&buf, binary.LittleEndian, uint16(1))       // color planes
		binary.Write(&buf, binary.LittleEndian, uint16(32))      // bits per pixel
		binary.Write(&buf, binary.LittleEndian, uint32(len(p)))  // data size
		binary.Write(&buf, binary.LittleEndian, offset)          // data offset
		offset += uint32(len(p))
	}
	for _, p := range pngs {
		buf.Write(p)
	}
	return buf.Bytes(), nil
}

// 256 is stored as 0.
func dim(n int) uint8 {
	if n >= 256 {
		return 0
	}
	return uint8(n)
}

// BMPEncoder decodes the PNGs and re-encodes them as BMP entries.
type BMPEncoder struct{}

// Name implements Encoder.
func (BMPEncoder) Name() string { return "bmp" }

// Encode implements Encoder.
func (BMPEncoder) Encode(pngs [][]byte) ([]byte, error) {
	if len(pngs) == 0 {
		return nil, ErrNoImages
	}
	images := make([]image.Image, len(pngs))
	for i, p := range pngs {
		img, err := png.Decode(bytes.NewReader(p))
		if err != nil {
			return nil, errors.Wrapf(err, "image %d", i)
		}
		images[i] = img
	}

	var buf bytes.Buffer
	if err := icoenc.EncodeAll(&buf, images); err != nil {
		return nil, errors.Wrap(err, "go-ico")
	}
	return buf.Bytes(), nil
}

// Chain tries each encoder in order; the first success wins.
type Chain []Encoder

// DefaultChain is the PNG encoder with the BMP encoder as fallback.
func DefaultChain() Chain {
	return Chain{PNGEncoder{}, BMPEncoder{}}
}

// ChainFromNames builds a chain from encoder names ("png", "bmp").
func ChainFromNames(names []string) (Chain, error) {
	if len(names) == 0 {
		return DefaultChain(), nil
	}
	chain := make(Chain, 0, len(names))
	for _, n := range names {
		switch n {
		case "png":
			chain = append(chain, PNGEncoder{})
		case "bmp":
			chain = append(chain, BMPEncoder{})
		default:
			return nil, errors.Errorf("unknown ico encoder %q", n)
		}
	}
	return chain, nil
}

// Name implements Encoder.
func (c Chain) Name() string { return "chain" }

// Encode implements Encoder. It fails only when every encoder fails.
func (c Chain) Encode(pngs [][]byte) ([]byte, error) {
	if len(c) == 0 {
		return nil, errors.New("empty encoder chain")
	}
	var errs error
	for _, enc := range c {
		out, err := enc.Encode(pngs)
		if err == nil && len(out) > 0 {
			return out, nil
		}
		if err == nil {
			err = errors.New("empty output")
		}
		log.WithError(err).WithField("encoder", enc.Name()).Debug("ico encoder failed, trying next")
		errs = multierr.Append(errs, errors.Wrapf(err, "%s encoder", enc.Name()))
	}
	return nil, errors.Wrap(errs, "all ico encoders failed")
}
