// Package favicon renders the favicon set and packs the .ico container.
package favicon

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"brandkit/src/common"
	"brandkit/src/config"
	"brandkit/src/ico"
)

// DefaultSizes are the rendered icon sizes.
var DefaultSizes = []int{16, 32, 48, 180}

// DefaultICOSizes are the sizes bundled into the .ico container.
var DefaultICOSizes = []int{16, 32, 48}

// Options configures a Builder.
type Options struct {
	Sizes        []int
	ICOSizes     []int
	ContentScale float64
	Background   common.Background
	// Suffix is appended to every file name, e.g. "-v5".
	Suffix  string
	Encoder ico.Encoder

	// AppleTouchName replaces the default 180px name when set.
	AppleTouchName string
}

// Icon is one rendered size.
type Icon struct {
	Size  int
	Name  string
	Image *image.NRGBA
}

// IconSet holds the icons in Options.Sizes order.
type IconSet []Icon

// Get returns the icon of the given size.
func (s IconSet) Get(size int) (Icon, bool) {
	for _, icon := range s {
		if icon.Size == size {
			return icon, true
		}
	}
	return Icon{}, false
}

// Result lists what Build wrote.
type Result struct {
	Icons   IconSet
	Files   []string
	ICOPath string
}

// Builder renders the favicon set from a trimmed mark.
type Builder struct {
	opts Options
}

// NewBuilder creates a new favicon builder
func NewBuilder(opts Options) (*Builder, error) {
	if len(opts.Sizes) == 0 {
		opts.Sizes = DefaultSizes
	}
	if opts.ICOSizes == nil {
		opts.ICOSizes = DefaultICOSizes
	}
	if opts.Encoder == nil {
		opts.Encoder = ico.DefaultChain()
	}
	if opts.ContentScale <= 0 || opts.ContentScale > 1 {
		return nil, errors.Errorf("content scale %g must be within (0, 1]", opts.ContentScale)
	}
	seen := make(map[int]bool, len(opts.Sizes))
	for _, s := range opts.Sizes {
		if s <= 0 || seen[s] {
			return nil, errors.Errorf("invalid or duplicate icon size %d", s)
		}
		seen[s] = true
	}
	for _, s := range opts.ICOSizes {
		if !seen[s] {
			return nil, errors.Errorf("ico size %d is not rendered", s)
		}
	}
	return &Builder{opts: opts}, nil
}

// OptionsFromConfig maps the icons section of cfg and its revision suffix.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	bg := common.TransparentBackground
	rgb, err := cfg.Icons.Background.Parse()
	if err != nil {
		return Options{}, errors.Wrap(err, "icons.background")
	}
	if rgb != nil {
		bg = common.Opaque(rgb.R, rgb.G, rgb.B)
	}
	chain, err := ico.ChainFromNames(cfg.Icons.Encoders)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Sizes:          cfg.Icons.Sizes,
		ICOSizes:       cfg.Icons.ICOSizes,
		ContentScale:   cfg.Icons.ContentScale,
		Background:     bg,
		Suffix:         cfg.Suffix(),
		Encoder:        chain,
		AppleTouchName: cfg.Icons.AppleTouchName,
	}, nil
}

// FileName returns the output name for size.
func FileName(size int, suffix string) string {
	switch size {
	case 16, 32, 48:
		return fmt.Sprintf("favicon-%dx%d%s.png", size, size, suffix)
	case 180:
		return fmt.Sprintf("apple-touch-icon%s.png", suffix)
	default:
		return fmt.Sprintf("icon-%dx%d%s.png", size, size, suffix)
	}
}

func (b *Builder) fileName(size int) string {
	if size == 180 && b.opts.AppleTouchName != "" {
		return b.opts.AppleTouchName + b.opts.Suffix + ".png"
	}
	return FileName(size, b.opts.Suffix)
}

// ICOName returns the container file name.
func ICOName(suffix string) string {
	return fmt.Sprintf("favicon%s.ico", suffix)
}

// ContentSize is round(size * scale), at least one pixel.
func ContentSize(size int, scale float64) int {
	return max(int(math.Round(float64(size)*scale)), 1)
}

// Render composes every size concurrently. It does no I/O.
func (b *Builder) Render(ctx context.Context, mark image.Image) (IconSet, error) {
	set := make(IconSet, len(b.opts.Sizes))
	g, ctx := errgroup.WithContext(ctx)
	for i, size := range b.opts.Sizes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := common.Compose(mark, ContentSize(size, b.opts.ContentScale), common.CanvasSpec{
				Size:       size,
				Background: b.opts.Background,
			})
			if err != nil {
				return errors.Wrapf(err, "render %dx%d", size, size)
			}
			set[i] = Icon{Size: size, Name: b.fileName(size), Image: img}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// Build renders the set, writes one PNG per size into dir, then packs the
// ICO sizes read back from disk.
func (b *Builder) Build(ctx context.Context, mark image.Image, dir string) (*Result, error) {
	set, err := b.Render(ctx, mark)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	res := &Result{Icons: set, Files: make([]string, len(set))}
	g, ctx := errgroup.WithContext(ctx)
	for i, icon := range set {
		path := filepath.Join(dir, icon.Name)
		res.Files[i] = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return WritePNG(path, icon.Image)
		})
	}
	// every PNG must exist before packing
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(b.opts.ICOSizes) == 0 {
		return res, nil
	}

	pngs := make([][]byte, len(b.opts.ICOSizes))
	for i, size := range b.opts.ICOSizes {
		data, err := os.ReadFile(filepath.Join(dir, b.fileName(size)))
		if err != nil {
			return nil, errors.Wrapf(err, "read back %dx%d", size, size)
		}
		pngs[i] = data
	}

	data, err := b.opts.Encoder.Encode(pngs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack ico")
	}
	res.ICOPath = filepath.Join(dir, ICOName(b.opts.Suffix))
	if err := os.WriteFile(res.ICOPath, data, 0644); err != nil {
		return nil, errors.Wrap(err, "failed to write ico")
	}
	res.Files = append(res.Files, res.ICOPath)

	log.WithFields(log.Fields{
		"icons": len(set),
		"ico":   filepath.Base(res.ICOPath),
	}).Info("favicon set written")
	return res, nil
}

// WritePNG encodes img as PNG at path.
func WritePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return errors.Wrapf(err, "encode %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	return nil
}
