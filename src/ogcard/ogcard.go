// Package ogcard composes the 1200x630 social preview image.
package ogcard

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/opentype"

	"brandkit/src/common"
	"brandkit/src/config"
)

// Strategy selects how text is measured for wrapping.
type Strategy string

// Placement selects the vertical text policy.
type Placement string

const (
	// StrategyMetrics measures with the loaded font faces.
	StrategyMetrics Strategy = "metrics"
	// StrategyHeuristic uses EstimateWidth.
	StrategyHeuristic Strategy = "heuristic"

	// PlaceCenter centres the title and subtitle block vertically.
	PlaceCenter Placement = "center"
	// PlaceBaseline pins the title baseline to Options.TitleBaseline.
	PlaceBaseline Placement = "baseline"
)

// Options are the fixed layout constants of the card.
type Options struct {
	Width, Height int

	GradientFrom string
	GradientTo   string

	MarkHeight int
	MarkX      int

	TextX        float64
	MaxTextWidth float64
	TextColor    string

	Title                string
	Subtitle             string
	TitleSize            float64
	SubtitleSize         float64
	FallbackSubtitleSize float64
	LineGap              float64
	SubLineGap           float64

	Strategy      Strategy
	Placement     Placement
	TitleBaseline float64

	// Optional font files; the embedded Go fonts are used when empty.
	FontRegular string
	FontBold    string
}

// DefaultOptions returns the v5 card layout.
func DefaultOptions() Options {
	return Options{
		Width:                1200,
		Height:               630,
		GradientFrom:         "#0F1F3A",
		GradientTo:           "#AB71F7",
		MarkHeight:           360,
		MarkX:                110,
		TextX:                560,
		MaxTextWidth:         560,
		TextColor:            "#F5F8FF",
		Title:                "Kalyan AI",
		Subtitle:             "Bespoke hosted AI systems",
		TitleSize:            72,
		SubtitleSize:         52,
		FallbackSubtitleSize: 44,
		LineGap:              18,
		SubLineGap:           12,
		Strategy:             StrategyHeuristic,
		Placement:            PlaceCenter,
		TitleBaseline:        260,
	}
}

// OptionsFromConfig maps the og and fonts sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	og := cfg.OG
	return Options{
		Width:                og.Width,
		Height:               og.Height,
		GradientFrom:         og.GradientFrom,
		GradientTo:           og.GradientTo,
		MarkHeight:           og.MarkHeight,
		MarkX:                og.MarkX,
		TextX:                float64(og.TextX),
		MaxTextWidth:         float64(og.MaxTextWidth),
		TextColor:            og.TextColor,
		Title:                og.Title,
		Subtitle:             og.Subtitle,
		TitleSize:            og.TitleSize,
		SubtitleSize:         og.SubtitleSize,
		FallbackSubtitleSize: og.FallbackSize,
		LineGap:              og.LineGap,
		SubLineGap:           og.SubLineGap,
		Strategy:             Strategy(og.TextStrategy),
		Placement:            Placement(og.Placement),
		TitleBaseline:        og.TitleBaseline,
		FontRegular:          cfg.ResolvePath(cfg.Fonts.Regular),
		FontBold:             cfg.ResolvePath(cfg.Fonts.Bold),
	}
}

// Card is the text of one card. Empty fields fall back to Options.
type Card struct {
	Title    string
	Subtitle string
}

// Layout is the computed text placement of a card.
type Layout struct {
	Title             TextBlock
	Subtitle          TextBlock
	TitleBaseline     float64
	SubtitleBaselines []float64
}

// Composer renders cards with one set of options and fonts.
type Composer struct {
	opts    Options
	regular *opentype.Font
	bold    *opentype.Font
	text    color.Color
}

// NewComposer checks the font files exist and parses them.
func NewComposer(opts Options) (*Composer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Errorf("invalid card size %dx%d", opts.Width, opts.Height)
	}
	if opts.MarkHeight <= 0 || opts.MarkHeight > opts.Height {
		return nil, errors.Errorf("mark height %d must be within 1..%d", opts.MarkHeight, opts.Height)
	}
	switch opts.Strategy {
	case StrategyMetrics, StrategyHeuristic:
	default:
		return nil, errors.Errorf("unknown text strategy %q", opts.Strategy)
	}
	switch opts.Placement {
	case PlaceCenter, PlaceBaseline:
	default:
		return nil, errors.Errorf("unknown placement %q", opts.Placement)
	}

	text, err := hexColor(opts.TextColor)
	if err != nil {
		return nil, err
	}
	regular, err := loadFont(opts.FontRegular, gomedium.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := loadFont(opts.FontBold, gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &Composer{opts: opts, regular: regular, bold: bold, text: text}, nil
}

func loadFont(path string, fallback []byte) (*opentype.Font, error) {
	data := fallback
	if path != "" {
		if err := common.RequireFile(path); err != nil {
			return nil, errors.Wrap(err, "font")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read font")
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse font %s", path)
	}
	return f, nil
}

func face(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func (c *Composer) measure(f *opentype.Font, size float64) (Measure, error) {
	if c.opts.Strategy == StrategyHeuristic {
		return HeuristicMeasure(size), nil
	}
	ff, err := face(f, size)
	if err != nil {
		return nil, err
	}
	return func(s string) float64 {
		return float64(font.MeasureString(ff, s)) / 64
	}, nil
}

func (c *Composer) cardText(card Card) (string, string) {
	title, subtitle := card.Title, card.Subtitle
	if title == "" {
		title = c.opts.Title
	}
	if subtitle == "" {
		subtitle = c.opts.Subtitle
	}
	return title, subtitle
}

// Layout wraps and places the card text. It does not rasterise anything.
func (c *Composer) Layout(card Card) (*Layout, error) {
	title, subtitle := c.cardText(card)
	o := c.opts

	subSize := o.SubtitleSize
	m, err := c.measure(c.regular, subSize)
	if err != nil {
		return nil, err
	}
	if o.FallbackSubtitleSize > 0 && m(subtitle) > o.MaxTextWidth {
		subSize = o.FallbackSubtitleSize
		if m, err = c.measure(c.regular, subSize); err != nil {
			return nil, err
		}
	}

	l := &Layout{
		Title:    TextBlock{Lines: nonEmpty(title), FontSize: o.TitleSize},
		Subtitle: TextBlock{Lines: Wrap(subtitle, m, o.MaxTextWidth), FontSize: subSize, LineGap: o.SubLineGap},
	}

	total := l.Title.Height()
	if len(l.Subtitle.Lines) > 0 {
		total += o.LineGap + l.Subtitle.Height()
	}

	switch o.Placement {
	case PlaceBaseline:
		l.TitleBaseline = o.TitleBaseline
	default:
		l.TitleBaseline = math.Round((float64(o.Height)-total)/2) + o.TitleSize
	}

	y := l.TitleBaseline + o.LineGap
	for i := range l.Subtitle.Lines {
		if i > 0 {
			y += o.SubLineGap
		}
		y += subSize
		l.SubtitleBaselines = append(l.SubtitleBaselines, y)
	}
	return l, nil
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// Compose renders the card: gradient, then the mark, then the text.
func (c *Composer) Compose(mark image.Image, card Card) (*image.NRGBA, error) {
	o := c.opts
	layout, err := c.Layout(card)
	if err != nil {
		return nil, err
	}

	bg, err := common.RasterizeSVG([]byte(GradientSVG(o.Width, o.Height, o.GradientFrom, o.GradientTo)), o.Width, o.Height)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render background")
	}

	if mark != nil && !mark.Bounds().Empty() {
		mb := mark.Bounds()
		w := max(int(math.Round(float64(mb.Dx())*float64(o.MarkHeight)/float64(mb.Dy()))), 1)
		resized := imaging.Resize(mark, w, o.MarkHeight, imaging.Lanczos)
		top := common.CenterOffset(o.Height, o.MarkHeight)
		bg = imaging.Overlay(bg, resized, image.Pt(o.MarkX, top), 1.0)
	}

	canvas := image.NewRGBA(bg.Bounds())
	draw.Draw(canvas, canvas.Bounds(), bg, image.Point{}, draw.Src)
	dc := gg.NewContextForRGBA(canvas)
	dc.SetColor(c.text)

	if err := c.drawLines(dc, c.bold, layout.Title, []float64{layout.TitleBaseline}); err != nil {
		return nil, err
	}
	if err := c.drawLines(dc, c.regular, layout.Subtitle, layout.SubtitleBaselines); err != nil {
		return nil, err
	}

	return imaging.Clone(dc.Image()), nil
}

func (c *Composer) drawLines(dc *gg.Context, f *opentype.Font, block TextBlock, baselines []float64) error {
	if len(block.Lines) == 0 {
		return nil
	}
	ff, err := face(f, block.FontSize)
	if err != nil {
		return errors.Wrap(err, "font face")
	}
	dc.SetFontFace(ff)
	for i, line := range block.Lines {
		dc.DrawString(line, c.opts.TextX, baselines[i])
	}
	return nil
}

// FileName is the site-wide card name, e.g. og-v5.png.
func FileName(suffix string) string {
	return "og" + suffix + ".png"
}

// PageFileName is the card name for one page.
func PageFileName(slug, suffix string) string {
	return "og-" + slug + suffix + ".png"
}

// GradientSVG describes the two-stop diagonal background.
func GradientSVG(width, height int, from, to string) string {
	return fmt.Sprintf(`<svg width="%[1]d" height="%[2]d" viewBox="0 0 %[1]d %[2]d" xmlns="http://www.w3.org/2000/svg">
  <defs>
    <linearGradient id="bg" x1="0" y1="0" x2="1" y2="1">
      <stop offset="0%%" stop-color="%[3]s" />
      <stop offset="100%%" stop-color="%[4]s" />
    </linearGradient>
  </defs>
  <rect width="%[1]d" height="%[2]d" fill="url(#bg)" />
</svg>`, width, height, from, to)
}

func hexColor(s string) (color.Color, error) {
	c, err := config.ParseHex(s)
	if err != nil {
		return nil, errors.Wrap(err, "text colour")
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}, nil
}
