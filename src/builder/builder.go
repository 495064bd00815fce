package builder

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"brandkit/src/common"
	"brandkit/src/config"
	"brandkit/src/deployer"
	"brandkit/src/favicon"
	"brandkit/src/ogcard"
)

// Target selects which assets a run produces
type Target int

const (
	TargetIcons Target = 1 << iota
	TargetOG
	TargetPages

	TargetAll = TargetIcons | TargetOG | TargetPages
)

// Has reports whether t includes other
func (t Target) Has(other Target) bool {
	return t&other != 0
}

// Report summarises one run
type Report struct {
	Revision string
	Files    []string
	Pages    int
	Duration time.Duration
}

// Builder runs the asset pipeline for one configuration
type Builder struct {
	cfg      *config.Config
	deployer *deployer.Deployer
	// SiteBuild runs cfg.Site.BuildCommand after publishing
	SiteBuild bool
}

// NewBuilder creates a new asset builder
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, deployer: deployer.NewDeployer(cfg)}
}

// Deployer returns the deployer used to publish outputs
func (b *Builder) Deployer() *deployer.Deployer {
	return b.deployer
}

// Build checks every input, renders the requested assets into a staging
// directory and publishes them only when all of them succeeded
func (b *Builder) Build(ctx context.Context, targets Target) (*Report, error) {
	start := time.Now()
	cfg := b.cfg
	publicDir := cfg.PublicPath()

	// preconditions first: nothing is written when an input is missing
	markPath := cfg.MarkPath()
	if err := common.RequireFile(markPath); err != nil {
		return nil, err
	}

	var composer *ogcard.Composer
	wantCards := targets.Has(TargetOG) || (targets.Has(TargetPages) && cfg.Pages.Dir != "")
	if wantCards && cfg.OG.Enabled {
		c, err := ogcard.NewComposer(ogcard.OptionsFromConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to prepare og card: %w", err)
		}
		composer = c
	}

	var pages []*common.Page
	if composer != nil && targets.Has(TargetPages) && cfg.Pages.Dir != "" {
		p, err := common.ListPages(cfg.ResolvePath(cfg.Pages.Dir))
		if err != nil {
			return nil, fmt.Errorf("failed to list pages: %w", err)
		}
		pages = p
	}

	mark, err := common.LoadMark(markPath, common.MarkOptions{
		RasterSize: cfg.Mark.RasterSize,
		Trim: common.TrimOptions{
			Threshold: uint8(cfg.Mark.Threshold),
			Padding:   cfg.Mark.Padding,
		},
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"mark":     filepath.Base(markPath),
		"width":    mark.Bounds().Dx(),
		"height":   mark.Bounds().Dy(),
		"revision": cfg.Revision,
	}).Info("Loaded mark")

	if err := deployer.CleanStale(publicDir); err != nil {
		log.Warnf("Failed to clean stale staging directories: %v", err)
	}
	staging, err := deployer.NewStaging(publicDir)
	if err != nil {
		return nil, err
	}
	published := false
	defer func() {
		if !published {
			deployer.Discard(staging)
		}
	}()

	if targets.Has(TargetIcons) {
		opts, err := favicon.OptionsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		fb, err := favicon.NewBuilder(opts)
		if err != nil {
			return nil, err
		}
		if _, err := fb.Build(ctx, mark, staging); err != nil {
			return nil, fmt.Errorf("failed to build favicons: %w", err)
		}
	}

	if composer != nil && targets.Has(TargetOG) {
		if err := renderCard(composer, mark, ogcard.Card{}, filepath.Join(staging, ogcard.FileName(cfg.Suffix()))); err != nil {
			return nil, err
		}
	}

	rendered, err := b.renderPages(ctx, composer, mark, pages, staging)
	if err != nil {
		return nil, err
	}

	files, err := b.deployer.Deploy(ctx, staging, publicDir)
	published = files != nil
	if err != nil {
		return nil, err
	}

	if b.SiteBuild && cfg.Site.BuildCommand != "" {
		if err := RunSiteBuild(ctx, cfg.Site.Root, cfg.Site.BuildCommand); err != nil {
			return nil, err
		}
	}

	report := &Report{Revision: cfg.Revision, Files: files, Pages: rendered, Duration: time.Since(start)}
	log.WithFields(log.Fields{
		"files":    len(files),
		"pages":    rendered,
		"duration": report.Duration.Round(time.Millisecond),
	}).Info("✅ Brand assets built")
	return report, nil
}

func (b *Builder) renderPages(ctx context.Context, composer *ogcard.Composer, mark *image.NRGBA, pages []*common.Page, dir string) (int, error) {
	if composer == nil || len(pages) == 0 {
		return 0, nil
	}

	names := make(map[string]string, len(pages))
	var todo []*common.Page
	for _, p := range pages {
		if p.SkipCard() {
			continue
		}
		slug := p.GetSlug()
		if slug == "" {
			log.Warnf("Skipping page without slug: %s", p.FilePath)
			continue
		}
		if other, ok := names[slug]; ok {
			return 0, fmt.Errorf("pages %s and %s share slug %q", other, p.FilePath, slug)
		}
		names[slug] = p.FilePath
		todo = append(todo, p)
	}
	sort.Slice(todo, func(i, j int) bool { return todo[i].FilePath < todo[j].FilePath })

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, p := range todo {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			title, subtitle := p.CardText()
			path := filepath.Join(dir, ogcard.PageFileName(p.GetSlug(), b.cfg.Suffix()))
			return renderCard(composer, mark, ogcard.Card{Title: title, Subtitle: subtitle}, path)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(todo), nil
}

func renderCard(c *ogcard.Composer, mark *image.NRGBA, card ogcard.Card, path string) error {
	img, err := c.Compose(mark, card)
	if err != nil {
		return fmt.Errorf("failed to compose %s: %w", filepath.Base(path), err)
	}
	return favicon.WritePNG(path, img)
}
