package layering

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"brandkit/src/config"
)

// FixedAttr marks an overlay that has already been patched.
const FixedAttr = "data-calendly-fixed"

// EscapeKey is the key that tears every overlay down.
const EscapeKey = "Escape"

// Options names the widget classes the patch looks for.
type Options struct {
	OverlayClass string
	PopupClasses []string
}

// DefaultOptions matches the embedded Calendly popup widget.
func DefaultOptions() Options {
	return Options{
		OverlayClass: "calendly-overlay",
		PopupClasses: []string{"calendly-popup", "calendly-popup-content"},
	}
}

// OptionsFromConfig reads the layering section.
func OptionsFromConfig(cfg config.LayeringConfig) Options {
	opts := DefaultOptions()
	if cfg.OverlayClass != "" {
		opts.OverlayClass = cfg.OverlayClass
	}
	if len(cfg.PopupClasses) > 0 {
		opts.PopupClasses = cfg.PopupClasses
	}
	return opts
}

// ElevatedClose is applied to the close control.
var ElevatedClose = []Declaration{
	{"position", "fixed"},
	{"top", "16px"},
	{"right", "16px"},
	{"z-index", "2147483647"},
	{"pointer-events", "auto"},
}

// LoweredFrame is applied to the embedded scheduling iframe.
var LoweredFrame = []Declaration{
	{"z-index", "0"},
	{"position", "relative"},
}

// Patcher moves the widget iframe behind its close control. Every overlay is
// patched at most once.
type Patcher struct {
	doc       *Document
	processed map[*html.Node]struct{}

	overlays *xpath.Expr
	popups   *xpath.Expr
	popup    *xpath.Expr
	iframe   *xpath.Expr
	closers  []*xpath.Expr
	controls *xpath.Expr
}

// NewPatcher compiles the selectors for opts.
func NewPatcher(doc *Document, opts Options) (*Patcher, error) {
	if opts.OverlayClass == "" {
		return nil, fmt.Errorf("overlay class is required")
	}
	for _, class := range append([]string{opts.OverlayClass}, opts.PopupClasses...) {
		if err := config.ValidClassName(class); err != nil {
			return nil, err
		}
	}

	p := &Patcher{doc: doc, processed: make(map[*html.Node]struct{})}
	exprs := []struct {
		dst  **xpath.Expr
		expr string
	}{
		{&p.overlays, "//*[" + hasClass(opts.OverlayClass) + "]"},
		{&p.popups, "//*[" + anyClass(opts.PopupClasses) + "]"},
		{&p.popup, ".//*[" + anyClass(opts.PopupClasses) + "]"},
		{&p.iframe, ".//iframe[contains(@src, 'calendly')]"},
		{&p.controls, ".//*[local-name()='button' or local-name()='a']"},
	}
	for _, e := range exprs {
		compiled, err := xpath.Compile(e.expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile selector %q: %w", e.expr, err)
		}
		*e.dst = compiled
	}
	for _, expr := range []string{
		".//*[" + hasClass("calendly-popup-close") + "]",
		".//*[@aria-label='Close']",
	} {
		compiled, err := xpath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile selector %q: %w", expr, err)
		}
		p.closers = append(p.closers, compiled)
	}
	return p, nil
}

func hasClass(class string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class)
}

func anyClass(classes []string) string {
	if len(classes) == 0 {
		return "false()"
	}
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = hasClass(c)
	}
	return strings.Join(parts, " or ")
}

// Start patches what is already present and re-runs Fix whenever nodes are
// added to or removed from the document.
func (p *Patcher) Start() int {
	n := p.Fix()
	p.doc.Subscribe(func(m Mutation) {
		if m.Type == ChildList {
			p.Fix()
		}
	})
	return n
}

// Fix patches every overlay not seen before and returns how many it patched.
func (p *Patcher) Fix() int {
	fixed := 0
	for _, overlay := range htmlquery.QuerySelectorAll(p.doc.Root(), p.overlays) {
		if p.Fixed(overlay) {
			continue
		}
		p.processed[overlay] = struct{}{}

		popup := htmlquery.QuerySelector(overlay, p.popup)
		if popup == nil {
			popup = overlay
		}
		if iframe := htmlquery.QuerySelector(popup, p.iframe); iframe != nil {
			p.doc.SetStyle(iframe, LoweredFrame...)
		}
		if closer := p.findClose(popup); closer != nil {
			p.doc.SetStyle(closer, ElevatedClose...)
		} else {
			log.Debug("No close control in overlay")
		}
		p.doc.SetAttr(overlay, FixedAttr, "true")
		fixed++
	}
	return fixed
}

func (p *Patcher) findClose(root *html.Node) *html.Node {
	for _, sel := range p.closers {
		if n := htmlquery.QuerySelector(root, sel); n != nil {
			return n
		}
	}
	for _, n := range htmlquery.QuerySelectorAll(root, p.controls) {
		if strings.TrimSpace(htmlquery.InnerText(n)) == "Close" {
			return n
		}
	}
	return nil
}

// Fixed reports whether n has been patched, in this run or an earlier one.
func (p *Patcher) Fixed(n *html.Node) bool {
	if _, ok := p.processed[n]; ok {
		return true
	}
	return htmlquery.SelectAttr(n, FixedAttr) != ""
}

// HandleKey removes every overlay and popup on Escape, patched or not, and
// returns the number of elements removed.
func (p *Patcher) HandleKey(key string) int {
	if key != EscapeKey {
		return 0
	}

	seen := make(map[*html.Node]struct{})
	var targets []*html.Node
	for _, expr := range []*xpath.Expr{p.overlays, p.popups} {
		for _, n := range htmlquery.QuerySelectorAll(p.doc.Root(), expr) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			targets = append(targets, n)
		}
	}

	for _, n := range targets {
		// nested popups leave the document with their overlay
		if p.doc.Attached(n) {
			p.doc.Remove(n)
		}
	}
	if len(targets) > 0 {
		log.WithField("removed", len(targets)).Debug("Escape closed overlays")
	}
	return len(targets)
}
