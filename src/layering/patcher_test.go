package layering

import (
	"fmt"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const widget = `<div class="calendly-overlay">
  <div class="calendly-close-overlay"></div>
  <div class="calendly-popup">
    <div class="calendly-popup-content">
      <iframe src="https://calendly.com/kalyan/intro" style="border: 0"></iframe>
    </div>
    <div class="calendly-popup-close" aria-label="Close"></div>
  </div>
</div>`

func newPatcher(t *testing.T, body string) (*Document, *Patcher) {
	t.Helper()
	doc, err := ParseString("<html><head></head><body>" + body + "</body></html>")
	require.NoError(t, err)
	p, err := NewPatcher(doc, DefaultOptions())
	require.NoError(t, err)
	return doc, p
}

func one(t *testing.T, doc *Document, expr string) *html.Node {
	t.Helper()
	n := htmlquery.FindOne(doc.Root(), expr)
	require.NotNil(t, n, expr)
	return n
}

func TestFixElevatesCloseAndLowersFrame(t *testing.T) {
	doc, p := newPatcher(t, widget)

	assert.Equal(t, 1, p.Fix())

	iframe := one(t, doc, "//iframe")
	assert.Equal(t, "0", StyleValue(iframe, "z-index"))
	assert.Equal(t, "relative", StyleValue(iframe, "position"))
	assert.Equal(t, "0", StyleValue(iframe, "border"))

	closer := one(t, doc, "//div[@aria-label='Close']")
	assert.Equal(t, "fixed", StyleValue(closer, "position"))
	assert.Equal(t, "16px", StyleValue(closer, "top"))
	assert.Equal(t, "16px", StyleValue(closer, "right"))
	assert.Equal(t, "2147483647", StyleValue(closer, "z-index"))
	assert.Equal(t, "auto", StyleValue(closer, "pointer-events"))

	overlay := one(t, doc, "//div[@class='calendly-overlay']")
	assert.True(t, p.Fixed(overlay))
	assert.Equal(t, "true", htmlquery.SelectAttr(overlay, FixedAttr))
}

func TestFixIsIdempotent(t *testing.T) {
	doc, p := newPatcher(t, widget)
	require.Equal(t, 1, p.Fix())

	before := doc.String()
	var mutations []Mutation
	doc.Subscribe(func(m Mutation) { mutations = append(mutations, m) })

	assert.Equal(t, 0, p.Fix())
	assert.Equal(t, 0, p.Fix())
	assert.Empty(t, mutations)
	assert.Equal(t, before, doc.String())
	assert.Equal(t, 1, strings.Count(before, FixedAttr))
	assert.Equal(t, 1, strings.Count(before, "2147483647"))
}

func TestFixSkipsPrePatchedOverlay(t *testing.T) {
	_, p := newPatcher(t, `<div class="calendly-overlay" data-calendly-fixed="true"><button>Close</button></div>`)
	assert.Equal(t, 0, p.Fix())
}

func TestStartPatchesInsertedOverlay(t *testing.T) {
	doc, p := newPatcher(t, `<main>Book a call</main>`)
	assert.Equal(t, 0, p.Start())

	nodes, err := doc.AppendHTML(doc.Body(), widget)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	overlay := one(t, doc, "//div[@class='calendly-overlay']")
	assert.True(t, p.Fixed(overlay))
	assert.Equal(t, "fixed", StyleValue(one(t, doc, "//div[@aria-label='Close']"), "position"))

	// a second widget inserted later is patched too
	_, err = doc.AppendHTML(doc.Body(), `<div class="calendly-overlay"><a href="#"> Close </a></div>`)
	require.NoError(t, err)
	assert.Equal(t, "fixed", StyleValue(one(t, doc, "//a"), "position"))
}

func TestCloseControlFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"class", `<div class="calendly-overlay"><button aria-label="Close">x</button><span class="calendly-popup-close">x</span></div>`, "//span"},
		{"aria label", `<div class="calendly-overlay"><button>Close</button><i aria-label="Close"></i></div>`, "//i"},
		{"text", `<div class="calendly-overlay"><button>Book</button><button> Close
</button></div>`, "//button[2]"},
		{"link text", `<div class="calendly-overlay"><a href="#">Close</a></div>`, "//a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, p := newPatcher(t, tt.body)
			require.Equal(t, 1, p.Fix())
			assert.Equal(t, "2147483647", StyleValue(one(t, doc, tt.want), "z-index"))
		})
	}
}

func TestMissingCloseControlIsTolerated(t *testing.T) {
	doc, p := newPatcher(t, `<div class="calendly-overlay"><div class="calendly-popup"><button>Book</button></div></div>`)

	assert.Equal(t, 1, p.Fix())
	assert.Empty(t, StyleValue(one(t, doc, "//button"), "position"))
	assert.True(t, p.Fixed(one(t, doc, "//div[@class='calendly-overlay']")))
}

func TestPopupScopesSearch(t *testing.T) {
	// the close control outside the popup is not touched
	doc, p := newPatcher(t, `<div class="calendly-overlay">
  <button id="outside">Close</button>
  <div class="calendly-popup"><iframe src="https://calendly.com/x"></iframe></div>
</div>`)

	require.Equal(t, 1, p.Fix())
	assert.Empty(t, StyleValue(one(t, doc, "//button[@id='outside']"), "position"))
	assert.Equal(t, "0", StyleValue(one(t, doc, "//iframe"), "z-index"))
}

func TestEscapeRemovesOverlaysAndPopups(t *testing.T) {
	for _, tc := range []struct{ overlays, popups int }{{1, 0}, {2, 3}, {0, 2}} {
		t.Run(fmt.Sprintf("%d+%d", tc.overlays, tc.popups), func(t *testing.T) {
			var b strings.Builder
			for i := 0; i < tc.overlays; i++ {
				b.WriteString(`<div class="calendly-overlay"><span>overlay</span></div>`)
			}
			for i := 0; i < tc.popups; i++ {
				b.WriteString(`<div class="calendly-popup-content">popup</div>`)
			}
			doc, p := newPatcher(t, b.String())

			// only some of them are patched before Escape
			p.Fix()

			assert.Equal(t, 0, p.HandleKey("Enter"))
			assert.Equal(t, tc.overlays+tc.popups, p.HandleKey(EscapeKey))
			assert.Empty(t, htmlquery.Find(doc.Root(), "//div"))
			assert.Equal(t, 0, p.HandleKey(EscapeKey))
		})
	}
}

func TestEscapeCountsNestedPopups(t *testing.T) {
	doc, p := newPatcher(t, widget)

	// overlay + calendly-popup + calendly-popup-content
	assert.Equal(t, 3, p.HandleKey(EscapeKey))
	assert.Nil(t, htmlquery.FindOne(doc.Root(), "//iframe"))
}

func TestNewPatcherRequiresOverlayClass(t *testing.T) {
	doc, err := ParseString("<p></p>")
	require.NoError(t, err)
	_, err = NewPatcher(doc, Options{})
	assert.Error(t, err)
}

func TestNewPatcherRejectsUnquotableClass(t *testing.T) {
	doc, err := ParseString("<p></p>")
	require.NoError(t, err)

	for _, opts := range []Options{
		{OverlayClass: "calendly'overlay"},
		{OverlayClass: "calendly-overlay", PopupClasses: []string{"x') or ('1"}},
	} {
		_, err = NewPatcher(doc, opts)
		assert.Error(t, err, opts)
	}
}
