package printing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromeRenderer_DefaultTimeout(t *testing.T) {
	r := NewChromeRenderer(ChromeConfig{}, nil)
	defer r.Close()

	assert.Equal(t, 30*time.Second, r.timeout)
	assert.NotNil(t, r.allocCtx)
}

func TestChromeRenderer_EmptyPage(t *testing.T) {
	// nothing listens here; an empty page must fail before dialing
	r := NewChromeRenderer(ChromeConfig{RemoteURL: "ws://127.0.0.1:1"}, nil)
	defer r.Close()

	for _, html := range []string{"", "  \n\t"} {
		pdf, err := r.Render(context.Background(), Page{HTML: html})
		assert.ErrorIs(t, err, ErrEmptyPage)
		assert.Nil(t, pdf)
	}
}

func TestPrintParams(t *testing.T) {
	t.Run("portrait A4", func(t *testing.T) {
		params := printParams(Page{HTML: "<p>x</p>", Margins: DefaultMargins()})

		assert.InDelta(t, 8.27, params.PaperWidth, 0.01)
		assert.InDelta(t, 11.69, params.PaperHeight, 0.01)
		assert.InDelta(t, 0.59, params.MarginTop, 0.01)
		assert.InDelta(t, 0.59, params.MarginBottom, 0.01)
		assert.False(t, params.Landscape)
		assert.False(t, params.DisplayHeaderFooter)
		assert.True(t, params.PrintBackground)
	})

	t.Run("footer needs room", func(t *testing.T) {
		params := printParams(Page{
			HTML:    "<p>x</p>",
			Margins: Margins{Top: 5, Bottom: 2},
			Footer:  `<span class="pageNumber"></span>`,
		})

		assert.True(t, params.DisplayHeaderFooter)
		assert.InDelta(t, mm(10), params.MarginBottom, 0.0001)
		assert.InDelta(t, mm(5), params.MarginTop, 0.0001)
		require.Contains(t, params.FooterTemplate, "pageNumber")
	})

	t.Run("a wide bottom margin is kept", func(t *testing.T) {
		params := printParams(Page{Margins: Margins{Bottom: 25}, Footer: "x"})
		assert.InDelta(t, mm(25), params.MarginBottom, 0.0001)
	})
}

func TestDocument(t *testing.T) {
	t.Run("wraps fragments", func(t *testing.T) {
		out := document(Page{HTML: "<p>hi</p>", Title: "Bill <1>"})
		assert.Contains(t, out, "<!DOCTYPE html>")
		assert.Contains(t, out, "<title>Bill &lt;1&gt;</title>")
		assert.Contains(t, out, "<body><p>hi</p></body>")
	})

	t.Run("untitled fragment", func(t *testing.T) {
		assert.NotContains(t, document(Page{HTML: "<p>hi</p>"}), "<title>")
	})

	t.Run("passes documents through", func(t *testing.T) {
		doc := "<!DOCTYPE html><html><body>x</body></html>"
		assert.Equal(t, doc, document(Page{HTML: doc, Title: "ignored"}))
	})
}
