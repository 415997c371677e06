package printing

import (
	"context"
	"errors"
)

var (
	// ErrEmptyPage is returned for a page with no markup
	ErrEmptyPage = errors.New("printing: page has no content")
	// ErrRenderTimeout is returned when Chrome does not finish in time
	ErrRenderTimeout = errors.New("printing: render timed out")
	// ErrRenderFailed wraps Chrome and protocol failures
	ErrRenderFailed = errors.New("printing: render failed")
)

// Margins are page margins in millimeters
type Margins struct {
	Top, Right, Bottom, Left int
}

// DefaultMargins are 15mm on every side
func DefaultMargins() Margins {
	return Margins{Top: 15, Right: 15, Bottom: 15, Left: 15}
}

// Page is one HTML document printed on portrait A4
type Page struct {
	HTML    string
	Title   string
	Margins Margins
	// Footer is repeated on every sheet; Chrome fills .pageNumber and .totalPages
	Footer string
}

// PDFRenderer prints pages
type PDFRenderer interface {
	Render(ctx context.Context, page Page) ([]byte, error)
	Close() error
}
