package printing

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	billingapp "github.com/coliving/backend/internal/application/billing"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

const invoiceTemplatePath = "templates/invoice.html"

// InvoiceOptions configures how invoices are laid out
type InvoiceOptions struct {
	Currency string
	Margins  *Margins
}

// InvoicePrinter turns bills into PDF invoices
type InvoicePrinter struct {
	renderer PDFRenderer
	tmpl     *template.Template
	currency string
	margins  Margins
	logger   *zap.Logger
}

type invoiceData struct {
	Bill     *billingapp.BillResponse
	Currency string
}

// NewInvoicePrinter parses the embedded invoice template. It panics if the
// template does not parse, which only a broken build can cause.
func NewInvoicePrinter(renderer PDFRenderer, opts InvoiceOptions, logger *zap.Logger) *InvoicePrinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = valueobject.CurrencyCode
	}
	margins := DefaultMargins()
	if opts.Margins != nil {
		margins = *opts.Margins
	}

	tmpl := template.Must(template.New("invoice.html").
		Funcs(templateFuncs()).
		ParseFS(templateFS, invoiceTemplatePath))

	return &InvoicePrinter{
		renderer: renderer,
		tmpl:     tmpl,
		currency: currency,
		margins:  margins,
		logger:   logger,
	}
}

// RenderHTML writes the invoice page for a bill
func (p *InvoicePrinter) RenderHTML(bill *billingapp.BillResponse, w io.Writer) error {
	if bill == nil {
		return fmt.Errorf("%w: no bill", ErrEmptyPage)
	}
	if err := p.tmpl.Execute(w, invoiceData{Bill: bill, Currency: p.currency}); err != nil {
		return fmt.Errorf("invoice template: %w", err)
	}
	return nil
}

// Print renders the bill's invoice to PDF and writes it to w
func (p *InvoicePrinter) Print(ctx context.Context, bill *billingapp.BillResponse, w io.Writer) error {
	var html bytes.Buffer
	if err := p.RenderHTML(bill, &html); err != nil {
		return err
	}

	pdf, err := p.renderer.Render(ctx, Page{
		HTML:    html.String(),
		Title:   "Invoice " + shortID(bill.ID),
		Margins: p.margins,
		Footer:  invoiceFooter,
	})
	if err != nil {
		p.logger.Warn("Invoice rendering failed",
			zap.String("bill_id", bill.ID.String()),
			zap.Error(err),
		)
		return err
	}

	p.logger.Debug("Invoice rendered",
		zap.String("bill_id", bill.ID.String()),
		zap.Int("bytes", len(pdf)),
	)
	_, err = w.Write(pdf)
	return err
}

const invoiceFooter = `<div style="font-size:8px;width:100%;text-align:center;">` +
	`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`

func templateFuncs() template.FuncMap {
	title := cases.Title(language.English)
	return template.FuncMap{
		"formatMoney": formatMoney,
		"formatDate":  formatDate,
		"shortID":     shortID,
		"title": func(s string) string {
			return title.String(strings.ReplaceAll(s, "_", " "))
		},
	}
}

// formatMoney renders 1234.5 as "$1,234.50"
func formatMoney(m valueobject.Money) string {
	sign := ""
	if m.IsNegative() {
		sign = "-"
		m = m.Abs()
	}

	parts := strings.SplitN(m.StringFixed(valueobject.CentPlaces), ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteRune(',')
		}
		grouped.WriteRune(c)
	}
	return sign + "$" + grouped.String() + "." + decPart
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}
