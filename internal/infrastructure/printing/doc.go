// Package printing renders bills as PDF invoices.
//
// An InvoicePrinter fills the invoice HTML template from a bill and hands the
// page to a PDFRenderer. ChromeRenderer drives a local or remote headless
// Chrome through the DevTools protocol:
//
//	renderer := NewChromeRenderer(ChromeConfig{RemoteURL: "ws://chrome:9222"}, logger)
//	defer renderer.Close()
//
//	printer := NewInvoicePrinter(renderer, InvoiceOptions{Currency: "usd"}, logger)
//	err := printer.Print(ctx, bill, w)
package printing
