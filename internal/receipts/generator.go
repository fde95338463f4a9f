package receipts

import (
	"bytes"
	"encoding/base64"
	"html/template"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/gathergrid/gathergrid-backend/internal/notifications"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// Generator renders settlement documents to HTML, ready for PDF conversion.
type Generator struct {
	receipt *template.Template
	invoice *template.Template
	ticket  *template.Template
}

// NewGenerator parses the embedded document templates.
func NewGenerator() (*Generator, error) {
	receipt, err := template.New("order_receipt").Parse(orderReceiptTemplate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse receipt template")
	}
	invoice, err := template.New("vendor_invoice").Parse(vendorInvoiceTemplate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse invoice template")
	}
	ticket, err := template.New("event_ticket").Parse(eventTicketTemplate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse ticket template")
	}
	return &Generator{receipt: receipt, invoice: invoice, ticket: ticket}, nil
}

// OrderReceipt renders the buyer's receipt for one checkout.
func (g *Generator) OrderReceipt(payload notifications.OrderReceiptPayload) ([]byte, error) {
	return g.render(g.receipt, payload)
}

// VendorInvoice renders one vendor's invoice slice of a checkout.
func (g *Generator) VendorInvoice(payload notifications.VendorInvoicePayload) ([]byte, error) {
	return g.render(g.invoice, payload)
}

// EventTicket renders the ticket document with the booking QR embedded as an
// inline PNG.
func (g *Generator) EventTicket(payload notifications.EventTicketPayload) ([]byte, error) {
	png, err := qrcode.Encode(payload.QRPayload, qrcode.Medium, 256)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode ticket qr")
	}

	data := struct {
		notifications.EventTicketPayload
		QRImage string
	}{
		EventTicketPayload: payload,
		QRImage:            base64.StdEncoding.EncodeToString(png),
	}
	return g.render(g.ticket, data)
}

func (g *Generator) render(tmpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render document")
	}
	return buf.Bytes(), nil
}
