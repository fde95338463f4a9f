package receipts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gathergrid/gathergrid-backend/internal/notifications"
)

func TestOrderReceiptRendersLinesAndTotal(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)

	html, err := gen.OrderReceipt(notifications.OrderReceiptPayload{
		OrderRef:  "GG-TEST01",
		BuyerName: "Ada",
		Currency:  "USD",
		Total:     "182",
		Lines: []notifications.ReceiptLine{
			{Name: "alpha", Qty: 2, UnitPrice: "90", NetPrice: "81", LineTotal: "162"},
			{Name: "beta", Qty: 1, UnitPrice: "20", NetPrice: "20", LineTotal: "20"},
		},
	})
	require.NoError(t, err)

	doc := string(html)
	assert.Contains(t, doc, "GG-TEST01")
	assert.Contains(t, doc, "alpha")
	assert.Contains(t, doc, "beta")
	assert.Contains(t, doc, "Total: 182 USD")
}

func TestVendorInvoiceRendersPayable(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)

	html, err := gen.VendorInvoice(notifications.VendorInvoicePayload{
		OrderRef:   "GG-TEST01",
		VendorName: "Vendor Co",
		BuyerName:  "Ada",
		Currency:   "USD",
		Total:      "162",
		Lines: []notifications.ReceiptLine{
			{Name: "alpha", Qty: 2, UnitPrice: "90", NetPrice: "81", LineTotal: "162"},
		},
	})
	require.NoError(t, err)

	doc := string(html)
	assert.Contains(t, doc, "Vendor Co")
	assert.Contains(t, doc, "Payable: 162 USD")
}

func TestEventTicketEmbedsQR(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)

	html, err := gen.EventTicket(notifications.EventTicketPayload{
		EventName:   "Go Conf Online",
		BuyerName:   "Ada",
		TicketID:    "TKT-ABCDEF",
		TicketCount: 2,
		Currency:    "USD",
		Total:       "50",
		StartAt:     time.Date(2026, 9, 10, 18, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2026, 9, 10, 22, 0, 0, 0, time.UTC),
		QRPayload:   "eyJ0aWNrZXRfaWQiOiJUS1QtQUJDREVGIn0=",
	})
	require.NoError(t, err)

	doc := string(html)
	assert.Contains(t, doc, "TKT-ABCDEF")
	assert.Contains(t, doc, "2 admissions")
	assert.True(t, strings.Contains(doc, "data:image/png;base64,"), "ticket must embed the qr image")
}
