package notifications

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
)

// ReceiptLine is one priced line as rendered in receipts and invoices.
// Amounts travel as strings so the jsonb payload round-trips exactly.
type ReceiptLine struct {
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
	NetPrice  string `json:"net_price"`
	LineTotal string `json:"line_total"`
}

// OrderReceiptPayload feeds the buyer receipt document.
type OrderReceiptPayload struct {
	OrderRef  string        `json:"order_ref"`
	BuyerName string        `json:"buyer_name"`
	Currency  string        `json:"currency"`
	Total     string        `json:"total"`
	Lines     []ReceiptLine `json:"lines"`
}

// VendorInvoicePayload feeds the per-vendor invoice document.
type VendorInvoicePayload struct {
	OrderRef   string        `json:"order_ref"`
	VendorName string        `json:"vendor_name"`
	BuyerName  string        `json:"buyer_name"`
	Currency   string        `json:"currency"`
	Total      string        `json:"total"`
	Lines      []ReceiptLine `json:"lines"`
}

// EventTicketPayload feeds the ticket document. QRPayload is the base64 JSON
// proof embedded in the QR code.
type EventTicketPayload struct {
	EventName   string    `json:"event_name"`
	BuyerName   string    `json:"buyer_name"`
	TicketID    string    `json:"ticket_id"`
	TicketCount int       `json:"ticket_count"`
	Currency    string    `json:"currency"`
	Total       string    `json:"total"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	QRPayload   string    `json:"qr_payload"`
}

// BuildOrderReceipt flattens every vendor order of a checkout into one buyer
// receipt.
func BuildOrderReceipt(buyerName string, refOrders []models.VendorOrder) OrderReceiptPayload {
	payload := OrderReceiptPayload{
		BuyerName: buyerName,
	}
	if len(refOrders) == 0 {
		return payload
	}

	payload.OrderRef = refOrders[0].OrderRef
	payload.Currency = refOrders[0].Currency.String()

	total := decimal.Zero
	for _, order := range refOrders {
		total = total.Add(order.TotalAmount)
		for _, item := range order.Items {
			payload.Lines = append(payload.Lines, receiptLine(item))
		}
	}
	payload.Total = total.Round(2).String()
	return payload
}

// BuildVendorInvoice projects one vendor order into its invoice payload.
func BuildVendorInvoice(vendorName, buyerName string, order models.VendorOrder) VendorInvoicePayload {
	payload := VendorInvoicePayload{
		OrderRef:   order.OrderRef,
		VendorName: vendorName,
		BuyerName:  buyerName,
		Currency:   order.Currency.String(),
		Total:      order.TotalAmount.Round(2).String(),
	}
	for _, item := range order.Items {
		payload.Lines = append(payload.Lines, receiptLine(item))
	}
	return payload
}

// BuildEventTicket projects a completed booking into its ticket payload.
func BuildEventTicket(buyerName, qrPayload string, booking models.TicketBooking, event models.VirtualEvent) EventTicketPayload {
	return EventTicketPayload{
		EventName:   event.Name,
		BuyerName:   buyerName,
		TicketID:    booking.TicketID,
		TicketCount: booking.TicketCount,
		Currency:    booking.Currency.String(),
		Total:       booking.TotalPrice.Round(2).String(),
		StartAt:     event.StartAt,
		EndAt:       event.EndAt,
		QRPayload:   qrPayload,
	}
}

func receiptLine(item models.OrderLineItem) ReceiptLine {
	return ReceiptLine{
		Name:      item.Name,
		Qty:       item.Qty,
		UnitPrice: item.UnitPrice.Round(2).String(),
		NetPrice:  item.NetPrice.Round(2).String(),
		LineTotal: item.LineTotal.Round(2).String(),
	}
}
