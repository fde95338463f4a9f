package enums

import "fmt"

// NotificationKind identifies the template a queued notification renders.
type NotificationKind string

const (
	NotificationKindOrderReceipt  NotificationKind = "order_receipt"
	NotificationKindVendorInvoice NotificationKind = "vendor_invoice"
	NotificationKindEventTicket   NotificationKind = "event_ticket"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindOrderReceipt,
	NotificationKindVendorInvoice,
	NotificationKindEventTicket,
}

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationKind.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}

// NotificationJobStatus tracks a queued notification's delivery state.
type NotificationJobStatus string

const (
	NotificationJobStatusPending NotificationJobStatus = "pending"
	NotificationJobStatusSent    NotificationJobStatus = "sent"
	NotificationJobStatusDead    NotificationJobStatus = "dead"
)

// String implements fmt.Stringer.
func (n NotificationJobStatus) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationJobStatus.
func (n NotificationJobStatus) IsValid() bool {
	switch n {
	case NotificationJobStatusPending, NotificationJobStatusSent, NotificationJobStatusDead:
		return true
	}
	return false
}
