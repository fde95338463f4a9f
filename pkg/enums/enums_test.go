package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaymentStatusTerminality(t *testing.T) {
	require.False(t, PaymentStatusPending.IsTerminal())
	require.True(t, PaymentStatusCompleted.IsTerminal())
	require.True(t, PaymentStatusFailed.IsTerminal())
}

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := ParsePaymentStatus("refunded")
	require.Error(t, err)

	_, err = ParseBookingStatus("expired")
	require.Error(t, err)

	_, err = ParseOrderStatus("lost")
	require.Error(t, err)

	_, err = ParseNotificationKind("sms")
	require.Error(t, err)

	_, err = ParseApprovalStatus("flagged")
	require.Error(t, err)

	_, err = ParseCurrency("doubloons")
	require.Error(t, err)
}

func TestParseRoundTripsKnownValues(t *testing.T) {
	status, err := ParseBookingStatus("booked")
	require.NoError(t, err)
	require.Equal(t, BookingStatusBooked, status)
	require.True(t, status.IsValid())

	kind, err := ParseNotificationKind("event_ticket")
	require.NoError(t, err)
	require.Equal(t, NotificationKindEventTicket, kind)

	approval, err := ParseApprovalStatus("approved")
	require.NoError(t, err)
	require.Equal(t, ApprovalStatusApproved, approval)
}
