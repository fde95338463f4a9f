package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	stripeapi "github.com/stripe/stripe-go/v82"
)

type stubVerifier struct {
	event *stripeapi.Event
	err   error
}

func (s *stubVerifier) VerifyWebhook(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	return s.event, s.err
}

type stubGuard struct {
	claimed  map[string]bool
	releases int
}

func (s *stubGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if s.claimed[eventID] {
		return false, nil
	}
	s.claimed[eventID] = true
	return true, nil
}

func (s *stubGuard) Release(ctx context.Context, eventID string) error {
	s.releases++
	delete(s.claimed, eventID)
	return nil
}

type stubProcessor struct {
	calls int
	err   error
}

func (s *stubProcessor) Process(ctx context.Context, event *stripeapi.Event) error {
	s.calls++
	return s.err
}

func testEvent() *stripeapi.Event {
	return &stripeapi.Event{
		ID:   "evt_1",
		Type: stripeapi.EventType("payment_intent.succeeded"),
		Data: &stripeapi.EventData{Raw: []byte(`{"id":"pi_1"}`)},
	}
}

func post(handler http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	guard := &stubGuard{claimed: map[string]bool{}}
	processor := &stubProcessor{}
	handler := StripeWebhook(&stubVerifier{err: errors.New("bad signature")}, guard, processor, nil)

	rec := post(handler)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, processor.calls)
}

func TestStripeWebhookProcessesFirstDeliveryOnly(t *testing.T) {
	guard := &stubGuard{claimed: map[string]bool{}}
	processor := &stubProcessor{}
	handler := StripeWebhook(&stubVerifier{event: testEvent()}, guard, processor, nil)

	first := post(handler)
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, first.Body.String(), "processed")

	second := post(handler)
	require.Equal(t, http.StatusOK, second.Code)
	require.Contains(t, second.Body.String(), "duplicate")

	require.Equal(t, 1, processor.calls)
}

func TestStripeWebhookReleasesClaimOnProcessingFailure(t *testing.T) {
	guard := &stubGuard{claimed: map[string]bool{}}
	processor := &stubProcessor{err: errors.New("transition failed")}
	handler := StripeWebhook(&stubVerifier{event: testEvent()}, guard, processor, nil)

	rec := post(handler)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, guard.releases)
	require.False(t, guard.claimed["evt_1"])
}
