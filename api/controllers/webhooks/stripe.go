package webhooks

import (
	"context"
	"io"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/gathergrid/gathergrid-backend/api/responses"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

// Stripe caps payloads at 64KB; anything larger is not a legitimate event.
const maxWebhookBody = 1 << 16

// EventVerifier checks the provider signature and decodes the event.
type EventVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*stripeapi.Event, error)
}

// EventProcessor applies one verified event to the platform.
type EventProcessor interface {
	Process(ctx context.Context, event *stripeapi.Event) error
}

// EventGuard deduplicates provider deliveries by event id.
type EventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// StripeWebhook verifies, deduplicates, and processes provider events.
// Processing failures release the dedup claim so the provider retry can
// land.
func StripeWebhook(verifier EventVerifier, guard EventGuard, processor EventProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}
		if len(payload) > maxWebhookBody {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload too large"))
			return
		}

		event, err := verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook signature rejected"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
		}

		claimed, err := guard.Claim(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !claimed {
			if logg != nil {
				logg.Info(ctx, "duplicate webhook delivery skipped")
			}
			responses.WriteSuccess(w, map[string]string{"event_id": event.ID, "result": "duplicate"})
			return
		}

		if err := processor.Process(ctx, event); err != nil {
			if releaseErr := guard.Release(ctx, event.ID); releaseErr != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "release_error", releaseErr.Error()), "failed to release webhook claim")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"event_id": event.ID, "result": "processed"})
	}
}
