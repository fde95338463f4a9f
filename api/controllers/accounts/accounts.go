package accounts

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gathergrid/gathergrid-backend/api/middleware"
	"github.com/gathergrid/gathergrid-backend/api/responses"
	accountsvc "github.com/gathergrid/gathergrid-backend/internal/accounts"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

// StartPayoutOnboarding mints a hosted KYC onboarding link for the caller,
// provisioning the connected payout account on first use.
func StartPayoutOnboarding(svc accountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.StartPayoutOnboarding(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PayoutStatus reports the caller's connected-account capability state.
func PayoutStatus(svc accountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.PayoutStatus(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity malformed")
	}
	return id, nil
}
