package accounts

import (
	"context"

	"github.com/google/uuid"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/stripe"
)

// Repository is the persistence surface for payout account refs.
type Repository interface {
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	SaveConnectedAccountRef(ctx context.Context, userID uuid.UUID, accountRef string) error
	SetPayoutsEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
}

// OnboardingGateway is the slice of the payment adapter that payout
// onboarding needs.
type OnboardingGateway interface {
	CreateConnectedAccount(ctx context.Context, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountRef, refreshURL, returnURL string) (string, error)
	RetrieveAccountCapabilities(ctx context.Context, accountRef string) (*stripe.AccountCapabilities, error)
}
