package accounts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

// Service manages payout account onboarding for event organizers and vendors.
type Service interface {
	StartPayoutOnboarding(ctx context.Context, userID uuid.UUID) (*PayoutOnboarding, error)
	PayoutStatus(ctx context.Context, userID uuid.UUID) (*PayoutStatus, error)
}

// PayoutOnboarding carries the hosted KYC link for the connected account.
type PayoutOnboarding struct {
	AccountRef    string `json:"account_ref"`
	OnboardingURL string `json:"onboarding_url"`
}

// PayoutStatus reports whether the connected account can receive funds.
type PayoutStatus struct {
	AccountRef     string `json:"account_ref,omitempty"`
	Onboarded      bool   `json:"onboarded"`
	ChargesEnabled bool   `json:"charges_enabled"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	DetailsDue     bool   `json:"details_due"`
}

type service struct {
	repo      Repository
	gateway   OnboardingGateway
	stripeCfg config.StripeConfig
	logg      *logger.Logger
}

// NewService builds the payout onboarding service.
func NewService(repo Repository, gateway OnboardingGateway, stripeCfg config.StripeConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("onboarding gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, gateway: gateway, stripeCfg: stripeCfg, logg: logg}, nil
}

// StartPayoutOnboarding provisions a connected account for the user if one
// does not exist yet and returns a fresh hosted onboarding link. Links expire
// upstream, so calling again for an already-provisioned account just mints a
// new link.
func (s *service) StartPayoutOnboarding(ctx context.Context, userID uuid.UUID) (*PayoutOnboarding, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	accountRef := ""
	if user.ConnectedAccountRef != nil {
		accountRef = *user.ConnectedAccountRef
	}
	if accountRef == "" {
		accountRef, err = s.gateway.CreateConnectedAccount(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SaveConnectedAccountRef(ctx, userID, accountRef); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save connected account ref")
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id":     userID.String(),
			"account_ref": accountRef,
		}), "connected account provisioned")
	}

	link, err := s.gateway.CreateOnboardingLink(ctx, accountRef, s.stripeCfg.OnboardingRefreshURL, s.stripeCfg.OnboardingReturnURL)
	if err != nil {
		return nil, err
	}
	return &PayoutOnboarding{AccountRef: accountRef, OnboardingURL: link}, nil
}

// PayoutStatus reads the live capability state from the provider and keeps
// the local payouts_enabled flag in sync so booking checks stay cheap.
func (s *service) PayoutStatus(ctx context.Context, userID uuid.UUID) (*PayoutStatus, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if user.ConnectedAccountRef == nil || *user.ConnectedAccountRef == "" {
		return &PayoutStatus{Onboarded: false}, nil
	}

	caps, err := s.gateway.RetrieveAccountCapabilities(ctx, *user.ConnectedAccountRef)
	if err != nil {
		return nil, err
	}

	if caps.PayoutsEnabled != user.PayoutsEnabled {
		if err := s.repo.SetPayoutsEnabled(ctx, userID, caps.PayoutsEnabled); err != nil {
			s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "failed to sync payouts flag", err)
		}
	}

	return &PayoutStatus{
		AccountRef:     *user.ConnectedAccountRef,
		Onboarded:      true,
		ChargesEnabled: caps.ChargesEnabled,
		PayoutsEnabled: caps.PayoutsEnabled,
		DetailsDue:     caps.DetailsDue,
	}, nil
}
