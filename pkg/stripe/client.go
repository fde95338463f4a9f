package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// PaymentHandle is returned to the caller so the client application can finish
// authorization out-of-band. Settlement is only certain once a status update
// arrives.
type PaymentHandle struct {
	IntentID     string
	ClientSecret string
}

// AccountCapabilities reports the state of a connected account.
type AccountCapabilities struct {
	ChargesEnabled bool
	PayoutsEnabled bool
	DetailsDue     bool
}

// Client wraps Stripe's API client plus env-specific metadata. Monetary
// amounts cross into minor units only here.
type Client struct {
	api           *client.API
	environment   string
	signingSecret string
	timeout       time.Duration
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:           client.New(apiKey, nil),
		environment:   env,
		signingSecret: signingSecret,
		timeout:       timeout,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CreateCustomerProfile registers a buyer with the payment provider and
// returns the customer reference to store on the user record.
func (c *Client) CreateCustomerProfile(ctx context.Context, name, email string) (string, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.CustomerParams{
		Name:  stripeapi.String(name),
		Email: stripeapi.String(email),
	}
	params.Context = ctx

	customer, err := c.api.Customers.New(params)
	if err != nil {
		return "", wrapProviderErr(err, "create customer profile")
	}
	return customer.ID, nil
}

// CreateConnectedAccount provisions an express sub-account for a vendor or
// event organizer so split payments can route funds to them.
func (c *Client) CreateConnectedAccount(ctx context.Context, email string) (string, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.AccountParams{
		Type:  stripeapi.String(string(stripeapi.AccountTypeExpress)),
		Email: stripeapi.String(email),
		Capabilities: &stripeapi.AccountCapabilitiesParams{
			CardPayments: &stripeapi.AccountCapabilitiesCardPaymentsParams{
				Requested: stripeapi.Bool(true),
			},
			Transfers: &stripeapi.AccountCapabilitiesTransfersParams{
				Requested: stripeapi.Bool(true),
			},
		},
	}
	params.Context = ctx

	account, err := c.api.Accounts.New(params)
	if err != nil {
		return "", wrapProviderErr(err, "create connected account")
	}
	return account.ID, nil
}

// CreateOnboardingLink returns a hosted KYC onboarding URL for the connected
// account.
func (c *Client) CreateOnboardingLink(ctx context.Context, accountRef, refreshURL, returnURL string) (string, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.AccountLinkParams{
		Account:    stripeapi.String(accountRef),
		RefreshURL: stripeapi.String(refreshURL),
		ReturnURL:  stripeapi.String(returnURL),
		Type:       stripeapi.String(string(stripeapi.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := c.api.AccountLinks.New(params)
	if err != nil {
		return "", wrapProviderErr(err, "create onboarding link")
	}
	return link.URL, nil
}

// RetrieveAccountCapabilities reports whether the connected account can accept
// charges and receive payouts.
func (c *Client) RetrieveAccountCapabilities(ctx context.Context, accountRef string) (*AccountCapabilities, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.AccountParams{}
	params.Context = ctx

	account, err := c.api.Accounts.GetByID(accountRef, params)
	if err != nil {
		return nil, wrapProviderErr(err, "retrieve account capabilities")
	}
	caps := &AccountCapabilities{
		ChargesEnabled: account.ChargesEnabled,
		PayoutsEnabled: account.PayoutsEnabled,
	}
	if account.Requirements != nil {
		caps.DetailsDue = len(account.Requirements.CurrentlyDue) > 0
	}
	return caps, nil
}

// CreatePaymentIntent opens a combined payment for the buyer, tagged with the
// checkout's transfer group for later per-vendor settlement.
func (c *Client) CreatePaymentIntent(ctx context.Context, customerRef string, amount decimal.Decimal, currency, transferGroup string) (*PaymentHandle, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(minorUnits(amount)),
		Currency: stripeapi.String(strings.ToLower(currency)),
		Customer: stripeapi.String(customerRef),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	if transferGroup != "" {
		params.TransferGroup = stripeapi.String(transferGroup)
	}
	params.Context = ctx

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapProviderErr(err, "create payment intent")
	}
	return &PaymentHandle{IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// CreateSplitPaymentSheet opens a destination charge: the full amount is
// collected from the buyer, the application fee stays with the platform, and
// the remainder transfers to the destination account.
func (c *Client) CreateSplitPaymentSheet(ctx context.Context, customerRef string, amount decimal.Decimal, currency, destinationRef string, applicationFee decimal.Decimal) (*PaymentHandle, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.PaymentIntentParams{
		Amount:               stripeapi.Int64(minorUnits(amount)),
		Currency:             stripeapi.String(strings.ToLower(currency)),
		Customer:             stripeapi.String(customerRef),
		ApplicationFeeAmount: stripeapi.Int64(minorUnits(applicationFee)),
		TransferData: &stripeapi.PaymentIntentTransferDataParams{
			Destination: stripeapi.String(destinationRef),
		},
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	params.Context = ctx

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapProviderErr(err, "create split payment sheet")
	}
	return &PaymentHandle{IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmPaymentIntent confirms the intent server-side and returns the
// provider status string.
func (c *Client) ConfirmPaymentIntent(ctx context.Context, intentID string) (string, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.PaymentIntentConfirmParams{}
	params.Context = ctx

	intent, err := c.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return "", wrapProviderErr(err, "confirm payment intent")
	}
	return string(intent.Status), nil
}

// CancelPaymentIntent voids an open intent. An intent that already settled
// cannot be cancelled; callers decide whether that is tolerable.
func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	params := &stripeapi.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := c.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return wrapProviderErr(err, "cancel payment intent")
	}
	return nil
}

// IsIntentConsumed reports whether the error indicates the intent already
// reached a state where cancellation is impossible.
func IsIntentConsumed(err error) bool {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripeapi.ErrorCodePaymentIntentUnexpectedState
	}
	return false
}

// VerifyWebhook checks the signature header and parses the event payload.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, c.signingSecret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid webhook signature")
	}
	return &event, nil
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

// minorUnits converts a major-unit amount to the provider's integer cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func wrapProviderErr(err error, op string) error {
	wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider error")
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		return wrapped.WithDetails(map[string]any{
			"op":   op,
			"code": string(stripeErr.Code),
		})
	}
	return wrapped.WithDetails(map[string]any{"op": op})
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
