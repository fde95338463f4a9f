package stripe

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr string
	}{
		{
			name:    "missing key",
			cfg:     config.StripeConfig{Secret: "whsec_x", Env: "test"},
			wantErr: "stripe api key is required",
		},
		{
			name:    "missing webhook secret",
			cfg:     config.StripeConfig{APIKey: "sk_test_123", Env: "test"},
			wantErr: "stripe webhook secret is required",
		},
		{
			name:    "bad environment",
			cfg:     config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_x", Env: "staging"},
			wantErr: "stripe environment",
		},
		{
			name:    "live env rejects test key",
			cfg:     config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_x", Env: "live"},
			wantErr: "requires a live secret key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tt.cfg, nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClientAcceptsTestKey(t *testing.T) {
	t.Parallel()

	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_x",
		Env:    "test",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "test", client.Environment())
	require.Equal(t, "whsec_x", client.SigningSecret())
}

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(9000), minorUnits(decimal.RequireFromString("90.00")))
	require.Equal(t, int64(4550), minorUnits(decimal.RequireFromString("45.5")))
	require.Equal(t, int64(10), minorUnits(decimal.RequireFromString("0.10")))
	// Half-up at the minor-unit boundary.
	require.Equal(t, int64(1001), minorUnits(decimal.RequireFromString("10.005")))
}
