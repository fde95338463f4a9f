package validators

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

func tokenConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "token-test-secret", Issuer: "gathergrid-test"}
}

func mintToken(t *testing.T, cfg config.JWTConfig, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	return token
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Equal(t, "abc", BearerToken("bearer abc"))
	require.Equal(t, "", BearerToken("abc"))
	require.Equal(t, "", BearerToken(""))
}

func TestParseAuthTokenRoundTrip(t *testing.T) {
	cfg := tokenConfig()
	raw := mintToken(t, cfg, jwt.MapClaims{
		"sub":  "user-1",
		"role": "buyer",
		"iss":  cfg.Issuer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	claims, err := ParseAuthToken(raw, cfg)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "buyer", claims.Role)
}

func TestParseAuthTokenRejections(t *testing.T) {
	cfg := tokenConfig()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong issuer", mintToken(t, cfg, jwt.MapClaims{
			"sub": "user-1",
			"iss": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", mintToken(t, cfg, jwt.MapClaims{
			"sub": "user-1",
			"iss": cfg.Issuer,
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing expiry", mintToken(t, cfg, jwt.MapClaims{
			"sub": "user-1",
			"iss": cfg.Issuer,
		})},
		{"missing subject", mintToken(t, cfg, jwt.MapClaims{
			"iss": cfg.Issuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"wrong secret", func() string {
			other := config.JWTConfig{Secret: "other-secret", Issuer: cfg.Issuer}
			return mintToken(t, other, jwt.MapClaims{
				"sub": "user-1",
				"iss": cfg.Issuer,
				"exp": time.Now().Add(time.Hour).Unix(),
			})
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAuthToken(tt.raw, cfg)
			require.Error(t, err)
			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			require.Equal(t, pkgerrors.CodeUnauthorized, appErr.Code())
		})
	}
}
