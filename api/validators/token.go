package validators

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// Claims is the identity carried by a GatherGrid access token.
type Claims struct {
	UserID string
	Role   string
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// BearerToken strips the Bearer scheme from an Authorization header value.
func BearerToken(header string) string {
	value := strings.TrimSpace(header)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return ""
}

// ParseAuthToken verifies the token signature, issuer, and expiry, then
// returns the caller's identity.
func ParseAuthToken(raw string, cfg config.JWTConfig) (Claims, error) {
	if raw == "" {
		return Claims{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token")
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid auth token")
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid auth token")
	}

	return Claims{UserID: claims.Subject, Role: claims.Role}, nil
}
