package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OIDCAuthenticator validates bearer tokens presented to the query API.
// Token verification is claims-level (issuer, expiry); signature checks
// against the issuer's JWKS belong to the fronting gateway.
type OIDCAuthenticator struct {
	config *oauth2.Config
	issuer string
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config: config,
		issuer: issuer,
	}, nil
}

func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("parse token claims: %w", err)
	}

	if iss, ok := claims["iss"].(string); ok && iss != "" && iss != a.issuer {
		return nil, fmt.Errorf("unexpected token issuer")
	}
	if exp, ok := claims["exp"].(float64); ok {
		if time.Now().After(time.Unix(int64(exp), 0)) {
			return nil, fmt.Errorf("token expired")
		}
	}

	return claims, nil
}

// TokenSource supplies client-credential tokens for outbound calls to the
// policy issuer.
func (a *OIDCAuthenticator) TokenSource(ctx context.Context, refreshToken string) oauth2.TokenSource {
	return a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
