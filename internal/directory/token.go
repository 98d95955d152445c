package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// TokenAudience is the audience an offline token must carry when its
// signature is verified.
const TokenAudience = "cloud-services"

// ErrInvalidToken is returned when the offline token cannot be decoded.
var ErrInvalidToken = errors.New("invalid offline token")

// OfflineToken is a decoded long-lived refresh token
type OfflineToken struct {
	Raw      string
	Issuer   string
	ClientID string
	Verified bool
}

// TokenURL is the OpenID Connect token endpoint of the issuer
func (t *OfflineToken) TokenURL() string {
	return strings.TrimRight(t.Issuer, "/") + "/protocol/openid-connect/token"
}

// ParseOfflineToken decodes the token claims. With a PEM public key the
// RS256 signature and audience are verified; without one the claims are
// read unverified. Expiry is never checked.
func ParseOfflineToken(raw, publicKeyPEM string, logger *slog.Logger) (*OfflineToken, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	verified := false
	if key := strings.TrimSpace(publicKeyPEM); key != "" {
		publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %v", ErrInvalidToken, err)
		}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return publicKey, nil
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if !claims.VerifyAudience(TokenAudience, true) {
			return nil, fmt.Errorf("%w: audience %v does not include %q", ErrInvalidToken, []string(claims.Audience), TokenAudience)
		}
		verified = true
	} else {
		logger.Warn("offline token signature not verified; set api.uhc.public_key to enable validation")
		if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if strings.TrimSpace(claims.Issuer) == "" {
		return nil, fmt.Errorf("%w: missing iss claim", ErrInvalidToken)
	}
	if len(claims.Audience) == 0 || strings.TrimSpace(claims.Audience[0]) == "" {
		return nil, fmt.Errorf("%w: missing aud claim", ErrInvalidToken)
	}

	return &OfflineToken{
		Raw:      raw,
		Issuer:   claims.Issuer,
		ClientID: claims.Audience[0],
		Verified: verified,
	}, nil
}
