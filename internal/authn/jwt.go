// Package authn issues and validates the bearer credentials used by the demo
// shell, and derives identities from token claims when a backend response
// omits the profile.
package authn

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"passage/internal/session/models"
	dErrors "passage/pkg/domain-errors"
)

// Claims is the token payload. Role travels as a string and is re-validated
// against the closed enumeration on every decode.
type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and validates HS256 credentials.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

// NewIssuer creates an Issuer. ttl bounds credential lifetime.
func NewIssuer(signingKey string, ttl time.Duration) *Issuer {
	return &Issuer{signingKey: []byte(signingKey), ttl: ttl}
}

// Issue mints a credential for the identity.
func (i *Issuer) Issue(id models.Identity) (models.Credential, error) {
	now := time.Now()
	claims := Claims{
		Username: id.Username,
		Email:    id.Email,
		Role:     string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return models.Credential{}, fmt.Errorf("sign token: %w", err)
	}
	return models.Credential{AccessToken: signed}, nil
}

// Validate parses and verifies a credential, returning its claims.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.signingKey, nil
	})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnauthorized, "invalid or expired token", err)
	}
	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

// IdentityFromCredential derives an identity from the credential's claims
// without verifying the signature. Used when a login response carries no
// profile payload; verification remains the backend's job.
func IdentityFromCredential(cred models.Credential) (models.Identity, bool) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(cred.AccessToken, claims); err != nil {
		return models.Identity{}, false
	}

	role, ok := models.ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return models.Identity{}, false
	}
	return models.Identity{
		ID:       claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     role,
	}, true
}
