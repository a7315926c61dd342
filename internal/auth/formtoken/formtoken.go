// Package formtoken issues and verifies the short-lived tokens that let
// external form flows write on behalf of a uid without a full user session.
package formtoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "kyc-core/pkg/domain-errors"
)

// Claims carries the uid the form flow acts for and the form marker tagged
// onto every write it performs.
type Claims struct {
	UID  int64  `json:"uid"`
	Form string `json:"form"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func New(secret []byte, ttl time.Duration) *Manager {
	return &Manager{secret: secret, ttl: ttl}
}

// Issue signs a token for the uid and form marker.
func (m *Manager) Issue(uid int64, form string) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:  uid,
		Form: form,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign form token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its claims. Any parse, signature or
// expiry failure surfaces as the invalid-form-token business error.
func (m *Manager) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidFormToken, "")
	}
	if !token.Valid || claims.UID == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidFormToken, "")
	}
	return claims, nil
}
