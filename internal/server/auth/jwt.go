// Package auth implements the signed-token codec: a compact, expiring,
// tamper-evident credential issued after a successful login and verified by
// any endpoint that needs proof of identity. Tokens are stateless; there is
// no revocation list, a token stays valid until its expiry elapses.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity snapshot embedded in a signed token: the standard
// registered claims plus who the subject is and how they authenticated.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Method string `json:"method"`
}

// Codec signs and verifies HS256 tokens with a process-wide secret.
type Codec struct {
	secret   []byte
	validity time.Duration
}

// NewCodec builds a Codec. An empty secret is allowed here so the app can
// boot for non-issuing work, but Issue and Verify fail closed on it.
func NewCodec(secret string, validity time.Duration) *Codec {
	return &Codec{secret: []byte(secret), validity: validity}
}

// Issue mints a signed token for the given identity snapshot, expiring
// after the configured validity window.
func (c *Codec) Issue(userID, email, name, method string) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("signing key is not configured")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.validity)),
		},
		UserID: userID,
		Email:  email,
		Name:   name,
		Method: method,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}

	return signed, nil
}

// Verify checks signature and expiry and returns the decoded claims.
// Expiry and signature failures are distinguishable to the caller
// (common.ErrTokenExpired vs common.ErrInvalidToken); how much of that
// distinction reaches the wire is the transport layer's decision.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return c.secret, nil
		})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
