// Package token issues and verifies the signed capability credential that
// clients present on every session call. The token is signed, not encrypted:
// possession implies authorization, and its secrecy (a single-use URL to the
// playing surface) is the only access control.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quickbites/challenge-engine/internal/domain"
	"github.com/quickbites/challenge-engine/pkg/challengedto"
)

type Claims struct {
	SessionID     string `json:"sid"`
	UserID        string `json:"uid"`
	OrderID       string `json:"oid"`
	Difficulty    string `json:"diff"`
	ChallengeType string `json:"type"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Issue signs a capability token for the session. The expiry claim mirrors
// the session's wall-clock backstop; the real deadline is delivery-driven and
// re-checked server side on every call.
func (c *Codec) Issue(sess *domain.ChallengeSession) (string, error) {
	if sess == nil {
		return "", errors.New("nil session")
	}
	claims := Claims{
		SessionID:     sess.ID,
		UserID:        sess.UserID,
		OrderID:       sess.OrderID,
		Difficulty:    string(sess.Difficulty),
		ChallengeType: string(sess.ChallengeType),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign challenge token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and claims. An expired claim maps to
// SESSION_EXPIRED (the outer 2h bound has passed); any other failure is
// INVALID_TOKEN and the client must start over.
func (c *Codec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, challengedto.Errf(challengedto.CodeSessionExpired, "challenge token expired")
		}
		return nil, challengedto.Errf(challengedto.CodeInvalidToken, "invalid challenge token")
	}
	if claims.SessionID == "" {
		return nil, challengedto.Errf(challengedto.CodeInvalidToken, "token missing session id")
	}
	return claims, nil
}
