// Package jwtx issues and verifies HMAC-signed, time-limited tokens: the
// account activation / password reset token and the long-lived "rm"
// remember-me cookie. Both are HS256 JWTs signed with the portal secret key.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token uses. Stored in the "use" claim so an activation token can never be
// replayed as a remember cookie or vice versa.
const (
	UseActivation = "activate"
	UseRemember   = "remember"
)

var (
	ErrExpired   = errors.New("jwtx: token expired")
	ErrSignature = errors.New("jwtx: signature invalid")
	ErrUse       = errors.New("jwtx: wrong token use")
)

// Claims carried by portal tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Use discriminates token purposes, see the Use* constants.
	Use string `json:"use"`
}

// Signer signs and verifies portal tokens with a shared HMAC secret.
type Signer struct {
	Secret []byte
	Issuer string
}

// Sign issues a token for the given subject (user ID), valid for ttl.
func (s *Signer) Sign(subject, use string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Use: use,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify parses raw, checks the signature and expiry, and enforces the
// expected use. Returns the subject on success.
func (s *Signer) Verify(raw, expectedUse string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.Issuer),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	default:
		return "", ErrSignature
	}

	if claims.Use != expectedUse {
		return "", ErrUse
	}
	return claims.Subject, nil
}
