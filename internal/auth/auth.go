// Package auth checks API credentials: a static operator token, HS256 JWTs
// for service clients, and per-evaluation upload tokens stored as hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("unauthorized")

func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// NewUploadToken returns a fresh token and the hash to store.
func NewUploadToken() (token, hash string) {
	token = uuid.NewString()
	return token, HashToken(token)
}

const issuer = "demoeval"

type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator accepts either the static API token or a JWT signed with the
// shared secret. An empty secret disables JWTs.
type Authenticator struct {
	apiToken string
	secret   []byte
}

func NewAuthenticator(apiToken, jwtSecret string) *Authenticator {
	a := &Authenticator{apiToken: apiToken}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	return a
}

// Enabled reports whether any credential is configured.
func (a *Authenticator) Enabled() bool { return a.apiToken != "" || a.secret != nil }

// Check validates an Authorization header value and returns the subject.
func (a *Authenticator) Check(header string) (string, error) {
	tok, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tok == "" {
		return "", ErrUnauthorized
	}
	if a.apiToken != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(a.apiToken)) == 1 {
		return "api-token", nil
	}
	if a.secret == nil {
		return "", ErrUnauthorized
	}
	c, err := a.Parse(tok)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return c.Subject, nil
}

func (a *Authenticator) Issue(sub string, ttl time.Duration) (string, error) {
	if a.secret == nil {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(tok string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(tok, &c, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	return &c, nil
}
