package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"subs3-ledger/internal/domain/model"
)

// PrincipalClaims are issued by the wallet sign-in flow once it has verified a
// signature; Subject carries the wallet address in base58.
type PrincipalClaims struct {
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Mint signs a token for principal. Used by the demo and tests in place of the
// wallet sign-in service.
func (a *Authenticator) Mint(principal model.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PrincipalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   principal.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseRequest reads "Authorization: Bearer <jwt>" and returns its principal.
func (a *Authenticator) ParseRequest(r *http.Request) (model.Address, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return model.DefaultAddress, errors.New("missing bearer token")
	}
	return a.Parse(strings.TrimSpace(hdr[7:]))
}

func (a *Authenticator) Parse(tok string) (model.Address, error) {
	claims := &PrincipalClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return model.DefaultAddress, errors.New("invalid token")
	}
	p, err := model.ParseAddress(claims.Subject)
	if err != nil {
		return model.DefaultAddress, fmt.Errorf("invalid subject: %w", err)
	}
	return p, nil
}
