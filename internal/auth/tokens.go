// Package auth issues and verifies credentials: signed session tokens,
// password hashes, one-time secrets and third-party identities.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"mdmc/internal/config"
	"mdmc/internal/errs"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the token payload: the account id and, for refresh tokens, the kind.
type Claims struct {
	AccountID string `json:"id"`
	Kind      Kind   `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs access and refresh tokens with separate secrets.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokens(cfg config.JWTConfig) *Tokens {
	return &Tokens{
		accessSecret:  []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

func (t *Tokens) AccessTTL() time.Duration {
	return t.accessTTL
}

func (t *Tokens) RefreshTTL() time.Duration {
	return t.refreshTTL
}

// IssueAccessToken signs a short-lived token carrying only the account id.
func (t *Tokens) IssueAccessToken(accountID string) (string, error) {
	return t.sign(Claims{AccountID: accountID}, t.accessSecret, t.accessTTL)
}

// IssueRefreshToken signs a refresh token. Each one carries a fresh jti so two
// tokens minted in the same second still differ.
func (t *Tokens) IssueRefreshToken(accountID string) (string, time.Time, error) {
	expires := t.now().Add(t.refreshTTL)
	token, err := t.sign(Claims{
		AccountID:        accountID,
		Kind:             KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.New().String()},
	}, t.refreshSecret, t.refreshTTL)
	return token, expires, err
}

func (t *Tokens) sign(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and kind and returns the account id.
func (t *Tokens) Verify(token string, kind Kind) (string, error) {
	secret := t.accessSecret
	if kind == KindRefresh {
		secret = t.refreshSecret
	}

	claims := &Claims{}
	parser := jwt.Parser{
		ValidMethods: []string{jwt.SigningMethodHS256.Alg()},
	}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errs.Unauthorized("Token expired").WithCode(errs.CodeTokenExpired)
		}
		return "", errs.Unauthorized("Invalid token").WithCode(errs.CodeInvalidToken)
	}

	if claims.AccountID == "" {
		return "", errs.Unauthorized("Invalid token").WithCode(errs.CodeInvalidToken)
	}
	if kind == KindRefresh && claims.Kind != KindRefresh {
		return "", errs.Unauthorized("Invalid refresh token").WithCode(errs.CodeInvalidToken)
	}
	if kind == KindAccess && claims.Kind == KindRefresh {
		return "", errs.Unauthorized("Invalid token").WithCode(errs.CodeInvalidToken)
	}
	return claims.AccountID, nil
}
