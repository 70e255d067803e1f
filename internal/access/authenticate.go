// Package access authenticates requests, authorizes accounts against
// permissions, roles and ownership, and rate-limits per account.
package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"mdmc/internal/auth"
	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/store"
	"mdmc/internal/utils/logger"
)

var log = logger.New("ACCESS")

var errInactive = errs.Unauthorized("Account is deactivated").WithCode(errs.CodeAccountInactive)

// Authenticator resolves a bearer token to an active account.
type Authenticator struct {
	accounts store.AccountStore
	tokens   *auth.Tokens
	now      func() time.Time
}

func NewAuthenticator(accounts store.AccountStore, tokens *auth.Tokens) *Authenticator {
	return &Authenticator{accounts: accounts, tokens: tokens, now: time.Now}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errs.Unauthorized("Access denied. No token provided.").WithCode(errs.CodeNoToken)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errs.Unauthorized("Invalid authorization header format").WithCode(errs.CodeInvalidToken)
	}
	return strings.TrimSpace(token), nil
}

// ActivityInterval is how stale last_activity may get before a request
// refreshes it.
const ActivityInterval = time.Minute

// Authenticate verifies the access token in header, loads the account and
// records activity on it. Missing and deactivated accounts are Unauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*models.Account, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	id, err := a.tokens.Verify(token, auth.KindAccess)
	if err != nil {
		return nil, err
	}

	account, err := a.accounts.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.Unauthorized("Invalid token. User not found.").WithCode(errs.CodeInvalidToken)
	case err != nil:
		return nil, errs.Internal("Failed to load account", log.Error("authenticate %s", err, id))
	}
	if !account.IsActive {
		return nil, errInactive
	}

	now := a.now()
	if account.LastActivity == nil || now.Sub(*account.LastActivity) >= ActivityInterval {
		if err := a.accounts.TouchActivity(ctx, id, now); err != nil {
			log.Warn("Failed to record activity for %s: %v", id, err)
		} else {
			account.LastActivity = &now
		}
	}
	return account, nil
}
