package services

import (
	"errors"
	"time"

	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/store"
	"mdmc/internal/utils/logger"
)

// storeError maps store sentinels to API errors for resource.
func storeError(log *logger.Logger, err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errs.NotFound(resource)
	case errors.Is(err, store.ErrDuplicate):
		return errs.Conflict(resource + " already exists")
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, models.ErrNoCredential) {
		return errs.Validation(err.Error())
	}
	return errs.Internal("Internal server error", log.Error("%s store", err, resource))
}

// isAgent reports whether the account's reads and writes are narrowed to
// the records it owns.
func isAgent(a *models.Account) bool {
	return a.Role == models.RoleAgent
}

func isAdmin(a *models.Account) bool {
	return a.Role == models.RoleAdmin
}

func scopeFor(a *models.Account) *store.Scope {
	if isAgent(a) {
		return &store.Scope{AccountID: a.ID}
	}
	return nil
}

func requireRoles(a *models.Account, msg string, roles ...models.Role) error {
	if isAdmin(a) || a.Role.In(roles...) {
		return nil
	}
	return errs.Forbidden(msg)
}

// DateRange is an optional closed interval, read from startDate and endDate.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return errs.Validation("endDate must not be before startDate")
	}
	return nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func strPtrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
