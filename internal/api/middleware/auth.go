package middleware

import (
	"mdmc/internal/access"
	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

var log = logger.New("auth_middleware")

const accountKey = "account"

// Authenticate resolves the bearer token to an active account and stores it
// on the context for the handlers and the gates below.
func Authenticate(a *access.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			account, err := a.Authenticate(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				RecordAuthFailure(errs.CodeOf(err))
				log.Debug("Rejected %s %s: %v", c.Request().Method, c.Path(), err)
				return err
			}
			c.Set(accountKey, account)
			c.Set("userID", account.ID)
			c.Set("role", string(account.Role))
			return next(c)
		}
	}
}

// CurrentAccount returns the authenticated account, or nil on public routes.
func CurrentAccount(c echo.Context) *models.Account {
	if account, ok := c.Get(accountKey).(*models.Account); ok {
		return account
	}
	return nil
}

// GetUserID returns the authenticated account id.
func GetUserID(c echo.Context) string {
	if id, ok := c.Get("userID").(string); ok {
		return id
	}
	return ""
}

func GetUserRole(c echo.Context) string {
	if role, ok := c.Get("role").(string); ok {
		return role
	}
	return ""
}
