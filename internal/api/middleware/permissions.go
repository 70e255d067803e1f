package middleware

import (
	"mdmc/internal/access"
	"mdmc/internal/models"

	"github.com/labstack/echo/v4"
)

// Require gates a route on req. It must run after Authenticate.
func Require(req access.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := access.Authorize(CurrentAccount(c), req); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequirePermission gates a route on one permission token.
func RequirePermission(p models.Permission) echo.MiddlewareFunc {
	return Require(access.RequirePermission(p))
}

// RequireRoles gates a route on the account role.
func RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	return Require(access.RequireRoles(roles...))
}

// RequirePermissionAndRoles needs both p and one of roles.
func RequirePermissionAndRoles(p models.Permission, roles ...models.Role) echo.MiddlewareFunc {
	return Require(access.Requirement{Permission: p, Roles: roles})
}
