package access

import (
	"mdmc/internal/errs"
	"mdmc/internal/models"
)

// Requirement gates an operation. When both are set the account needs the
// permission and one of the roles.
type Requirement struct {
	Permission models.Permission
	Roles      []models.Role
}

func RequirePermission(p models.Permission) Requirement {
	return Requirement{Permission: p}
}

func RequireRoles(roles ...models.Role) Requirement {
	return Requirement{Roles: roles}
}

// Authorize fails with Forbidden unless account meets req. Admins always pass.
func Authorize(account *models.Account, req Requirement) error {
	if account == nil {
		return errs.Unauthorized("Authentication required")
	}
	if account.Role == models.RoleAdmin {
		return nil
	}
	if req.Permission != "" && !account.HasPermission(req.Permission) {
		return errs.Forbidden("Access denied. Required permission: " + string(req.Permission))
	}
	if len(req.Roles) > 0 && !account.Role.In(req.Roles...) {
		return errs.Forbidden("Access denied. Insufficient role.")
	}
	return nil
}

// CheckOwnership fails with Forbidden unless account is ownerID or an admin.
func CheckOwnership(account *models.Account, ownerID string) error {
	if account == nil {
		return errs.Unauthorized("Authentication required")
	}
	if account.Role == models.RoleAdmin || account.ID == ownerID {
		return nil
	}
	return errs.Forbidden("Access denied. You can only access your own resources.")
}
