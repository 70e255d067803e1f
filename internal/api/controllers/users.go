package controllers

import (
	"mdmc/internal/models"
	"mdmc/internal/services"

	"github.com/labstack/echo/v4"
)

type UserController struct {
	accounts *services.AccountService
}

func NewUserController(accounts *services.AccountService) *UserController {
	return &UserController{accounts: accounts}
}

type roleRequest struct {
	Role models.Role `json:"role" validate:"required,account_role"`
}

type permissionsRequest struct {
	Permissions []models.Permission `json:"permissions" validate:"required,dive,permission"`
}

func (h *UserController) List(c echo.Context) error {
	var p services.AccountListParams
	if err := BindQuery(c, &p); err != nil {
		return err
	}
	var err error
	if p.IsActive, err = QueryBool(c, "isActive"); err != nil {
		return err
	}
	users, page, err := h.accounts.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return Paged(c, users, page)
}

func (h *UserController) Stats(c echo.Context) error {
	stats, err := h.accounts.Stats(c.Request().Context(), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, stats)
}

func (h *UserController) Get(c echo.Context) error {
	user, err := h.accounts.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return OK(c, user)
}

func (h *UserController) Activity(c echo.Context) error {
	activity, err := h.accounts.Activity(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, activity)
}

func (h *UserController) Create(c echo.Context) error {
	var in services.CreateAccountInput
	if err := Bind(c, &in); err != nil {
		return err
	}
	user, err := h.accounts.Create(c.Request().Context(), in, Actor(c))
	if err != nil {
		return err
	}
	return Created(c, user, "User created successfully")
}

func (h *UserController) Update(c echo.Context) error {
	var p services.AccountPatch
	if err := Bind(c, &p); err != nil {
		return err
	}
	user, err := h.accounts.Update(c.Request().Context(), c.Param("id"), p, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, user, "User updated successfully")
}

// Delete deactivates the account; accounts are never removed.
func (h *UserController) Delete(c echo.Context) error {
	if err := h.accounts.Deactivate(c.Request().Context(), c.Param("id"), Actor(c)); err != nil {
		return err
	}
	return Message(c, "User deactivated successfully")
}

func (h *UserController) Activate(c echo.Context) error {
	user, err := h.accounts.Activate(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, user, "User activated successfully")
}

func (h *UserController) ChangeRole(c echo.Context) error {
	var req roleRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	user, err := h.accounts.ChangeRole(c.Request().Context(), c.Param("id"), req.Role, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, user, "User role updated successfully")
}

func (h *UserController) Permissions(c echo.Context) error {
	perms, err := h.accounts.GetPermissions(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, map[string]interface{}{"permissions": perms})
}

func (h *UserController) UpdatePermissions(c echo.Context) error {
	var req permissionsRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	user, err := h.accounts.UpdatePermissions(c.Request().Context(), c.Param("id"), req.Permissions, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, user, "User permissions updated successfully")
}

func (h *UserController) BulkUpdate(c echo.Context) error {
	var req BulkUserRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	users, err := h.accounts.BulkUpdate(c.Request().Context(), req.UserIDs, req.Updates, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, users, "Users updated successfully")
}
