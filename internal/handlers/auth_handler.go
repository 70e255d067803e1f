package handlers

import (
	"net/http"

	"mdmc/internal/api/controllers"
	"mdmc/internal/services"
	"mdmc/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	auth *services.AuthService
	log  *logger.Logger
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth, log: logger.New("auth_handler")}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,strong_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,strong_password,nefield=CurrentPassword"`
}

type googleRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// Register creates a password account
// @Summary Register a new user
// @Description Create an account and sign in. Role defaults to agent; admin cannot be self-assigned.
// @Accept json
// @Produce json
// @Param request body services.RegisterInput true "Registration details"
// @Success 201 {object} controllers.Response "Session"
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 409 {object} map[string]interface{} "Email already registered"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var in services.RegisterInput
	if err := controllers.Bind(c, &in); err != nil {
		return err
	}
	session, err := h.auth.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return controllers.Created(c, session, "User registered successfully")
}

// Login signs in with email and password
// @Summary Login
// @Accept json
// @Produce json
// @Param request body services.LoginInput true "Credentials"
// @Success 200 {object} controllers.Response "Session"
// @Failure 401 {object} map[string]interface{} "Invalid credentials or inactive account"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var in services.LoginInput
	if err := controllers.Bind(c, &in); err != nil {
		return err
	}
	session, err := h.auth.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return controllers.WithMessage(c, session, "Login successful")
}

// AdminLogin is Login restricted to administrators
// @Summary Admin login
// @Accept json
// @Produce json
// @Param request body services.LoginInput true "Credentials"
// @Success 200 {object} controllers.Response "Session"
// @Failure 403 {object} map[string]interface{} "Not an administrator"
// @Router /api/v1/auth/admin-login [post]
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var in services.LoginInput
	if err := controllers.Bind(c, &in); err != nil {
		return err
	}
	session, err := h.auth.AdminLogin(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return controllers.WithMessage(c, session, "Admin login successful")
}

// RefreshToken exchanges a refresh token for a new access token
// @Summary Refresh access token
// @Accept json
// @Produce json
// @Param request body refreshRequest true "Refresh token"
// @Success 200 {object} controllers.Response "Token pair"
// @Failure 401 {object} map[string]interface{} "Invalid or expired refresh token"
// @Router /api/v1/auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshRequest
	if err := controllers.Bind(c, &req); err != nil {
		return err
	}
	tokens, err := h.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return controllers.OK(c, tokens)
}

// ForgotPassword starts a reset. The response is the same whether or not the
// email is registered.
// @Summary Request a password reset
// @Accept json
// @Produce json
// @Param request body forgotPasswordRequest true "Email"
// @Success 200 {object} controllers.Response
// @Router /api/v1/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := controllers.Bind(c, &req); err != nil {
		return err
	}
	if _, err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return controllers.Message(c, "If an account exists for that email, a reset link has been sent")
}

// ResetPassword consumes a reset token
// @Summary Reset password
// @Accept json
// @Produce json
// @Param request body resetPasswordRequest true "Token and new password"
// @Success 200 {object} controllers.Response
// @Failure 400 {object} map[string]interface{} "Invalid or expired token"
// @Router /api/v1/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := controllers.Bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return controllers.Message(c, "Password reset successfully")
}

// VerifyEmail consumes a verification token
// @Summary Verify email
// @Produce json
// @Param token path string true "Verification token"
// @Success 200 {object} controllers.Response
// @Failure 400 {object} map[string]interface{} "Invalid or expired token"
// @Router /api/v1/auth/verify-email/{token} [get]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	if err := h.auth.VerifyEmail(c.Request().Context(), c.Param("token")); err != nil {
		return err
	}
	return controllers.Message(c, "Email verified successfully")
}

// Google signs in with a Google OAuth access token
// @Summary Google sign-in
// @Accept json
// @Produce json
// @Param request body googleRequest true "Google access token"
// @Success 200 {object} controllers.Response "Session"
// @Failure 401 {object} map[string]interface{} "Google rejected the token"
// @Router /api/v1/auth/google [post]
func (h *AuthHandler) Google(c echo.Context) error {
	var req googleRequest
	if err := controllers.Bind(c, &req); err != nil {
		return err
	}
	session, err := h.auth.GoogleSignIn(c.Request().Context(), req.AccessToken)
	if err != nil {
		return err
	}
	return controllers.WithMessage(c, session, "Google authentication successful")
}

// Profile returns the signed-in account
// @Summary Current user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.Response "Account"
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) Profile(c echo.Context) error {
	account, err := h.auth.Profile(c.Request().Context(), controllers.Actor(c).ID)
	if err != nil {
		return err
	}
	return controllers.OK(c, account)
}

// Check reports whether the access token is still good.
func (h *AuthHandler) Check(c echo.Context) error {
	account := controllers.Actor(c)
	return c.JSON(http.StatusOK, controllers.Response{
		Success: true,
		Data: map[string]interface{}{
			"authenticated": true,
			"user":          account,
		},
	})
}

// UpdateProfile edits the signed-in account's own details
// @Summary Update profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.ProfilePatch true "Profile fields"
// @Success 200 {object} controllers.Response "Account"
// @Router /api/v1/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var p services.ProfilePatch
	if err := controllers.Bind(c, &p); err != nil {
		return err
	}
	account, err := h.auth.UpdateProfile(c.Request().Context(), controllers.Actor(c).ID, p)
	if err != nil {
		return err
	}
	return controllers.WithMessage(c, account, "Profile updated successfully")
}

// ChangePassword ends every session of the account
// @Summary Change password
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body changePasswordRequest true "Current and new password"
// @Success 200 {object} controllers.Response
// @Router /api/v1/auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := controllers.Bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.Request().Context(), controllers.Actor(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return controllers.Message(c, "Password changed successfully. Please log in again.")
}

func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutRequest
	if err := controllers.Bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.Logout(c.Request().Context(), controllers.Actor(c).ID, req.RefreshToken); err != nil {
		return err
	}
	return controllers.Message(c, "Logged out successfully")
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	if err := h.auth.LogoutAll(c.Request().Context(), controllers.Actor(c).ID); err != nil {
		return err
	}
	return controllers.Message(c, "Logged out from all devices successfully")
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	if _, err := h.auth.ResendVerification(c.Request().Context(), controllers.Actor(c).ID); err != nil {
		return err
	}
	return controllers.Message(c, "Verification email sent")
}
