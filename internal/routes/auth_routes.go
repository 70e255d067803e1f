package routes

import (
	"mdmc/internal/handlers"

	"github.com/labstack/echo/v4"
)

// SetupAuthRoutes mounts /auth on base. protected must authenticate and
// rate-limit the account.
func SetupAuthRoutes(base *echo.Group, h *handlers.AuthHandler, protected ...echo.MiddlewareFunc) {
	auth := base.Group("/auth")

	// Public routes (no auth required)
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/admin-login", h.AdminLogin)
	auth.POST("/refresh-token", h.RefreshToken)
	auth.POST("/forgot-password", h.ForgotPassword)
	auth.POST("/reset-password", h.ResetPassword)
	auth.POST("/google", h.Google)
	auth.GET("/verify-email/:token", h.VerifyEmail)

	me := auth.Group("", protected...)
	me.GET("/profile", h.Profile)
	me.GET("/check", h.Check)
	me.PUT("/profile", h.UpdateProfile)
	me.POST("/change-password", h.ChangePassword)
	me.POST("/logout", h.Logout)
	me.POST("/logout-all", h.LogoutAll)
	me.POST("/resend-verification", h.ResendVerification)
}
