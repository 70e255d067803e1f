package routes

import (
	"mdmc/internal/api/middleware"
	"mdmc/internal/handlers"
	"mdmc/internal/models"

	"github.com/labstack/echo/v4"
)

// SetupExportRoutes mounts the lead export on api, which already authenticates.
func SetupExportRoutes(api *echo.Group, h *handlers.ExportHandler) {
	api.GET("/leads/export", h.ExportLeads, middleware.RequirePermission(models.PermLeadsRead))
}
