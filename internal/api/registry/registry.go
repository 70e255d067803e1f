package registry

import (
	"github.com/labstack/echo/v4"

	"mdmc/internal/api/controllers"
	"mdmc/internal/api/middleware"
	"mdmc/internal/models"
)

// Controllers groups the resource controllers mounted under /api/v1.
type Controllers struct {
	Users     *controllers.UserController
	Leads     *controllers.LeadController
	Campaigns *controllers.CampaignController
	Analytics *controllers.AnalyticsController
}

var (
	adminOnly        = middleware.RequireRoles(models.RoleAdmin)
	adminOrManager   = []models.Role{models.RoleAdmin, models.RoleManager}
	requirePerm      = middleware.RequirePermission
	requirePermRoles = middleware.RequirePermissionAndRoles
)

// RegisterResourceRoutes mounts every resource route on g, which must already
// authenticate and rate-limit. Static segments are registered before /:id.
func RegisterResourceRoutes(g *echo.Group, c Controllers) {
	registerUserRoutes(g.Group("/users"), c.Users)
	registerLeadRoutes(g.Group("/leads"), c.Leads)
	registerCampaignRoutes(g.Group("/campaigns"), c.Campaigns)
	registerAnalyticsRoutes(g.Group("/analytics"), c.Analytics)
}

// Account management. Reads need users.read; role, activation and permission changes are admin only.
func registerUserRoutes(g *echo.Group, h *controllers.UserController) {
	read := requirePerm(models.PermUsersRead)

	g.GET("", h.List, read)
	g.GET("/stats", h.Stats, requirePermRoles(models.PermUsersRead, adminOrManager...))
	g.PATCH("/bulk", h.BulkUpdate, adminOnly)
	g.POST("", h.Create, adminOnly)

	g.GET("/:id", h.Get, read)
	g.GET("/:id/activity", h.Activity, read)
	g.GET("/:id/permissions", h.Permissions, adminOnly)
	g.PUT("/:id", h.Update, requirePerm(models.PermUsersWrite))
	g.DELETE("/:id", h.Delete, requirePermRoles(models.PermUsersDelete, models.RoleAdmin))
	g.PATCH("/:id/activate", h.Activate, adminOnly)
	g.PATCH("/:id/role", h.ChangeRole, adminOnly)
	g.PATCH("/:id/permissions", h.UpdatePermissions, adminOnly)
}

// Lead pipeline. Agents only see and change leads assigned to them.
func registerLeadRoutes(g *echo.Group, h *controllers.LeadController) {
	read := requirePerm(models.PermLeadsRead)
	write := requirePerm(models.PermLeadsWrite)

	g.GET("", h.List, read)
	g.GET("/stats", h.Stats, read)
	g.GET("/overdue", h.Overdue, read)
	g.PATCH("/bulk", h.BulkUpdate, write)
	g.POST("", h.Create, write)

	g.GET("/:id", h.Get, read)
	g.PUT("/:id", h.Update, write)
	g.DELETE("/:id", h.Delete, requirePermRoles(models.PermLeadsDelete, adminOrManager...))
	g.POST("/:id/interactions", h.AddInteraction, write)
	g.PATCH("/:id/assign", h.Assign, write)
	g.PATCH("/:id/follow-up", h.FollowUp, write)
	g.PATCH("/:id/convert", h.Convert, write)
	g.PATCH("/:id/lost", h.Lost, write)
}

// Campaigns, their metrics and lifecycle. Archiving needs admin or manager.
func registerCampaignRoutes(g *echo.Group, h *controllers.CampaignController) {
	read := requirePerm(models.PermCampaignsRead)
	write := requirePerm(models.PermCampaignsWrite)

	g.GET("", h.List, read)
	g.GET("/stats", h.Stats, read)
	g.PATCH("/bulk", h.BulkUpdate, write)
	g.POST("", h.Create, write)

	g.GET("/:id", h.Get, read)
	g.GET("/:id/performance", h.Performance, read)
	g.PUT("/:id", h.Update, write)
	g.DELETE("/:id", h.Delete, requirePermRoles(models.PermCampaignsDelete, adminOrManager...))
	g.POST("/:id/duplicate", h.Duplicate, write)
	g.POST("/:id/daily-metrics", h.AddDailyMetric, write)
	g.POST("/:id/optimizations", h.AddOptimization, write)
	g.PATCH("/:id/metrics", h.UpdateMetrics, write)
	g.PATCH("/:id/pause", h.Pause, write)
	g.PATCH("/:id/resume", h.Resume, write)
	g.PATCH("/:id/complete", h.Complete, write)
}

// Dashboard and reports, scoped to the caller's leads and campaigns for agents.
func registerAnalyticsRoutes(g *echo.Group, h *controllers.AnalyticsController) {
	g.Use(requirePerm(models.PermAnalyticsRead))

	g.GET("/dashboard", h.Dashboard)
	g.GET("/leads", h.Leads)
	g.GET("/campaigns", h.Campaigns)
	g.GET("/revenue", h.Revenue)
	g.GET("/comparison", h.Comparison)
}
