package api

import (
	"mdmc/internal/api/controllers"
	"mdmc/internal/api/middleware"
	"mdmc/internal/api/registry"
	"mdmc/internal/handlers"
	"mdmc/internal/routes"

	_ "mdmc/docs/swagger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func (s *Server) registerRoutes() {
	// Health check
	// @Summary Health check
	// @Description Check if the server is running
	// @Accept json
	// @Produce json
	// @Success 200 {object} map[string]string "OK"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	svc := s.deps.Services
	protected := []echo.MiddlewareFunc{
		middleware.Authenticate(s.deps.Authenticator),
		middleware.RateLimit(s.deps.Limiter),
	}

	// API v1 group
	api := s.echo.Group("/api/v1")
	routes.SetupAuthRoutes(api, handlers.NewAuthHandler(svc.Auth), protected...)

	secured := api.Group("", protected...)
	routes.SetupExportRoutes(secured, handlers.NewExportHandler(svc.Leads))
	registry.RegisterResourceRoutes(secured, registry.Controllers{
		Users:     controllers.NewUserController(svc.Accounts),
		Leads:     controllers.NewLeadController(svc.Leads),
		Campaigns: controllers.NewCampaignController(svc.Campaigns),
		Analytics: controllers.NewAnalyticsController(svc.Reports),
	})
}
