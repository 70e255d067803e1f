package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-advanced-admin/admin"
	admingorm "github.com/go-advanced-admin/orm-gorm"
	adminecho "github.com/go-advanced-admin/web-echo"
	"golang.org/x/time/rate"

	"mdmc/internal/access"
	apimw "mdmc/internal/api/middleware"
	"mdmc/internal/api/validator"
	"mdmc/internal/config"
	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/services"

	console "mdmc/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

// Deps is what the server is assembled from. DB is only set with the
// postgres driver and enables the admin panel.
type Deps struct {
	Config        *config.Config
	Services      *services.Registry
	Authenticator *access.Authenticator
	Limiter       access.RateLimiter
	DB            *gorm.DB
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	deps   Deps
}

var log = console.New("API-Server")

// NewServer @title MDMC Music Ads CRM API
// @version 1.0
// @description Accounts, leads, campaigns and analytics for the MDMC CRM.
// @host localhost:8080
// @BasePath /api/v1
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.Services == nil || d.Authenticator == nil || d.Limiter == nil {
		return nil, errors.New("api: config, services, authenticator and limiter are required")
	}
	cfg := d.Config
	e := echo.New()
	e.HideBanner = true

	e.Validator = validator.NewValidator()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(cfg),
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentLength},
		ExposeHeaders: []string{
			"X-RateLimit-Limit", "X-RateLimit-Remaining", echo.HeaderRetryAfter, echo.HeaderContentDisposition,
		},
	}))
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: 30 * time.Second,
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
	e.Use(middleware.BodyLimit("10M"))
	e.Use(apimw.Metrics())

	e.HTTPErrorHandler = customHTTPErrorHandler

	if cfg.Server.IPRateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/health" || c.Path() == "/metrics"
			},
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.IPRateLimit)),
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return errs.TooManyRequests("Too many requests from this IP, please try again later.", time.Second)
			},
		}))
	}

	s := &Server{
		echo:   e,
		config: cfg,
		deps:   d,
	}

	if d.DB != nil {
		if err := s.mountAdminPanel(d.DB); err != nil {
			return nil, log.Error("Failed to create admin panel", err)
		}
		log.Success("Admin panel mounted")
	}

	s.registerRoutes()
	return s, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.Server.ClientURL == "" {
		return []string{"*"}
	}
	return []string{cfg.Server.ClientURL}
}

// mountAdminPanel exposes the accounts, leads and campaigns tables to
// administrators through the generated admin UI.
func (s *Server) mountAdminPanel(db *gorm.DB) error {
	gormIntegrator := admingorm.NewIntegrator(db)
	echoIntegrator := adminecho.NewIntegrator(s.echo.Group(""))

	adminPanel, err := admin.NewPanel(
		gormIntegrator, echoIntegrator, s.adminPermission, nil,
	)
	if err != nil {
		return err
	}

	app, err := adminPanel.RegisterApp("MDMC", "MDMC Admin Panel", nil)
	if err != nil {
		return err
	}
	for _, model := range []interface{}{&models.Account{}, &models.Lead{}, &models.Campaign{}} {
		if _, err := app.RegisterModel(model, nil); err != nil {
			return err
		}
	}
	return nil
}

// adminPermission admits active administrators presenting a valid access
// token. Anything else, including an unexpected context, is denied.
func (s *Server) adminPermission(_ admin.PermissionRequest, ctx interface{}) (bool, error) {
	c, ok := ctx.(echo.Context)
	if !ok {
		return false, nil
	}
	account, err := s.deps.Authenticator.Authenticate(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return false, nil
	}
	return account.Role == models.RoleAdmin, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health check endpoint
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// errorResponse is the failure envelope.
type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Custom HTTP error handler
func customHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, body := errorBody(err)
	if code >= http.StatusInternalServerError {
		log.Error(fmt.Sprintf("%s %s failed", c.Request().Method, c.Request().URL.Path), err)
	}

	var e *errs.Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		seconds := int(math.Ceil(e.RetryAfter.Seconds()))
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(seconds))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		c.Echo().Logger.Error(err)
	}
}

func errorBody(err error) (int, errorResponse) {
	var (
		ve validator.ValidationErrors
		ae *errs.Error
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{
			Message: "Validation failed",
			Code:    errs.CodeValidation,
			Errors:  ve.Fields(),
		}
	case errors.As(err, &ae):
		status := errs.Status(ae.Kind)
		body := errorResponse{Message: ae.Message, Code: ae.Code, Errors: ae.Fields}
		if ae.Kind == errs.KindValidation && body.Code == "" {
			body.Code = errs.CodeValidation
		}
		if body.Message == "" {
			body.Message = http.StatusText(status)
		}
		return status, body
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return he.Code, errorResponse{Message: msg}
	default:
		return http.StatusInternalServerError, errorResponse{Message: "Internal server error"}
	}
}
