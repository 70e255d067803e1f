// Package controllers adapts the services to echo handlers. Every success
// body is the {success, data, pagination?, message?} envelope.
package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"mdmc/internal/api/middleware"
	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/services"

	"github.com/labstack/echo/v4"
)

// Response is the success envelope.
type Response struct {
	Success    bool                 `json:"success"`
	Data       interface{}          `json:"data,omitempty"`
	Pagination *services.Pagination `json:"pagination,omitempty"`
	Message    string               `json:"message,omitempty"`
}

func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func Created(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusCreated, Response{Success: true, Data: data, Message: message})
}

func Message(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

func WithMessage(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data, Message: message})
}

func Paged(c echo.Context, data interface{}, p services.Pagination) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data, Pagination: &p})
}

// Bind decodes the request body into dst and validates it.
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return errs.Validation("Invalid request body")
	}
	return c.Validate(dst)
}

// BindQuery decodes the tagged query parameters into dst.
func BindQuery(c echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, dst); err != nil {
		return errs.Validation("Invalid query parameters")
	}
	return nil
}

// Actor is the authenticated account. Routes using it sit behind Authenticate.
func Actor(c echo.Context) *models.Account {
	return middleware.CurrentAccount(c)
}

const dateLayout = "2006-01-02"

// QueryTime reads an RFC 3339 timestamp or a bare date. A bare date used as
// an upper bound covers the whole day.
func QueryTime(c echo.Context, name string, upper bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errs.Validationf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// QueryRange reads startDate and endDate.
func QueryRange(c echo.Context) (services.DateRange, error) {
	var r services.DateRange
	var err error
	if r.From, err = QueryTime(c, "startDate", false); err != nil {
		return r, err
	}
	if r.To, err = QueryTime(c, "endDate", true); err != nil {
		return r, err
	}
	return r, nil
}

func QueryFloat(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errs.Validationf("%s must be a number", name)
	}
	return &v, nil
}

func QueryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errs.Validationf("%s must be true or false", name)
	}
	return &v, nil
}

// Bulk requests select records by id and carry the patch applied to each.
type BulkLeadRequest struct {
	LeadIDs []string           `json:"leadIds" validate:"required,min=1,dive,required"`
	Updates services.LeadPatch `json:"updates"`
}

type BulkCampaignRequest struct {
	CampaignIDs []string               `json:"campaignIds" validate:"required,min=1,dive,required"`
	Updates     services.CampaignPatch `json:"updates"`
}

type BulkUserRequest struct {
	UserIDs []string                  `json:"userIds" validate:"required,min=1,dive,required"`
	Updates services.AccountBulkPatch `json:"updates"`
}
