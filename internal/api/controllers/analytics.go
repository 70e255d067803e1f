package controllers

import (
	"mdmc/internal/services"
	"mdmc/internal/store"

	"github.com/labstack/echo/v4"
)

type AnalyticsController struct {
	reports *services.ReportService
}

func NewAnalyticsController(reports *services.ReportService) *AnalyticsController {
	return &AnalyticsController{reports: reports}
}

func reportParams(c echo.Context) (services.ReportParams, error) {
	r, err := QueryRange(c)
	if err != nil {
		return services.ReportParams{}, err
	}
	return services.ReportParams{DateRange: r, GroupBy: store.Granularity(c.QueryParam("groupBy"))}, nil
}

func (h *AnalyticsController) Dashboard(c echo.Context) error {
	p, err := reportParams(c)
	if err != nil {
		return err
	}
	d, err := h.reports.Dashboard(c.Request().Context(), p, Actor(c))
	if err != nil {
		return err
	}
	return OK(c, d)
}

func (h *AnalyticsController) Leads(c echo.Context) error {
	p, err := reportParams(c)
	if err != nil {
		return err
	}
	var f services.LeadFilters
	if err := BindQuery(c, &f); err != nil {
		return err
	}
	a, err := h.reports.LeadAnalytics(c.Request().Context(), p, f, Actor(c))
	if err != nil {
		return err
	}
	return OK(c, a)
}

func (h *AnalyticsController) Campaigns(c echo.Context) error {
	p, err := reportParams(c)
	if err != nil {
		return err
	}
	a, err := h.reports.CampaignAnalytics(c.Request().Context(), p, Actor(c))
	if err != nil {
		return err
	}
	return OK(c, a)
}

func (h *AnalyticsController) Revenue(c echo.Context) error {
	p, err := reportParams(c)
	if err != nil {
		return err
	}
	r, err := h.reports.Revenue(c.Request().Context(), p, Actor(c))
	if err != nil {
		return err
	}
	return OK(c, r)
}

func (h *AnalyticsController) Comparison(c echo.Context) error {
	p := services.ComparisonParams{Metric: c.QueryParam("metric")}
	var err error
	if p.Period1Start, err = QueryTime(c, "period1Start", false); err != nil {
		return err
	}
	if p.Period1End, err = QueryTime(c, "period1End", true); err != nil {
		return err
	}
	if p.Period2Start, err = QueryTime(c, "period2Start", false); err != nil {
		return err
	}
	if p.Period2End, err = QueryTime(c, "period2End", true); err != nil {
		return err
	}
	cmp, err := h.reports.Compare(c.Request().Context(), p, Actor(c))
	if err != nil {
		return err
	}
	return OK(c, cmp)
}
