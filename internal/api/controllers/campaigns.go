package controllers

import (
	"mdmc/internal/models"
	"mdmc/internal/services"

	"github.com/labstack/echo/v4"
)

type CampaignController struct {
	campaigns *services.CampaignService
}

func NewCampaignController(campaigns *services.CampaignService) *CampaignController {
	return &CampaignController{campaigns: campaigns}
}

type duplicateRequest struct {
	Name string `json:"name" validate:"omitempty,max=100"`
}

func (h *CampaignController) List(c echo.Context) error {
	var p services.CampaignListParams
	if err := BindQuery(c, &p); err != nil {
		return err
	}
	var err error
	if p.MinBudget, err = QueryFloat(c, "minBudget"); err != nil {
		return err
	}
	if p.MaxBudget, err = QueryFloat(c, "maxBudget"); err != nil {
		return err
	}
	if p.DateRange, err = QueryRange(c); err != nil {
		return err
	}

	campaigns, page, err := h.campaigns.List(c.Request().Context(), p, Actor(c))
	if err != nil {
		return err
	}
	return Paged(c, campaigns, page)
}

func (h *CampaignController) Stats(c echo.Context) error {
	stats, err := h.campaigns.Stats(c.Request().Context(), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, stats)
}

func (h *CampaignController) Get(c echo.Context) error {
	campaign, err := h.campaigns.Get(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, campaign)
}

func (h *CampaignController) Performance(c echo.Context) error {
	r, err := QueryRange(c)
	if err != nil {
		return err
	}
	perf, err := h.campaigns.Performance(c.Request().Context(), c.Param("id"), r, Actor(c))
	if err != nil {
		return err
	}
	return OK(c, perf)
}

func (h *CampaignController) Create(c echo.Context) error {
	var in services.CampaignInput
	if err := Bind(c, &in); err != nil {
		return err
	}
	campaign, err := h.campaigns.Create(c.Request().Context(), in, Actor(c))
	if err != nil {
		return err
	}
	return Created(c, campaign, "Campaign created successfully")
}

func (h *CampaignController) Update(c echo.Context) error {
	var p services.CampaignPatch
	if err := Bind(c, &p); err != nil {
		return err
	}
	campaign, err := h.campaigns.Update(c.Request().Context(), c.Param("id"), p, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, campaign, "Campaign updated successfully")
}

// Delete archives the campaign.
func (h *CampaignController) Delete(c echo.Context) error {
	if err := h.campaigns.Archive(c.Request().Context(), c.Param("id"), Actor(c)); err != nil {
		return err
	}
	return Message(c, "Campaign archived successfully")
}

func (h *CampaignController) Duplicate(c echo.Context) error {
	var req duplicateRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	campaign, err := h.campaigns.Duplicate(c.Request().Context(), c.Param("id"), req.Name, Actor(c))
	if err != nil {
		return err
	}
	return Created(c, campaign, "Campaign duplicated successfully")
}

func (h *CampaignController) UpdateMetrics(c echo.Context) error {
	var p models.MetricsPatch
	if err := Bind(c, &p); err != nil {
		return err
	}
	campaign, err := h.campaigns.UpdateMetrics(c.Request().Context(), c.Param("id"), p, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, campaign, "Metrics updated successfully")
}

func (h *CampaignController) AddDailyMetric(c echo.Context) error {
	var dm models.DailyMetric
	if err := Bind(c, &dm); err != nil {
		return err
	}
	campaign, err := h.campaigns.AddDailyMetric(c.Request().Context(), c.Param("id"), dm, Actor(c))
	if err != nil {
		return err
	}
	return Created(c, campaign, "Daily metrics recorded")
}

func (h *CampaignController) AddOptimization(c echo.Context) error {
	var in services.OptimizationInput
	if err := Bind(c, &in); err != nil {
		return err
	}
	campaign, err := h.campaigns.AddOptimization(c.Request().Context(), c.Param("id"), in, Actor(c))
	if err != nil {
		return err
	}
	return Created(c, campaign, "Optimization recorded")
}

func (h *CampaignController) Pause(c echo.Context) error {
	campaign, err := h.campaigns.Pause(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, campaign, "Campaign paused")
}

func (h *CampaignController) Resume(c echo.Context) error {
	campaign, err := h.campaigns.Resume(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, campaign, "Campaign resumed")
}

func (h *CampaignController) Complete(c echo.Context) error {
	campaign, err := h.campaigns.Complete(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, campaign, "Campaign completed")
}

func (h *CampaignController) BulkUpdate(c echo.Context) error {
	var req BulkCampaignRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	campaigns, err := h.campaigns.BulkUpdate(c.Request().Context(), req.CampaignIDs, req.Updates, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, campaigns, "Campaigns updated successfully")
}
