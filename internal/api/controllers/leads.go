package controllers

import (
	"time"

	"mdmc/internal/services"

	"github.com/labstack/echo/v4"
)

type LeadController struct {
	leads *services.LeadService
}

func NewLeadController(leads *services.LeadService) *LeadController {
	return &LeadController{leads: leads}
}

type assignRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required"`
}

type followUpRequest struct {
	Date   time.Time `json:"date" validate:"required"`
	Reason string    `json:"reason" validate:"omitempty,max=200"`
}

type convertRequest struct {
	ConversionValue float64 `json:"conversionValue" validate:"min=0"`
}

type lostRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// LeadFilter reads the list/export filters from the query string.
func LeadFilter(c echo.Context) (services.LeadFilter, error) {
	var f services.LeadFilter
	if err := BindQuery(c, &f); err != nil {
		return f, err
	}
	r, err := QueryRange(c)
	if err != nil {
		return f, err
	}
	f.DateRange = r
	return f, nil
}

func (h *LeadController) List(c echo.Context) error {
	var p services.LeadListParams
	if err := BindQuery(c, &p.PageParams); err != nil {
		return err
	}
	f, err := LeadFilter(c)
	if err != nil {
		return err
	}
	p.LeadFilter = f

	leads, page, err := h.leads.List(c.Request().Context(), p, Actor(c))
	if err != nil {
		return err
	}
	return Paged(c, leads, page)
}

func (h *LeadController) Stats(c echo.Context) error {
	stats, err := h.leads.Stats(c.Request().Context(), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, stats)
}

func (h *LeadController) Overdue(c echo.Context) error {
	leads, err := h.leads.Overdue(c.Request().Context(), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, leads)
}

func (h *LeadController) Get(c echo.Context) error {
	lead, err := h.leads.Get(c.Request().Context(), c.Param("id"), Actor(c))
	if err != nil {
		return err
	}
	return OK(c, lead)
}

func (h *LeadController) Create(c echo.Context) error {
	var in services.LeadInput
	if err := Bind(c, &in); err != nil {
		return err
	}
	lead, err := h.leads.Create(c.Request().Context(), in, Actor(c))
	if err != nil {
		return err
	}
	return Created(c, lead, "Lead created successfully")
}

func (h *LeadController) Update(c echo.Context) error {
	var p services.LeadPatch
	if err := Bind(c, &p); err != nil {
		return err
	}
	lead, err := h.leads.Update(c.Request().Context(), c.Param("id"), p, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, lead, "Lead updated successfully")
}

func (h *LeadController) Delete(c echo.Context) error {
	if err := h.leads.Delete(c.Request().Context(), c.Param("id"), Actor(c)); err != nil {
		return err
	}
	return Message(c, "Lead deleted successfully")
}

func (h *LeadController) AddInteraction(c echo.Context) error {
	var in services.InteractionInput
	if err := Bind(c, &in); err != nil {
		return err
	}
	lead, err := h.leads.AddInteraction(c.Request().Context(), c.Param("id"), in, Actor(c))
	if err != nil {
		return err
	}
	return Created(c, lead, "Interaction added successfully")
}

func (h *LeadController) Assign(c echo.Context) error {
	var req assignRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	lead, err := h.leads.Reassign(c.Request().Context(), c.Param("id"), req.AssignedTo, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, lead, "Lead assigned successfully")
}

func (h *LeadController) FollowUp(c echo.Context) error {
	var req followUpRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	lead, err := h.leads.SetFollowUp(c.Request().Context(), c.Param("id"), req.Date, req.Reason, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, lead, "Follow-up scheduled successfully")
}

func (h *LeadController) Convert(c echo.Context) error {
	var req convertRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	lead, err := h.leads.Convert(c.Request().Context(), c.Param("id"), req.ConversionValue, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, lead, "Lead converted successfully")
}

func (h *LeadController) Lost(c echo.Context) error {
	var req lostRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	lead, err := h.leads.MarkLost(c.Request().Context(), c.Param("id"), req.Reason, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, lead, "Lead marked as lost")
}

func (h *LeadController) BulkUpdate(c echo.Context) error {
	var req BulkLeadRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	leads, err := h.leads.BulkUpdate(c.Request().Context(), req.LeadIDs, req.Updates, Actor(c))
	if err != nil {
		return err
	}
	return WithMessage(c, leads, "Leads updated successfully")
}
