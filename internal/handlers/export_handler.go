package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"mdmc/internal/api/controllers"
	"mdmc/internal/services"
	"mdmc/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

type ExportHandler struct {
	leads LeadExporter
	log   *logger.Logger
}

func NewExportHandler(leads LeadExporter) *ExportHandler {
	return &ExportHandler{leads: leads, log: logger.New("export_handler")}
}

// ExportLeads downloads the filtered lead set
// @Summary Export leads
// @Description CSV or JSON of the leads the caller can see. When object storage is configured the CSV is uploaded and a time-limited link is returned instead.
// @Produce text/csv,application/json
// @Security BearerAuth
// @Param format query string false "csv or json" default(csv)
// @Success 200 {file} file "Export file"
// @Failure 400 {object} map[string]interface{} "Unknown format"
// @Router /api/v1/leads/export [get]
func (h *ExportHandler) ExportLeads(c echo.Context) error {
	format := services.ExportFormat(strings.ToLower(c.QueryParam("format")))
	if format == "" {
		format = services.ExportCSV
	}
	f, err := controllers.LeadFilter(c)
	if err != nil {
		return err
	}

	out, err := h.leads.Export(c.Request().Context(), f, format, controllers.Actor(c))
	if err != nil {
		return err
	}
	if out.URL != "" {
		return controllers.OK(c, out)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", out.Filename))
	h.log.Info("Exported %d leads as %s", out.Count, out.Format)
	return c.Blob(http.StatusOK, out.ContentType, out.Data)
}
