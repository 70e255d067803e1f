package handlers

import (
	"context"

	"mdmc/internal/models"
	"mdmc/internal/services"
)

// LeadExporter renders the caller's lead set as a file.
type LeadExporter interface {
	Export(ctx context.Context, f services.LeadFilter, format services.ExportFormat, actor *models.Account) (*services.Export, error)
}
