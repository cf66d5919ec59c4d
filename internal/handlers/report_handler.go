package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/parcelforge/api/internal/errors"
	"github.com/parcelforge/api/internal/resolver"
	"github.com/parcelforge/api/internal/services"
)

// ReportHandler serves property reports and county portal links.
type ReportHandler struct {
	service services.ReportService
}

// NewReportHandler creates a new ReportHandler instance.
func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{
		service: service,
	}
}

// Report handles GET /api/v1/parcels/:id/report.
func (h *ReportHandler) Report(c *gin.Context) {
	parcelID := c.Param("id")

	report, err := h.service.BuildReport(c.Request.Context(), parcelID)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrEmptyIdentifier):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, resolver.ErrNotFound):
			apierrors.NotFound(c, "Parcel data not found")
		default:
			apierrors.UpstreamError(c, "Failed to assemble report", err)
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// Links handles GET /api/v1/parcels/:id/links.
func (h *ReportHandler) Links(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Links(c.Param("id")))
}
