package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/parcelforge/api/internal/errors"
	"github.com/parcelforge/api/internal/middleware"
	"github.com/parcelforge/api/internal/models"
	"github.com/parcelforge/api/internal/services"
)

// maxAnalyzeBodyBytes bounds the polygon payload size.
const maxAnalyzeBodyBytes = 1 << 20

// ParcelHandler handles parcel-related HTTP requests.
type ParcelHandler struct {
	service services.ParcelService
}

// NewParcelHandler creates a new ParcelHandler instance.
func NewParcelHandler(service services.ParcelService) *ParcelHandler {
	return &ParcelHandler{
		service: service,
	}
}

// AtPointRequest represents the query parameters for the at-point endpoint.
type AtPointRequest struct {
	Lat float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// ParcelResponse represents the response for parcel endpoints.
type ParcelResponse struct {
	Parcel *ParcelData `json:"parcel"`
}

// ParcelData is the parcel DTO returned by the API.
type ParcelData struct {
	Geometry        map[string]interface{} `json:"geometry"`
	ParcelID        string                 `json:"parcel_id"`
	SiteAddress     string                 `json:"site_address,omitempty"`
	OwnerName       string                 `json:"owner_name,omitempty"`
	ZoningCode      string                 `json:"zoning_code,omitempty"`
	LandValue       *float64               `json:"land_value,omitempty"`
	BuildingValue   *float64               `json:"building_value,omitempty"`
	TotalValue      float64                `json:"total_value"`
	YearBuilt       *int                   `json:"year_built,omitempty"`
	Acres           *float64               `json:"acres,omitempty"`
	InvestmentScore float64                `json:"investment_score"`
}

// AtPoint handles GET /api/v1/parcels/at-point.
// It retrieves the parcel that contains the given lat/lng point.
func (h *ParcelHandler) AtPoint(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req AtPointRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	if log != nil {
		log.Info("Processing at-point request", map[string]interface{}{
			"lat": req.Lat,
			"lng": req.Lng,
		})
	}

	parcel, err := h.service.GetParcelAtPoint(c.Request.Context(), req.Lat, req.Lng)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrParcelNotFound) {
			apierrors.NotFound(c, "No property found at this location")
			return
		}
		apierrors.InternalServerError(c, "Failed to query parcel data", err)
		return
	}

	c.JSON(http.StatusOK, ParcelResponse{
		Parcel: mapParcelToDTO(parcel),
	})
}

// AnalyzeResponse represents the response for the analyze endpoint.
type AnalyzeResponse struct {
	TotalParcels int          `json:"total_parcels"`
	TotalAcreage float64      `json:"total_acreage"`
	TotalValue   float64      `json:"total_value"`
	AverageScore float64      `json:"average_score"`
	Summary      string       `json:"ai_summary"`
	Parcels      []ParcelData `json:"parcels"`
}

// Analyze handles POST /api/v1/parcels/analyze.
// The request body is a GeoJSON Polygon; an optional ?limit= caps results.
func (h *ParcelHandler) Analyze(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.BadRequest(c, "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAnalyzeBodyBytes))
	if err != nil || len(body) == 0 {
		apierrors.BadRequest(c, "Request body must be a GeoJSON polygon", nil)
		return
	}

	analysis, err := h.service.AnalyzeArea(c.Request.Context(), body, limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPolygon) || errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to analyze area", err)
		return
	}

	parcels := make([]ParcelData, 0, len(analysis.Parcels))
	for i := range analysis.Parcels {
		parcels = append(parcels, *mapParcelToDTO(&analysis.Parcels[i]))
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		TotalParcels: analysis.TotalParcels,
		TotalAcreage: analysis.TotalAcreage,
		TotalValue:   analysis.TotalValue,
		AverageScore: analysis.AverageScore,
		Summary:      analysis.Summary,
		Parcels:      parcels,
	})
}

// mapParcelToDTO converts a Parcel model to the API DTO, flattening optional
// string fields and rendering geometry as a GeoJSON map.
func mapParcelToDTO(parcel *models.Parcel) *ParcelData {
	if parcel == nil {
		return nil
	}

	dto := &ParcelData{
		ParcelID:        parcel.ParcelID,
		LandValue:       parcel.LandValue,
		BuildingValue:   parcel.BuildingValue,
		TotalValue:      parcel.TotalValue,
		YearBuilt:       parcel.YearBuilt,
		Acres:           parcel.Acres,
		InvestmentScore: parcel.InvestmentScore,
		Geometry:        parcel.Geometry.GeoJSONMap(),
	}

	if parcel.SiteAddress != nil {
		dto.SiteAddress = *parcel.SiteAddress
	}
	if parcel.OwnerName != nil {
		dto.OwnerName = *parcel.OwnerName
	}
	if parcel.ZoningCode != nil {
		dto.ZoningCode = *parcel.ZoningCode
	}

	return dto
}
