package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/parcelforge/api/internal/enrich"
	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/models"
	"github.com/parcelforge/api/internal/repository"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Area analysis limits
const (
	DefaultAnalyzeLimit = 500
	MaxAnalyzeLimit     = 2000
)

// Service-level errors
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrParcelNotFound     = errors.New("parcel not found")
	ErrInvalidPolygon     = errors.New("request body must be a GeoJSON Polygon or MultiPolygon")
	ErrInvalidLimit       = errors.New("limit out of range")
)

// AreaAnalysis is the aggregate view over every parcel intersecting a polygon.
type AreaAnalysis struct {
	TotalParcels int             `json:"total_parcels"`
	TotalAcreage float64         `json:"total_acreage"`
	TotalValue   float64         `json:"total_value"`
	AverageScore float64         `json:"average_score"`
	Summary      string          `json:"ai_summary"`
	Parcels      []models.Parcel `json:"parcels"`
}

// ParcelService defines the interface for parcel business logic operations.
type ParcelService interface {
	// GetParcelAtPoint retrieves the parcel that contains the given lat/lng point.
	// Returns ErrInvalidCoordinates if coordinates are out of valid range.
	// Returns ErrParcelNotFound if no parcel exists at the point.
	// Returns error for database failures.
	GetParcelAtPoint(ctx context.Context, lat, lng float64) (*models.Parcel, error)

	// AnalyzeArea retrieves every parcel intersecting the GeoJSON polygon, up
	// to limit (0 means DefaultAnalyzeLimit), and aggregates their values.
	// An area with no parcels is a valid empty analysis, not an error.
	AnalyzeArea(ctx context.Context, polygonGeoJSON []byte, limit int) (*AreaAnalysis, error)
}

// parcelService is the concrete implementation of ParcelService.
type parcelService struct {
	repo      repository.ParcelRepository
	narrative enrich.NarrativeProvider
	log       *logger.Logger
}

// NewParcelService creates a new instance of ParcelService.
func NewParcelService(repo repository.ParcelRepository, narrative enrich.NarrativeProvider, log *logger.Logger) ParcelService {
	return &parcelService{
		repo:      repo,
		narrative: narrative,
		log:       log,
	}
}

// GetParcelAtPoint retrieves the parcel containing the given point.
// It validates the coordinates, logs the query, and transforms repository
// responses into appropriate business-level errors.
func (s *parcelService) GetParcelAtPoint(ctx context.Context, lat, lng float64) (*models.Parcel, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		s.log.Warn("Invalid coordinates provided", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, err
	}

	s.log.Info("Querying parcel at point", map[string]interface{}{
		"lat": lat,
		"lng": lng,
	})

	parcel, err := s.repo.FindByPoint(ctx, lat, lng)
	if err != nil {
		s.log.Error("Failed to query parcel at point", err, map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, fmt.Errorf("failed to query parcel: %w", err)
	}

	// Repository returns nil, nil when no parcel found - transform to domain error
	if parcel == nil {
		s.log.Debug("No parcel found at point", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, ErrParcelNotFound
	}

	s.log.Info("Parcel found at point", map[string]interface{}{
		"lat":       lat,
		"lng":       lng,
		"parcel_id": parcel.ParcelID,
	})

	return parcel, nil
}

// AnalyzeArea validates the polygon, queries intersecting parcels, and
// aggregates acreage, value, and score across the results.
func (s *parcelService) AnalyzeArea(ctx context.Context, polygonGeoJSON []byte, limit int) (*AreaAnalysis, error) {
	if limit == 0 {
		limit = DefaultAnalyzeLimit
	}
	if limit < 0 || limit > MaxAnalyzeLimit {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrInvalidLimit, limit, MaxAnalyzeLimit)
	}

	geom, err := geojson.UnmarshalGeometry(polygonGeoJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	switch geom.Geometry().(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return nil, fmt.Errorf("%w: got %s", ErrInvalidPolygon, geom.Type)
	}

	s.log.Info("Analyzing area", map[string]interface{}{
		"limit": limit,
	})

	parcels, err := s.repo.IntersectPolygon(ctx, polygonGeoJSON, limit)
	if err != nil {
		s.log.Error("Failed to query intersecting parcels", err, nil)
		return nil, fmt.Errorf("failed to analyze area: %w", err)
	}

	analysis := &AreaAnalysis{
		TotalParcels: len(parcels),
		Parcels:      parcels,
	}
	for _, p := range parcels {
		if p.Acres != nil {
			analysis.TotalAcreage += *p.Acres
		}
		analysis.TotalValue += p.TotalValue
		analysis.AverageScore += p.InvestmentScore
	}
	if len(parcels) > 0 {
		analysis.AverageScore /= float64(len(parcels))
	}

	summary, err := s.narrative.Summarize(ctx, enrich.AreaStats{
		Parcels:      analysis.TotalParcels,
		TotalAcreage: analysis.TotalAcreage,
		TotalValue:   analysis.TotalValue,
		AverageScore: analysis.AverageScore,
	})
	if err != nil {
		// The narrative is garnish; serve the numbers without it.
		s.log.Warn("Narrative generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	analysis.Summary = summary

	s.log.Info("Area analysis complete", map[string]interface{}{
		"parcels":     analysis.TotalParcels,
		"total_value": analysis.TotalValue,
	})

	return analysis, nil
}

// validateCoordinates checks WGS84 range on both axes.
func validateCoordinates(lat, lng float64) error {
	if lat < MinLatitude || lat > MaxLatitude {
		return fmt.Errorf("%w: latitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLatitude, MaxLatitude, lat)
	}
	if lng < MinLongitude || lng > MaxLongitude {
		return fmt.Errorf("%w: longitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLongitude, MaxLongitude, lng)
	}
	return nil
}
