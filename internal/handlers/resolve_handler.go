package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parcelforge/api/internal/arcgis"
	apierrors "github.com/parcelforge/api/internal/errors"
	"github.com/parcelforge/api/internal/geocode"
	"github.com/parcelforge/api/internal/resolver"
	"github.com/paulmach/orb/geojson"
)

// FeatureResolver is the resolution dependency; implemented by
// resolver.Resolver.
type FeatureResolver interface {
	ByIdentifier(ctx context.Context, raw string) (arcgis.Feature, error)
	ByCoordinate(ctx context.Context, latStr, lonStr string) (arcgis.Feature, error)
}

// AddressGeocoder is the geocoding dependency; implemented by
// geocode.Geocoder.
type AddressGeocoder interface {
	Lookup(ctx context.Context, address string) (geocode.Match, error)
}

// ResolveHandler handles identifier/coordinate resolution and geocoding.
type ResolveHandler struct {
	resolver FeatureResolver
	geocoder AddressGeocoder
}

// NewResolveHandler creates a new ResolveHandler instance.
func NewResolveHandler(featureResolver FeatureResolver, geocoder AddressGeocoder) *ResolveHandler {
	return &ResolveHandler{
		resolver: featureResolver,
		geocoder: geocoder,
	}
}

// ResolveResponse is the resolved feature: raw provider attributes plus
// geometry as GeoJSON.
type ResolveResponse struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *geojson.Geometry      `json:"geometry,omitempty"`
}

// Resolve handles GET /api/v1/parcels/resolve.
// Accepts either ?parcel=<identifier> or ?lat=<lat>&lon=<lon>.
func (h *ResolveHandler) Resolve(c *gin.Context) {
	parcel := c.Query("parcel")
	lat, lon := c.Query("lat"), c.Query("lon")

	var feature arcgis.Feature
	var err error
	switch {
	case parcel != "":
		feature, err = h.resolver.ByIdentifier(c.Request.Context(), parcel)
	case lat != "" && lon != "":
		feature, err = h.resolver.ByCoordinate(c.Request.Context(), lat, lon)
	default:
		apierrors.BadRequest(c, "Provide parcel OR lat/lon", nil)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrEmptyIdentifier), errors.Is(err, resolver.ErrInvalidCoordinate):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, resolver.ErrNotFound):
			apierrors.NotFound(c, "Parcel not found in taxlots")
		case errors.Is(err, resolver.ErrNoParcelAtLocation):
			apierrors.NotFound(c, "No parcel found at this location")
		default:
			apierrors.UpstreamError(c, "Feature source unavailable", err)
		}
		return
	}

	response := ResolveResponse{Attributes: feature.Attributes}
	if feature.Geometry != nil {
		response.Geometry = geojson.NewGeometry(feature.Geometry)
	}

	c.JSON(http.StatusOK, response)
}

// GeocodeRequest represents the query parameters for the geocode endpoint.
type GeocodeRequest struct {
	Query string `form:"q" binding:"required"`
}

// Geocode handles GET /api/v1/geocode?q=address.
func (h *ResolveHandler) Geocode(c *gin.Context) {
	var req GeocodeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "address required", nil)
		return
	}

	match, err := h.geocoder.Lookup(c.Request.Context(), req.Query)
	if err != nil {
		switch {
		case errors.Is(err, geocode.ErrEmptyAddress):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, geocode.ErrNoMatch):
			apierrors.NotFound(c, "No match for address")
		default:
			apierrors.UpstreamError(c, "Geocoding service unavailable", err)
		}
		return
	}

	c.JSON(http.StatusOK, match)
}
