// Package arcgis is a client for ArcGIS MapServer layer query endpoints, the
// remote feature source used by the resolver. It supports attribute filter
// queries and point intersection queries and converts esri JSON geometry to
// orb. The server may be slow or unavailable; every call carries the
// configured timeout.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/observability"
	"github.com/paulmach/orb"
)

// Feature is one attribute row plus geometry as returned by the map server.
type Feature struct {
	Attributes map[string]interface{}
	Geometry   orb.Geometry
}

// Client queries a single MapServer layer.
type Client struct {
	queryURL   string
	httpClient *http.Client
	log        *logger.Logger
	metrics    *observability.Metrics
}

// NewClient creates a client for the given layer query URL
// (.../MapServer/<layer>/query).
func NewClient(queryURL string, timeout time.Duration, log *logger.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		queryURL: queryURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		metrics: metrics,
	}
}

// QueryWhere runs an attribute filter query ("where" clause) against the
// layer and returns all matching features.
func (c *Client) QueryWhere(ctx context.Context, where string) ([]Feature, error) {
	params := url.Values{
		"where":          {where},
		"outFields":      {"*"},
		"f":              {"json"},
		"returnGeometry": {"true"},
	}
	return c.query(ctx, params)
}

// QueryPoint runs a spatial intersects query with a WGS84 point.
// The esri geometry parameter takes (lon, lat) order.
func (c *Client) QueryPoint(ctx context.Context, lat, lon float64) ([]Feature, error) {
	params := url.Values{
		"geometry":       {fmt.Sprintf("%f,%f", lon, lat)},
		"geometryType":   {"esriGeometryPoint"},
		"inSR":           {"4326"},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outFields":      {"*"},
		"f":              {"json"},
		"returnGeometry": {"true"},
	}
	return c.query(ctx, params)
}

func (c *Client) query(ctx context.Context, params url.Values) ([]Feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues("taxlots").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("feature source request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feature source error: status %d: %s", resp.StatusCode, body)
	}

	var payload queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode feature source response: %w", err)
	}

	// ArcGIS reports query errors inside a 200 response.
	if payload.Error != nil {
		return nil, fmt.Errorf("feature source error %d: %s", payload.Error.Code, payload.Error.Message)
	}

	features := make([]Feature, 0, len(payload.Features))
	for _, f := range payload.Features {
		features = append(features, Feature{
			Attributes: f.Attributes,
			Geometry:   f.Geometry.toOrb(),
		})
	}

	c.log.Debug("feature source query completed", map[string]interface{}{
		"count": len(features),
	})

	return features, nil
}

// Esri JSON wire types.

type queryResponse struct {
	Features []esriFeature `json:"features"`
	Error    *esriError    `json:"error"`
}

type esriError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type esriFeature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   esriGeometry           `json:"geometry"`
}

// esriGeometry covers the two shapes the taxlot layer returns: polygon rings
// and plain points.
type esriGeometry struct {
	Rings [][][2]float64 `json:"rings"`
	X     *float64       `json:"x"`
	Y     *float64       `json:"y"`
}

func (g esriGeometry) toOrb() orb.Geometry {
	if len(g.Rings) > 0 {
		poly := make(orb.Polygon, 0, len(g.Rings))
		for _, ring := range g.Rings {
			r := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				r = append(r, orb.Point{pt[0], pt[1]})
			}
			poly = append(poly, r)
		}
		return poly
	}
	if g.X != nil && g.Y != nil {
		return orb.Point{*g.X, *g.Y}
	}
	return nil
}
