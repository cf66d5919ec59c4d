// Package geocode resolves free-form street addresses to WGS84 coordinates
// through the ArcGIS World Geocoding findAddressCandidates endpoint. Only the
// best-scoring candidate is returned; the caller feeds it straight into the
// coordinate resolver.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/observability"
)

// Lookup outcome errors.
var (
	ErrEmptyAddress = errors.New("address is required")
	ErrNoMatch      = errors.New("no geocoding match for address")
)

// Match is the best candidate for an address.
type Match struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Score   float64 `json:"score"`
}

// Geocoder calls the remote geocoding service.
type Geocoder struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
	metrics    *observability.Metrics
}

// New creates a Geocoder for the given findAddressCandidates URL.
func New(baseURL string, timeout time.Duration, log *logger.Logger, metrics *observability.Metrics) *Geocoder {
	return &Geocoder{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		metrics: metrics,
	}
}

// Lookup geocodes one address and returns the single best candidate.
func (g *Geocoder) Lookup(ctx context.Context, address string) (Match, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Match{}, ErrEmptyAddress
	}

	params := url.Values{
		"SingleLine":   {address},
		"f":            {"json"},
		"outFields":    {"Match_addr,Addr_type"},
		"maxLocations": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Match{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if g.metrics != nil {
		g.metrics.UpstreamDuration.WithLabelValues("geocoder").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return Match{}, fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Match{}, fmt.Errorf("geocoder error: status %d: %s", resp.StatusCode, body)
	}

	var payload candidatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Match{}, fmt.Errorf("decode geocoder response: %w", err)
	}

	if len(payload.Candidates) == 0 {
		return Match{}, fmt.Errorf("%w: %s", ErrNoMatch, address)
	}

	best := payload.Candidates[0]
	g.log.Debug("address geocoded", map[string]interface{}{
		"address": best.Address,
		"score":   best.Score,
	})

	return Match{
		Address: best.Address,
		Lat:     best.Location.Y,
		Lon:     best.Location.X,
		Score:   best.Score,
	}, nil
}

type candidatesResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Address  string   `json:"address"`
	Score    float64  `json:"score"`
	Location location `json:"location"`
}

type location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
