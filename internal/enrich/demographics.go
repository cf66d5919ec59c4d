// Package enrich augments parcel reports with neighborhood context from
// external statistics services. Enrichment is decorative: when the upstream
// is down or a ZIP code is unknown, a representative regional fallback is
// served instead of an error, so a report never fails over demographics.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/observability"
)

// Regional medians used when the statistics service cannot answer.
const (
	fallbackMedianIncome  = 72000.0
	fallbackMedianAge     = 39.0
	fallbackAffordability = 115.5

	defaultMedianIncome = 75000.0
	defaultMedianAge    = 38.0

	// Denominator for the affordability index: index 100 means the median
	// income covers the regional benchmark housing cost.
	affordabilityBase = 2820.0
)

// Demographics describes the area around a parcel.
type Demographics struct {
	MedianIncome       float64 `json:"median_income"`
	MedianAge          float64 `json:"median_age"`
	AffordabilityIndex float64 `json:"affordability_index"`
}

// Client fetches demographic statistics by ZIP code.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
	metrics    *observability.Metrics
}

// New creates a demographics client for the statistics series endpoint.
func New(baseURL string, timeout time.Duration, log *logger.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		metrics: metrics,
	}
}

// ByZIP returns demographics for a ZIP code. It never fails: any upstream
// problem is logged and the regional fallback is returned.
func (c *Client) ByZIP(ctx context.Context, zip string) Demographics {
	demo, err := c.fetch(ctx, zip)
	if err != nil {
		c.log.Warn("demographics lookup failed, using fallback", map[string]interface{}{
			"zip":   zip,
			"error": err.Error(),
		})
		return Demographics{
			MedianIncome:       fallbackMedianIncome,
			MedianAge:          fallbackMedianAge,
			AffordabilityIndex: fallbackAffordability,
		}
	}
	return demo
}

func (c *Client) fetch(ctx context.Context, zip string) (Demographics, error) {
	place := "zip/" + zip
	body, err := json.Marshal(map[string]interface{}{
		"places":    []string{place},
		"stat_vars": []string{"Median_Income_Person", "Median_Age_Person"},
	})
	if err != nil {
		return Demographics{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Demographics{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues("demographics").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return Demographics{}, fmt.Errorf("statistics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Demographics{}, fmt.Errorf("statistics service status %d", resp.StatusCode)
	}

	var payload struct {
		Data map[string]map[string]struct {
			Val float64 `json:"val"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Demographics{}, fmt.Errorf("decode statistics response: %w", err)
	}

	series, ok := payload.Data[place]
	if !ok {
		return Demographics{}, fmt.Errorf("no data for %s", place)
	}

	income := defaultMedianIncome
	if v, ok := series["Median_Income_Person"]; ok {
		income = v.Val
	}
	age := defaultMedianAge
	if v, ok := series["Median_Age_Person"]; ok {
		age = v.Val
	}

	return Demographics{
		MedianIncome:       income,
		MedianAge:          age,
		AffordabilityIndex: round2(income / affordabilityBase * 100),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
