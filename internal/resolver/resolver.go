// Package resolver locates a parcel feature despite inconsistent identifier
// field names and storage types across county datasets. Instead of ad hoc
// exception swallowing, the "try several field names and types" reality is
// modeled as an explicit ordered candidate list, so behavior is deterministic
// and testable.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/parcelforge/api/internal/arcgis"
	"github.com/parcelforge/api/internal/cache"
	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/observability"
)

// Resolution outcome errors. Malformed input is distinct from not-found.
var (
	ErrEmptyIdentifier    = errors.New("identifier is required")
	ErrNotFound           = errors.New("parcel identifier not found")
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
	ErrNoParcelAtLocation = errors.New("no parcel at this location")
)

// Identifier field names as they appear across datasets and providers.
// PrimaryIDField is what the taxlots layer usually uses; the rest are known
// aliases for the same logical identifier.
const (
	PrimaryIDField   = "SERIAL_NUM"
	SecondaryIDField = "PropertyID"
)

var aliasIDFields = []string{SecondaryIDField, "PARCELID", "PAN", "prop_id"}

// Format is how a candidate renders the identifier in the filter expression:
// some datasets store it as a number, others as a string.
type Format int

const (
	FormatNumber Format = iota
	FormatString
)

// Candidate is one (field, format) guess tried against the feature source.
type Candidate struct {
	Field  string
	Format Format
}

// Where renders the candidate as an attribute filter expression.
func (c Candidate) Where(value string) string {
	if c.Format == FormatNumber {
		return fmt.Sprintf("%s = %s", c.Field, value)
	}
	return fmt.Sprintf("%s = '%s'", c.Field, strings.ReplaceAll(value, "'", "''"))
}

// Candidates returns the full ordered list: the primary field as a numeric
// literal, then as a quoted string, then every alias field in both forms.
// Order is fixed; the first candidate returning a feature wins.
func Candidates() []Candidate {
	fields := append([]string{PrimaryIDField}, aliasIDFields...)
	out := make([]Candidate, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, Candidate{Field: f, Format: FormatNumber})
		out = append(out, Candidate{Field: f, Format: FormatString})
	}
	return out
}

// FeatureSource is the remote or local feature store the resolver queries.
// Implemented by the arcgis client.
type FeatureSource interface {
	QueryWhere(ctx context.Context, where string) ([]arcgis.Feature, error)
	QueryPoint(ctx context.Context, lat, lon float64) ([]arcgis.Feature, error)
}

// Resolver finds a parcel feature by fuzzy identifier or by coordinate.
// Requests are independent; the resolver holds no mutable state, so
// concurrent use needs no locking.
type Resolver struct {
	source  FeatureSource
	cache   *cache.ResolveCache
	log     *logger.Logger
	metrics *observability.Metrics
}

// New creates a Resolver. cache may be nil (caching disabled).
func New(source FeatureSource, resolveCache *cache.ResolveCache, log *logger.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		source:  source,
		cache:   resolveCache,
		log:     log,
		metrics: metrics,
	}
}

// ByIdentifier resolves a user-supplied identifier of unknown format. Each
// candidate is tried exactly once in order; an upstream error counts as an
// empty result for that candidate. Exhaustion is ErrNotFound.
func (r *Resolver) ByIdentifier(ctx context.Context, raw string) (arcgis.Feature, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return arcgis.Feature{}, ErrEmptyIdentifier
	}

	if feature, ok := r.cache.Get(ctx, raw); ok {
		r.countResolve("identifier", "hit")
		return feature, nil
	}

	for i, candidate := range Candidates() {
		where := candidate.Where(raw)

		features, err := r.source.QueryWhere(ctx, where)
		if err != nil {
			// Resilience over strictness: a failing candidate is an empty
			// candidate. The final not-found still surfaces below.
			r.log.Warn("resolver candidate failed", map[string]interface{}{
				"where": where,
				"error": err.Error(),
			})
			continue
		}
		if len(features) == 0 {
			continue
		}

		r.log.Info("parcel resolved", map[string]interface{}{
			"where":     where,
			"candidate": i + 1,
		})
		if r.metrics != nil {
			r.metrics.ResolveCandidates.Observe(float64(i + 1))
		}
		r.countResolve("identifier", "hit")
		r.cache.Put(ctx, raw, features[0])
		return features[0], nil
	}

	r.countResolve("identifier", "miss")
	return arcgis.Feature{}, fmt.Errorf("%w: %s", ErrNotFound, raw)
}

// ByCoordinate resolves the parcel at a point. Input arrives as raw strings;
// both must be well-formed decimal numbers. Exactly one spatial query is
// issued, and the winning feature's identifier is normalized so every result
// exposes the primary identifier field.
func (r *Resolver) ByCoordinate(ctx context.Context, latStr, lonStr string) (arcgis.Feature, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return arcgis.Feature{}, fmt.Errorf("%w: lat %q", ErrInvalidCoordinate, latStr)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return arcgis.Feature{}, fmt.Errorf("%w: lon %q", ErrInvalidCoordinate, lonStr)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return arcgis.Feature{}, fmt.Errorf("%w: (%f, %f) out of range", ErrInvalidCoordinate, lat, lon)
	}

	features, err := r.source.QueryPoint(ctx, lat, lon)
	if err != nil {
		r.log.Warn("coordinate query failed", map[string]interface{}{
			"lat":   lat,
			"lon":   lon,
			"error": err.Error(),
		})
		r.countResolve("coordinate", "error")
		return arcgis.Feature{}, fmt.Errorf("%w: (%f, %f)", ErrNoParcelAtLocation, lat, lon)
	}
	if len(features) == 0 {
		r.countResolve("coordinate", "miss")
		return arcgis.Feature{}, fmt.Errorf("%w: (%f, %f)", ErrNoParcelAtLocation, lat, lon)
	}

	feature := features[0]
	NormalizeIdentifier(&feature)
	r.countResolve("coordinate", "hit")
	return feature, nil
}

// NormalizeIdentifier copies the best available identifier into the primary
// field so callers see one consistent field regardless of upstream naming.
func NormalizeIdentifier(f *arcgis.Feature) {
	if f.Attributes == nil {
		return
	}
	if id := attributeString(f.Attributes, PrimaryIDField); id != "" {
		f.Attributes[PrimaryIDField] = id
		return
	}
	if id := attributeString(f.Attributes, SecondaryIDField); id != "" {
		f.Attributes[PrimaryIDField] = id
	}
}

// attributeString renders an attribute value as a clean identifier string.
// Upstream stores identifiers as numbers or strings depending on the layer.
func attributeString(attrs map[string]interface{}, field string) string {
	switch v := attrs[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func (r *Resolver) countResolve(mode, outcome string) {
	if r.metrics != nil {
		r.metrics.ResolveRequests.WithLabelValues(mode, outcome).Inc()
	}
}
