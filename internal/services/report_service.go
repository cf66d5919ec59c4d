package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/parcelforge/api/internal/arcgis"
	"github.com/parcelforge/api/internal/enrich"
	"github.com/parcelforge/api/internal/logger"
)

// County reference portals linked from every report.
const (
	picURLFormat        = "https://property.clark.wa.gov/?parcel=%s"
	mapsOnlineURLFormat = "https://gis.clark.wa.gov/mapsonline/?parcel=%s"
	recordedDocsFormat  = "https://e-docs.clark.wa.gov/LandmarkWeb/?query=%s"
)

// defaultZIP is used when the feature carries no ZIP code.
const defaultZIP = "98607"

// Report is the full property report for one parcel.
type Report struct {
	ParcelID     string              `json:"parcel_id"`
	Project      ReportProject       `json:"project"`
	Metrics      ReportMetrics       `json:"metrics"`
	Demographics enrich.Demographics `json:"demographics"`
	Location     ReportLocation      `json:"location"`
	Links        map[string]string   `json:"links"`
}

// ReportProject identifies the property.
type ReportProject struct {
	Name string `json:"name"`
	City string `json:"city"`
	ZIP  string `json:"zip"`
}

// ReportMetrics carries the sale and size figures.
type ReportMetrics struct {
	SalePrice    float64 `json:"price"`
	BuildingSqFt float64 `json:"sqft"`
	PricePerSqFt float64 `json:"price_sqft"`
	LotAcres     float64 `json:"lot_size"`
	YearBuilt    int     `json:"year_built"`
}

// ReportLocation is a representative WGS84 point for the parcel.
type ReportLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParcelResolver is the identifier resolution dependency.
type ParcelResolver interface {
	ByIdentifier(ctx context.Context, raw string) (arcgis.Feature, error)
}

// DemographicsProvider supplies area context by ZIP code.
type DemographicsProvider interface {
	ByZIP(ctx context.Context, zip string) enrich.Demographics
}

// ReportService assembles property reports.
type ReportService interface {
	// BuildReport resolves the parcel in the county feature source and
	// combines its attributes with demographics and reference links.
	// Resolution errors pass through unchanged.
	BuildReport(ctx context.Context, parcelID string) (*Report, error)

	// Links returns just the county portal links for a parcel.
	Links(parcelID string) map[string]string
}

type reportService struct {
	resolver ParcelResolver
	demo     DemographicsProvider
	log      *logger.Logger
}

// NewReportService creates a new instance of ReportService.
func NewReportService(resolver ParcelResolver, demo DemographicsProvider, log *logger.Logger) ReportService {
	return &reportService{
		resolver: resolver,
		demo:     demo,
		log:      log,
	}
}

func (s *reportService) BuildReport(ctx context.Context, parcelID string) (*Report, error) {
	feature, err := s.resolver.ByIdentifier(ctx, parcelID)
	if err != nil {
		return nil, err
	}

	attrs := feature.Attributes

	name := attrString(attrs, "SiteAddress")
	if name == "" {
		name = attrString(attrs, "SitusAddress")
	}
	if name == "" {
		name = "Unknown"
	}

	city := attrString(attrs, "City")
	if city == "" {
		city = "Vancouver"
	}

	// ZIP+4 suffixes confuse the statistics service.
	zip := strings.SplitN(attrString(attrs, "ZipCode"), "-", 2)[0]
	if zip == "" {
		zip = defaultZIP
	}

	price := attrFloat(attrs, "SalePrice")
	sqft := attrFloat(attrs, "BldgSqFt")
	var pricePerSqFt float64
	if sqft > 0 {
		pricePerSqFt = math.Round(price / sqft)
	}

	report := &Report{
		ParcelID: parcelID,
		Project: ReportProject{
			Name: name,
			City: city,
			ZIP:  zip,
		},
		Metrics: ReportMetrics{
			SalePrice:    price,
			BuildingSqFt: sqft,
			PricePerSqFt: pricePerSqFt,
			LotAcres:     attrFloat(attrs, "LandAcres"),
			YearBuilt:    int(attrFloat(attrs, "YearBuilt")),
		},
		Demographics: s.demo.ByZIP(ctx, zip),
		Links:        s.Links(parcelID),
	}

	if feature.Geometry != nil {
		center := feature.Geometry.Bound().Center()
		report.Location = ReportLocation{Lat: center[1], Lon: center[0]}
	}

	s.log.Info("Report assembled", map[string]interface{}{
		"parcel_id": parcelID,
		"zip":       zip,
	})

	return report, nil
}

func (s *reportService) Links(parcelID string) map[string]string {
	return map[string]string{
		"Property Information Center (PIC)": fmt.Sprintf(picURLFormat, parcelID),
		"MapsOnline":                        fmt.Sprintf(mapsOnlineURLFormat, parcelID),
		"Recorded Documents (Auditor)":      fmt.Sprintf(recordedDocsFormat, parcelID),
	}
}

// attrString reads a string attribute, tolerating absent keys.
func attrString(attrs map[string]interface{}, key string) string {
	if v, ok := attrs[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// attrFloat reads a numeric attribute; esri JSON numbers decode as float64.
func attrFloat(attrs map[string]interface{}, key string) float64 {
	if v, ok := attrs[key].(float64); ok {
		return v
	}
	return 0
}
