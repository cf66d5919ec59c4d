package services

import (
	"context"
	"testing"

	"github.com/parcelforge/api/internal/arcgis"
	"github.com/parcelforge/api/internal/enrich"
	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/resolver"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockResolver is a mock implementation of ParcelResolver for testing
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ByIdentifier(ctx context.Context, raw string) (arcgis.Feature, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(arcgis.Feature), args.Error(1)
}

// stubDemographics returns a fixed answer and records the requested ZIP.
type stubDemographics struct {
	gotZIP string
	answer enrich.Demographics
}

func (s *stubDemographics) ByZIP(_ context.Context, zip string) enrich.Demographics {
	s.gotZIP = zip
	return s.answer
}

func TestBuildReport_AssemblesAllSections(t *testing.T) {
	// Arrange
	mockResolver := new(MockResolver)
	demo := &stubDemographics{answer: enrich.Demographics{MedianIncome: 84600, MedianAge: 41, AffordabilityIndex: 3000}}
	service := NewReportService(mockResolver, demo, logger.New("test"))

	ctx := context.Background()
	feature := arcgis.Feature{
		Attributes: map[string]interface{}{
			"SiteAddress": "1300 FRANKLIN ST",
			"City":        "Vancouver",
			"ZipCode":     "98660-1234",
			"SalePrice":   float64(500000),
			"BldgSqFt":    float64(2000),
			"LandAcres":   float64(0.23),
			"YearBuilt":   float64(1987),
		},
		Geometry: orb.Polygon{{{-122.68, 45.62}, {-122.64, 45.62}, {-122.64, 45.66}, {-122.68, 45.62}}},
	}
	mockResolver.On("ByIdentifier", ctx, "986035637").Return(feature, nil)

	// Act
	report, err := service.BuildReport(ctx, "986035637")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "986035637", report.ParcelID)
	assert.Equal(t, "1300 FRANKLIN ST", report.Project.Name)
	assert.Equal(t, "98660", report.Project.ZIP, "ZIP+4 suffix stripped")
	assert.Equal(t, "98660", demo.gotZIP)

	assert.Equal(t, 500000.0, report.Metrics.SalePrice)
	assert.Equal(t, 250.0, report.Metrics.PricePerSqFt)
	assert.Equal(t, 1987, report.Metrics.YearBuilt)

	assert.Equal(t, 84600.0, report.Demographics.MedianIncome)

	// Bound center of the polygon.
	assert.InDelta(t, 45.64, report.Location.Lat, 1e-9)
	assert.InDelta(t, -122.66, report.Location.Lon, 1e-9)

	assert.Equal(t, "https://property.clark.wa.gov/?parcel=986035637", report.Links["Property Information Center (PIC)"])
	assert.Contains(t, report.Links, "MapsOnline")
	assert.Contains(t, report.Links, "Recorded Documents (Auditor)")
	mockResolver.AssertExpectations(t)
}

func TestBuildReport_MissingAttributesUseDefaults(t *testing.T) {
	mockResolver := new(MockResolver)
	demo := &stubDemographics{}
	service := NewReportService(mockResolver, demo, logger.New("test"))

	ctx := context.Background()
	mockResolver.On("ByIdentifier", ctx, "42").Return(arcgis.Feature{
		Attributes: map[string]interface{}{},
	}, nil)

	report, err := service.BuildReport(ctx, "42")

	require.NoError(t, err)
	assert.Equal(t, "Unknown", report.Project.Name)
	assert.Equal(t, "Vancouver", report.Project.City)
	assert.Equal(t, defaultZIP, report.Project.ZIP)
	assert.Zero(t, report.Metrics.PricePerSqFt, "no division by zero square footage")
	assert.Zero(t, report.Location.Lat)
}

func TestBuildReport_ResolverErrorPassesThrough(t *testing.T) {
	mockResolver := new(MockResolver)
	service := NewReportService(mockResolver, &stubDemographics{}, logger.New("test"))

	ctx := context.Background()
	mockResolver.On("ByIdentifier", ctx, "999").Return(arcgis.Feature{}, resolver.ErrNotFound)

	_, err := service.BuildReport(ctx, "999")

	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestLinks_AllPortals(t *testing.T) {
	service := NewReportService(nil, nil, logger.New("test"))

	links := service.Links("111222333")

	assert.Len(t, links, 3)
	for _, url := range links {
		assert.Contains(t, url, "111222333")
	}
}
