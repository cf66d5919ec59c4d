package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/parcelforge/api/internal/models"
	"github.com/parcelforge/api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockParcelService is a mock implementation of ParcelService for testing
type MockParcelService struct {
	mock.Mock
}

func (m *MockParcelService) GetParcelAtPoint(ctx context.Context, lat, lng float64) (*models.Parcel, error) {
	args := m.Called(ctx, lat, lng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Parcel), args.Error(1)
}

func (m *MockParcelService) AnalyzeArea(ctx context.Context, polygonGeoJSON []byte, limit int) (*services.AreaAnalysis, error) {
	args := m.Called(ctx, polygonGeoJSON, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AreaAnalysis), args.Error(1)
}

func newParcelRouter(service services.ParcelService) *gin.Engine {
	router := gin.New()
	handler := NewParcelHandler(service)
	router.GET("/api/v1/parcels/at-point", handler.AtPoint)
	router.POST("/api/v1/parcels/analyze", handler.Analyze)
	return router
}

func strPtr(s string) *string { return &s }
func fPtr(v float64) *float64 { return &v }

func TestAtPoint_Success(t *testing.T) {
	// Arrange
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	parcel := &models.Parcel{
		ParcelID:    "986035637",
		SiteAddress: strPtr("1300 FRANKLIN ST"),
		LandValue:   fPtr(125000),
		TotalValue:  435000,
	}
	mockService.On("GetParcelAtPoint", mock.Anything, 45.63, -122.66).Return(parcel, nil)

	// Act
	req := httptest.NewRequest("GET", "/api/v1/parcels/at-point?lat=45.63&lng=-122.66", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ParcelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Parcel)
	assert.Equal(t, "986035637", resp.Parcel.ParcelID)
	assert.Equal(t, "1300 FRANKLIN ST", resp.Parcel.SiteAddress)
	assert.Equal(t, 435000.0, resp.Parcel.TotalValue)
	mockService.AssertExpectations(t)
}

func TestAtPoint_MissingParams(t *testing.T) {
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	req := httptest.NewRequest("GET", "/api/v1/parcels/at-point", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "GetParcelAtPoint")
}

func TestAtPoint_OutOfRangeLatitude(t *testing.T) {
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	req := httptest.NewRequest("GET", "/api/v1/parcels/at-point?lat=95&lng=-122.66", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	mockService.AssertNotCalled(t, "GetParcelAtPoint")
}

func TestAtPoint_NotFound(t *testing.T) {
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	mockService.On("GetParcelAtPoint", mock.Anything, 30.0, -150.0).Return(nil, services.ErrParcelNotFound)

	req := httptest.NewRequest("GET", "/api/v1/parcels/at-point?lat=30&lng=-150", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestAnalyze_Success(t *testing.T) {
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	polygon := []byte(`{"type":"Polygon","coordinates":[[[-122.68,45.62],[-122.64,45.62],[-122.64,45.65],[-122.68,45.65],[-122.68,45.62]]]}`)
	analysis := &services.AreaAnalysis{
		TotalParcels: 2,
		TotalAcreage: 0.5,
		TotalValue:   800000,
		AverageScore: 70,
		Summary:      "The selected area contains 2 parcels covering 0.50 acres with a combined assessed value of $800000.",
		Parcels: []models.Parcel{
			{ParcelID: "1"},
			{ParcelID: "2"},
		},
	}
	mockService.On("AnalyzeArea", mock.Anything, polygon, 2).Return(analysis, nil)

	req := httptest.NewRequest("POST", "/api/v1/parcels/analyze?limit=2", bytes.NewReader(polygon))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalParcels)
	assert.Len(t, resp.Parcels, 2)
	assert.Contains(t, resp.Summary, "2 parcels")
	mockService.AssertExpectations(t)
}

func TestAnalyze_InvalidPolygon(t *testing.T) {
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	body := []byte(`{"type":"Point","coordinates":[0,0]}`)
	mockService.On("AnalyzeArea", mock.Anything, body, 0).Return(nil, services.ErrInvalidPolygon)

	req := httptest.NewRequest("POST", "/api/v1/parcels/analyze", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze_EmptyBody(t *testing.T) {
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	req := httptest.NewRequest("POST", "/api/v1/parcels/analyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "AnalyzeArea")
}

func TestAnalyze_NonIntegerLimit(t *testing.T) {
	mockService := new(MockParcelService)
	router := newParcelRouter(mockService)

	req := httptest.NewRequest("POST", "/api/v1/parcels/analyze?limit=abc", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "AnalyzeArea")
}
