package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parcelforge/api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_BestCandidate(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"SingleLine":   r.URL.Query().Get("SingleLine"),
			"f":            r.URL.Query().Get("f"),
			"maxLocations": r.URL.Query().Get("maxLocations"),
		}
		w.Write([]byte(`{
			"candidates": [
				{
					"address": "1300 Franklin St, Vancouver, WA, 98660",
					"score": 98.5,
					"location": {"x": -122.6722, "y": 45.6318}
				}
			]
		}`))
	}))
	defer server.Close()

	g := New(server.URL, 5*time.Second, logger.New("test"), nil)

	match, err := g.Lookup(context.Background(), "1300 Franklin St Vancouver WA")

	require.NoError(t, err)
	assert.Equal(t, "1300 Franklin St Vancouver WA", gotQuery["SingleLine"])
	assert.Equal(t, "json", gotQuery["f"])
	assert.Equal(t, "1", gotQuery["maxLocations"])

	assert.Equal(t, "1300 Franklin St, Vancouver, WA, 98660", match.Address)
	assert.Equal(t, 45.6318, match.Lat)
	assert.Equal(t, -122.6722, match.Lon)
	assert.Equal(t, 98.5, match.Score)
}

func TestLookup_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	g := New(server.URL, 5*time.Second, logger.New("test"), nil)

	_, err := g.Lookup(context.Background(), "nowhere at all")

	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestLookup_EmptyAddress(t *testing.T) {
	g := New("http://unused", 5*time.Second, logger.New("test"), nil)

	_, err := g.Lookup(context.Background(), "   ")

	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestLookup_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := New(server.URL, 5*time.Second, logger.New("test"), nil)

	_, err := g.Lookup(context.Background(), "1300 Franklin St")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
