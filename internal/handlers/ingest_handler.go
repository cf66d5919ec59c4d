package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/parcelforge/api/internal/errors"
	"github.com/parcelforge/api/internal/ingest"
	"github.com/parcelforge/api/internal/logger"
)

// ingestRunTimeout bounds a background run kicked off over HTTP.
const ingestRunTimeout = time.Hour

// IngestRunner runs one ingestion; implemented by ingest.Pipeline.
type IngestRunner interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

// IngestHandler triggers ingestion runs over HTTP. Its own TryLock answers
// the conflict case synchronously; the loader enforces exclusivity again
// underneath for runs started elsewhere (cmd/ingest).
type IngestHandler struct {
	pipeline IngestRunner
	log      *logger.Logger

	mu sync.Mutex
}

// NewIngestHandler creates a new IngestHandler instance.
func NewIngestHandler(pipeline IngestRunner, log *logger.Logger) *IngestHandler {
	return &IngestHandler{
		pipeline: pipeline,
		log:      log,
	}
}

// Trigger handles POST /api/v1/ingest. The run continues in the background;
// 202 means accepted, 409 means another run is already active.
func (h *IngestHandler) Trigger(c *gin.Context) {
	if !h.mu.TryLock() {
		apierrors.Conflict(c, "An ingestion run is already active")
		return
	}

	go func() {
		defer h.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), ingestRunTimeout)
		defer cancel()

		result, err := h.pipeline.Run(ctx)
		if err != nil {
			h.log.Error("Background ingestion run failed", err, nil)
			return
		}
		h.log.Info("Background ingestion run finished", map[string]interface{}{
			"loaded":     result.Loaded,
			"skipped":    result.Skipped,
			"duplicates": result.Duplicates,
		})
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
