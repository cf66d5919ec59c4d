package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/parcelforge/api/internal/errors"
	"github.com/parcelforge/api/internal/registry"
)

// DataSourceHandler manages the catalog of configured provider datasets.
type DataSourceHandler struct {
	store *registry.Store
}

// NewDataSourceHandler creates a new DataSourceHandler instance.
func NewDataSourceHandler(store *registry.Store) *DataSourceHandler {
	return &DataSourceHandler{
		store: store,
	}
}

// DataSourceList represents the list response.
type DataSourceList struct {
	Sources []registry.DataSource `json:"sources"`
	Count   int                   `json:"count"`
}

// List handles GET /api/v1/datasources.
func (h *DataSourceHandler) List(c *gin.Context) {
	sources := h.store.List()
	c.JSON(http.StatusOK, DataSourceList{
		Sources: sources,
		Count:   len(sources),
	})
}

// Get handles GET /api/v1/datasources/:id.
func (h *DataSourceHandler) Get(c *gin.Context) {
	source, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrSourceNotFound) {
			apierrors.NotFound(c, "Data source not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to read data source", err)
		return
	}
	c.JSON(http.StatusOK, source)
}

// Create handles POST /api/v1/datasources.
func (h *DataSourceHandler) Create(c *gin.Context) {
	var source registry.DataSource
	if err := c.ShouldBindJSON(&source); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid data source payload", nil)
		return
	}

	created, err := h.store.Add(source)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to save data source", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update handles PUT /api/v1/datasources/:id.
func (h *DataSourceHandler) Update(c *gin.Context) {
	var source registry.DataSource
	if err := c.ShouldBindJSON(&source); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid data source payload", nil)
		return
	}

	updated, err := h.store.Update(c.Param("id"), source)
	if err != nil {
		if errors.Is(err, registry.ErrSourceNotFound) {
			apierrors.NotFound(c, "Data source not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to update data source", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/datasources/:id.
func (h *DataSourceHandler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		if errors.Is(err, registry.ErrSourceNotFound) {
			apierrors.NotFound(c, "Data source not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete data source", err)
		return
	}
	c.Status(http.StatusNoContent)
}
