package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cortexai/analytics/internal/catalog"
	"github.com/cortexai/analytics/internal/models"
)

const reloadTimeout = 30 * time.Second

// CatalogStore is the read and reload surface of catalog.Store
type CatalogStore interface {
	Snapshot() *catalog.Catalog
	Version() uint64
	LoadedAt() time.Time
	Reload(ctx context.Context) (*catalog.Catalog, error)
}

// CatalogHandler exposes the live catalog snapshot
type CatalogHandler struct {
	store CatalogStore
}

func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// Get handles GET /api/v1/catalog
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, h.describe(h.store.Snapshot()))
}

// Reload handles POST /api/v1/catalog/reload. A failed reload keeps the
// previous snapshot serving and answers 503.
func (h *CatalogHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	if _, err := h.store.Reload(ctx); err != nil {
		models.WriteError(w, http.StatusServiceUnavailable, "catalog reload failed: "+err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, h.describe(h.store.Snapshot()))
}

func (h *CatalogHandler) describe(c *catalog.Catalog) models.CatalogResponse {
	return models.CatalogResponse{
		Version:       h.store.Version(),
		LoadedAt:      h.store.LoadedAt(),
		FactTable:     c.FactTable(),
		AllowedTables: c.AllowedTables(),
		Metrics:       c.Metrics(),
		Banks:         c.Banks(),
		Columns:       c.Columns(),
	}
}
