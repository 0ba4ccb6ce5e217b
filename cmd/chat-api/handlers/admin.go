package handlers

import (
	"net/http"

	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/index"
	"github.com/cartline-ai/cartline/internal/observability"
	"github.com/cartline-ai/cartline/internal/retrieval"
)

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	logger    *observability.Logger
	builder   *index.Builder
	catalog   *catalog.Catalog
	handle    *index.Handle
	store     *index.Store
	respCache *retrieval.ResponseCache
}

// NewAdminHandler creates an admin handler. store may be nil when index
// persistence is disabled.
func NewAdminHandler(
	logger *observability.Logger,
	builder *index.Builder,
	cat *catalog.Catalog,
	handle *index.Handle,
	store *index.Store,
	respCache *retrieval.ResponseCache,
) *AdminHandler {
	return &AdminHandler{
		logger:    logger,
		builder:   builder,
		catalog:   cat,
		handle:    handle,
		store:     store,
		respCache: respCache,
	}
}

// RebuildResponseDTO reports the outcome of an index rebuild.
type RebuildResponseDTO struct {
	Indexed     int    `json:"indexed"`
	Fingerprint string `json:"fingerprint"`
	Model       string `json:"model"`
}

// Rebuild handles POST /api/v1/admin/rebuild. The new snapshot is swapped
// in atomically; in-flight searches finish against the old one. Cached
// responses are invalidated afterwards so stale rankings are not served
// against the new index.
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.builder.Build(ctx, h.catalog, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("index rebuild failed")
		writeError(w, http.StatusInternalServerError, "rebuild failed", "")
		return
	}

	if h.store != nil {
		if err := h.store.Save(snap); err != nil {
			h.logger.Warn().Err(err).Msg("failed to persist rebuilt index")
		}
	}

	h.handle.Swap(snap)
	if err := h.respCache.InvalidateAll(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("failed to invalidate response cache after rebuild")
	}

	h.logger.Info().
		Int("indexed", snap.Index.Count()).
		Str("fingerprint", snap.Fingerprint).
		Msg("index rebuilt and swapped")

	writeJSON(w, http.StatusOK, RebuildResponseDTO{
		Indexed:     snap.Index.Count(),
		Fingerprint: snap.Fingerprint,
		Model:       snap.Model,
	})
}
