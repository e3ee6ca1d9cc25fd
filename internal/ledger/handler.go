package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumbung-erp/lumbung-erp/internal/platform/httpx"
)

// Handler serves read-only stock history queries.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler creates a Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filter := HistoryFilter{
		ProductID: r.URL.Query().Get("product_id"),
		Warehouse: WarehousePosition(r.URL.Query().Get("warehouse")),
		Type:      EntryType(r.URL.Query().Get("type")),
		Limit:     limit,
	}
	if filter.Warehouse != "" && !filter.Warehouse.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown warehouse position")
		return
	}

	entries, err := h.repo.ListHistory(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
