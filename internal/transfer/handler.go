package transfer

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/httpx"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Handler manages dispatch HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers dispatch routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.dispatch)
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Post("/{id}/reconcile", h.reconcile)
}

// MountQuarantineRoutes registers broken/returned pool routes.
func (h *Handler) MountQuarantineRoutes(r chi.Router) {
	r.Get("/broken", h.listBroken)
	r.Get("/returned", h.listReturned)
	r.Post("/return-to-supplier", h.returnToSupplier)
}

type dispatchItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Color     string `json:"color"`
}

type dispatchRequest struct {
	Destination string                `json:"destination" validate:"required"`
	Warehouse   string                `json:"warehouse_position" validate:"required,oneof=raw_material finished_goods"`
	Date        string                `json:"date" validate:"required"`
	Source      string                `json:"source" validate:"omitempty,oneof=stock broken"`
	Items       []dispatchItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := shared.ParseDate(req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must use layout "+shared.DateLayout)
		return
	}

	in := DispatchInput{
		Destination: req.Destination,
		Warehouse:   ledger.WarehousePosition(req.Warehouse),
		Date:        date,
		Source:      Source(req.Source),
	}
	if in.Source == "" {
		in.Source = SourceStock
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, DispatchItemInput{ProductID: item.ProductID, Amount: item.Amount, Color: item.Color})
	}

	note, items, err := h.service.Dispatch(r.Context(), in)
	if err != nil {
		h.logger.Error("dispatch failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"note": note, "items": items})
}

type reconcileItemRequest struct {
	ItemID        string `json:"item_id" validate:"required"`
	AcceptedCount int64  `json:"accepted_count" validate:"gte=0"`
}

type reconcileRequest struct {
	Warehouse string                 `json:"warehouse_position" validate:"required,oneof=raw_material finished_goods"`
	Items     []reconcileItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := ReconcileInput{NoteID: chi.URLParam(r, "id"), Warehouse: ledger.WarehousePosition(req.Warehouse)}
	for _, item := range req.Items {
		in.Items = append(in.Items, AcceptItem{ItemID: item.ItemID, AcceptedCount: item.AcceptedCount})
	}

	result, err := h.service.Reconcile(r.Context(), in)
	if err != nil {
		h.logger.Error("reconcile failed", slog.Any("error", err), slog.String("note_id", in.NoteID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notes, err := h.service.ListNotes(r.Context(), limit)
	if err != nil {
		h.logger.Error("list dispatch notes failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	note, items, err := h.service.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"note": note, "items": items})
}

func (h *Handler) listBroken(w http.ResponseWriter, r *http.Request) {
	broken, err := h.service.ListBroken(r.Context(), ledger.WarehousePosition(r.URL.Query().Get("warehouse")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"broken": broken})
}

func (h *Handler) listReturned(w http.ResponseWriter, r *http.Request) {
	returned, err := h.service.ListReturned(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"returned": returned})
}

type returnToSupplierRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Warehouse string `json:"warehouse_position" validate:"required,oneof=raw_material finished_goods"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) returnToSupplier(w http.ResponseWriter, r *http.Request) {
	var req returnToSupplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	err := h.service.ReturnToSupplier(r.Context(), ReturnToSupplierInput{
		ProductID: req.ProductID,
		Warehouse: ledger.WarehousePosition(req.Warehouse),
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.logger.Error("return to supplier failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
