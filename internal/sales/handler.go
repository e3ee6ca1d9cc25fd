package sales

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumbung-erp/lumbung-erp/internal/platform/httpx"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Handler manages invoice HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.sell)
	r.Get("/", h.list)
	r.Get("/voided", h.listVoided)
	r.Get("/{id}", h.show)
	r.Post("/{id}/return", h.returnItems)
	r.Post("/{id}/exchange", h.exchange)
	r.Post("/{id}/void", h.void)
}

type sellItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Count     int64  `json:"count" validate:"required,gt=0"`
	SellPrice int64  `json:"sell_price" validate:"required,gt=0"`
}

type sellRequest struct {
	Customer      string            `json:"customer" validate:"required"`
	Date          string            `json:"date" validate:"required"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash transfer tempo"`
	Items         []sellItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
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

	in := SellInput{Customer: req.Customer, Date: date, PaymentMethod: PaymentMethod(req.PaymentMethod)}
	for _, item := range req.Items {
		in.Items = append(in.Items, SellItem{ProductID: item.ProductID, Count: item.Count, SellPrice: item.SellPrice})
	}

	inv, err := h.service.Sell(r.Context(), in)
	if err != nil {
		h.logger.Error("sell failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

type returnItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type returnRequest struct {
	Items []returnItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) returnItems(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := ReturnInput{InvoiceID: chi.URLParam(r, "id")}
	for _, item := range req.Items {
		in.Items = append(in.Items, ReturnItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	inv, err := h.service.Return(r.Context(), in)
	if err != nil {
		h.logger.Error("return failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

type exchangeItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type exchangeRequest struct {
	Items []exchangeItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := ExchangeInput{InvoiceID: chi.URLParam(r, "id")}
	for _, item := range req.Items {
		in.Items = append(in.Items, ExchangeItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if err := h.service.Exchange(r.Context(), in); err != nil {
		h.logger.Error("exchange failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "exchanged"})
}

type voidRequest struct {
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash transfer tempo"`
	Items         []sellItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := VoidInput{InvoiceID: chi.URLParam(r, "id"), PaymentMethod: PaymentMethod(req.PaymentMethod)}
	for _, item := range req.Items {
		in.Items = append(in.Items, SellItem{ProductID: item.ProductID, Count: item.Count, SellPrice: item.SellPrice})
	}

	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.Void(r.Context(), actor, in)
	if err != nil {
		h.logger.Error("void failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	invoices, err := h.service.ListInvoices(r.Context(), limit)
	if err != nil {
		h.logger.Error("list invoices failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) listVoided(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	voids, err := h.service.ListVoidInvoices(r.Context(), limit)
	if err != nil {
		h.logger.Error("list void invoices failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"void_invoices": voids})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
