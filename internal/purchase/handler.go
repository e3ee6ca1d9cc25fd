package purchase

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

// Handler manages purchase HTTP endpoints.
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
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
}

type newProductRequest struct {
	Brand         string `json:"brand" validate:"required"`
	MotorType     string `json:"motor_type"`
	Part          string `json:"part" validate:"required"`
	Color         string `json:"color"`
	SellPrice     int64  `json:"sell_price" validate:"gte=0"`
	PurchasePrice int64  `json:"purchase_price" validate:"gte=0"`
}

type purchaseItemRequest struct {
	ProductID string             `json:"product_id"`
	Quantity  int64              `json:"quantity" validate:"required"`
	Product   *newProductRequest `json:"product,omitempty"`
}

type purchaseRequest struct {
	SupplierID    string                `json:"supplier_id"`
	Items         []purchaseItemRequest `json:"items" validate:"required,min=1,dive"`
	PurchasePrice int64                 `json:"purchase_price"`
	PaymentStatus string                `json:"payment_status" validate:"omitempty,oneof=unpaid paid"`
	Warehouse     string                `json:"warehouse_position" validate:"required,oneof=raw_material finished_goods"`
	Date          string                `json:"date" validate:"required"`
	ReturnedStock bool                  `json:"is_returned_stock"`
	ForceChange   bool                  `json:"force_change"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
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

	in := Input{
		SupplierID:    req.SupplierID,
		PurchasePrice: req.PurchasePrice,
		PaymentStatus: PaymentStatus(req.PaymentStatus),
		Warehouse:     ledger.WarehousePosition(req.Warehouse),
		Date:          date,
		ReturnedStock: req.ReturnedStock,
		ForceChange:   req.ForceChange,
	}
	if in.PaymentStatus == "" {
		in.PaymentStatus = PaymentStatusUnpaid
	}
	for _, item := range req.Items {
		it := Item{ProductID: item.ProductID, Quantity: item.Quantity}
		if item.Product != nil {
			it.Product = &NewProduct{
				Brand:         item.Product.Brand,
				MotorType:     item.Product.MotorType,
				Part:          item.Product.Part,
				Color:         item.Product.Color,
				SellPrice:     item.Product.SellPrice,
				PurchasePrice: item.Product.PurchasePrice,
			}
		}
		in.Items = append(in.Items, it)
	}

	actor := shared.ActorFromContext(r.Context())
	result, err := h.service.Purchase(r.Context(), actor, in)
	if err != nil {
		h.logger.Error("purchase failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	histories, err := h.service.ListHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("list purchases failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": histories})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	hist, err := h.service.GetHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, hist)
}
