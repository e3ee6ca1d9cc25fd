package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/masterdata/products"
	"github.com/lumbung-erp/lumbung-erp/internal/masterdata/suppliers"
	"github.com/lumbung-erp/lumbung-erp/internal/purchase"
	"github.com/lumbung-erp/lumbung-erp/internal/sales"
	"github.com/lumbung-erp/lumbung-erp/internal/stats"
	"github.com/lumbung-erp/lumbung-erp/internal/transfer"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	PurchaseHandler  *purchase.Handler
	TransferHandler  *transfer.Handler
	SalesHandler     *sales.Handler
	StatsHandler     *stats.Handler
	LedgerHandler    *ledger.Handler
	ProductsHandler  *products.Handler
	SuppliersHandler *suppliers.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/purchases", params.PurchaseHandler.MountRoutes)
		r.Route("/dispatches", params.TransferHandler.MountRoutes)
		r.Route("/quarantine", params.TransferHandler.MountQuarantineRoutes)
		r.Route("/invoices", params.SalesHandler.MountRoutes)
		r.Route("/stats", params.StatsHandler.MountRoutes)
		r.Route("/stock-history", params.LedgerHandler.MountRoutes)
		r.Route("/products", params.ProductsHandler.MountRoutes)
		r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
	})

	return r
}
