package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumbung-erp/lumbung-erp/internal/app"
	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/masterdata/products"
	"github.com/lumbung-erp/lumbung-erp/internal/masterdata/suppliers"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/cache"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/db"
	"github.com/lumbung-erp/lumbung-erp/internal/purchase"
	"github.com/lumbung-erp/lumbung-erp/internal/sales"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
	"github.com/lumbung-erp/lumbung-erp/internal/stats"
	"github.com/lumbung-erp/lumbung-erp/internal/transfer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Redis only backs the stats cache; the ledger works without it.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stats reads go straight to postgres", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	stockLedger := ledger.New()
	aggregator := stats.NewAggregator()
	auditLogger := shared.NewAuditLogger(pool)

	statsService := stats.NewService(stats.NewRepository(pool), redisClient, cfg.StatsCacheTTL, logger)
	purchaseService := purchase.NewService(purchase.NewRepository(pool), stockLedger, auditLogger, logger)
	transferService := transfer.NewService(transfer.NewRepository(pool), stockLedger)
	salesService := sales.NewService(sales.NewRepository(pool), stockLedger, aggregator, statsService, auditLogger, logger)

	productsService := products.NewService(products.NewRepository(pool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		PurchaseHandler:  purchase.NewHandler(logger, purchaseService),
		TransferHandler:  transfer.NewHandler(logger, transferService),
		SalesHandler:     sales.NewHandler(logger, salesService),
		StatsHandler:     stats.NewHandler(logger, statsService),
		LedgerHandler:    ledger.NewHandler(logger, ledger.NewRepository(pool)),
		ProductsHandler:  products.NewHandler(logger, productsService),
		SuppliersHandler: suppliers.NewHandler(logger, suppliersService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
