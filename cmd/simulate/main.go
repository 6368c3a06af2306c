package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/platform/config"
	pfirestore "github.com/kiosko/pos/internal/platform/firestore"
	"github.com/kiosko/pos/internal/platform/observability"
	"github.com/kiosko/pos/internal/repositories"
	firestoreRepo "github.com/kiosko/pos/internal/repositories/firestore"
	"github.com/kiosko/pos/internal/services"
	"github.com/kiosko/pos/internal/simulator"
)

func main() {
	registers := flag.Int("registers", 4, "number of concurrent register sessions")
	sales := flag.Int("sales", 25, "sales attempted per register")
	maxLines := flag.Int("max-lines", 4, "maximum distinct products per sale")
	maxQuantity := flag.Int("max-quantity", 3, "maximum quantity per line")
	thinkTime := flag.Duration("think", 50*time.Millisecond, "pause between sales on one register")
	seed := flag.Int64("seed", 0, "random seed; 0 derives one from the clock")
	seedCatalog := flag.Bool("seed-catalog", false, "write a demo catalog before running")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("simulate")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	provider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := provider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	productRepo, err := firestoreRepo.NewProductRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	saleRepo, err := firestoreRepo.NewSaleRepository(provider,
		firestoreRepo.WithSaleTxOptions(
			pfirestore.WithTxAttempts(cfg.Commit.MaxAttempts),
			pfirestore.WithTxTimeout(cfg.Commit.Timeout),
		),
	)
	if err != nil {
		logger.Fatal("failed to initialise sale repository", zap.Error(err))
	}

	if *seedCatalog {
		if err := seedDemoCatalog(ctx, productRepo); err != nil {
			logger.Fatal("failed to seed catalog", zap.Error(err))
		}
		logger.Info("demo catalog seeded")
	}

	catalog, err := productRepo.List(ctx, repositories.ProductSearchFilter{ActiveOnly: true, Limit: 100})
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	if len(catalog) == 0 {
		logger.Fatal("catalog is empty; run with -seed-catalog or load products first")
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{Products: productRepo})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}
	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{Products: productRepo})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}
	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Sales:                saleRepo,
		Payments:             services.NewPaymentService(),
		Logger:               logger.Named("checkout"),
		DefaultPointOfSaleID: cfg.Register.DefaultPointOfSaleID,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	sim, err := simulator.New(simulator.Deps{
		Carts:     cartService,
		Checkout:  checkoutService,
		Inventory: inventoryService,
		Catalog:   catalog,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to initialise simulator", zap.Error(err))
	}

	report, err := sim.Run(ctx, simulator.Config{
		Registers:        *registers,
		SalesPerRegister: *sales,
		MaxLinesPerSale:  *maxLines,
		MaxQuantity:      *maxQuantity,
		ThinkTime:        *thinkTime,
		Seed:             *seed,
	})
	if err != nil {
		logger.Warn("simulation interrupted", zap.Error(err))
	}

	logger.Info("simulation report",
		zap.Int("attempts", report.Attempts),
		zap.Int("committed", report.Committed),
		zap.Int("shortfall_rejections", report.ShortfallRejections),
		zap.Int("failures", report.Failures),
		zap.String("revenue", report.Revenue.String()),
		zap.Duration("duration", report.Duration),
		zap.Duration("min_latency", report.MinLatency),
		zap.Duration("avg_latency", report.AvgLatency),
		zap.Duration("max_latency", report.MaxLatency),
	)
}

func seedDemoCatalog(ctx context.Context, repo *firestoreRepo.ProductRepository) error {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-cola", Barcode: "7790001000017", Name: "Cola 500ml", Price: domain.MustParseMoney("2.50"), Stock: 120, Active: true, UpdatedAt: now},
		{ID: "prod-chips", Barcode: "7790001000024", Name: "Chips 90g", Price: domain.MustParseMoney("3.25"), Stock: 80, Active: true, UpdatedAt: now},
		{ID: "prod-water", Barcode: "7790001000031", Name: "Water 1l", Price: domain.MustParseMoney("1.75"), Stock: 150, Active: true, UpdatedAt: now},
		{ID: "prod-candy", Barcode: "7790001000048", Name: "Candy Bar", Price: domain.MustParseMoney("0.95"), Stock: 200, Active: true, UpdatedAt: now},
		{ID: "prod-coffee", Barcode: "7790001000055", Name: "Coffee Can", Price: domain.MustParseMoney("4.10"), Stock: 60, Active: true, UpdatedAt: now},
		{ID: "prod-gum", Barcode: "7790001000062", Name: "Gum Pack", Price: domain.MustParseMoney("1.20"), Stock: 45, Active: true, UpdatedAt: now},
	}
	for _, product := range products {
		if err := repo.Upsert(ctx, product); err != nil {
			return err
		}
	}
	return nil
}
