package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/kiosko/pos/internal/handlers"
	"github.com/kiosko/pos/internal/platform/config"
	pfirestore "github.com/kiosko/pos/internal/platform/firestore"
	"github.com/kiosko/pos/internal/platform/idempotency"
	"github.com/kiosko/pos/internal/platform/jobs"
	"github.com/kiosko/pos/internal/platform/observability"
	"github.com/kiosko/pos/internal/repositories"
	firestoreRepo "github.com/kiosko/pos/internal/repositories/firestore"
	"github.com/kiosko/pos/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("pos")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var publisher services.SaleEventPublisher
	var saleTopic *pubsub.Topic
	var pubsubClient *pubsub.Client
	if cfg.Events.Topic != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		saleTopic = pubsubClient.Topic(cfg.Events.Topic)
		defer saleTopic.Stop()

		salePublisher, err := jobs.NewPubSubSalePublisher(saleTopic)
		if err != nil {
			logger.Fatal("failed to initialise sale publisher", zap.Error(err))
		}
		publisher = salePublisher
		logger.Info("sale events enabled", zap.String("topic", cfg.Events.Topic))
	}

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	saleRepo, err := firestoreRepo.NewSaleRepository(firestoreProvider,
		firestoreRepo.WithSaleTxOptions(
			pfirestore.WithTxAttempts(cfg.Commit.MaxAttempts),
			pfirestore.WithTxTimeout(cfg.Commit.Timeout),
		),
	)
	if err != nil {
		logger.Fatal("failed to initialise sale repository", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Products: productRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}
	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products: productRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}
	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Sales:                saleRepo,
		Payments:             services.NewPaymentService(),
		Publisher:            publisher,
		Logger:               logger.Named("checkout"),
		DefaultPointOfSaleID: cfg.Register.DefaultPointOfSaleID,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, saleTopic, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	var saleMiddlewares []func(http.Handler) http.Handler
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.Enabled {
		store := idempotency.NewFirestoreStore(firestoreClient)
		saleMiddlewares = append(saleMiddlewares, idempotency.Middleware(
			store,
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithDefaultScope(cfg.Register.DefaultPointOfSaleID),
			idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
		))

		if cfg.Idempotency.CleanupInterval > 0 {
			cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
			cleanupWG.Add(1)
			go func() {
				defer cleanupWG.Done()
				cleanupLogger := logger.Named("idempotency")
				for {
					select {
					case <-cleanupTicker.C:
						runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
						removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
						cancel()
						if err != nil {
							cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
							continue
						}
						if removed > 0 {
							cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
						}
					case <-cleanupCtx.Done():
						return
					}
				}
			}()
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	saleHandlers := handlers.NewSaleHandlers(cartService, checkoutService)
	productHandlers := handlers.NewProductHandlers(productRepo)
	inventoryHandlers := handlers.NewInventoryHandlers(cartService, inventoryService)
	healthHandlers := handlers.NewHealthHandlers(systemService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithSaleRoutes(saleHandlers.Routes),
		handlers.WithSaleMiddlewares(saleMiddlewares...),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithInventoryRoutes(inventoryHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("pos api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("POS_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("POS_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("POS_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSystemService(client *firestore.Client, topic *pubsub.Topic, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Build:            build,
	})
}
