package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/adapters/cache"
	"github.com/khoahotran/openforge/adapters/chain"
	"github.com/khoahotran/openforge/adapters/event"
	"github.com/khoahotran/openforge/adapters/gateway"
	httpAdapter "github.com/khoahotran/openforge/adapters/http"
	"github.com/khoahotran/openforge/adapters/media_storage"
	"github.com/khoahotran/openforge/adapters/persistence"
	"github.com/khoahotran/openforge/adapters/pinning"
	"github.com/khoahotran/openforge/internal/application/service"
	authUC "github.com/khoahotran/openforge/internal/application/usecase/auth"
	cleanupUC "github.com/khoahotran/openforge/internal/application/usecase/cleanup"
	profileUC "github.com/khoahotran/openforge/internal/application/usecase/profile"
	projectUC "github.com/khoahotran/openforge/internal/application/usecase/project"
	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/pkg/auth"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/tracing"
)

func main() {
	fmt.Println("Start OpenForge API Server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: cannot load config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.App.Env, "openforge-server")
	defer appLogger.Sync()

	tp, err := tracing.NewTracerProvider(cfg, appLogger, "openforge-server")
	if err != nil {
		log.Fatalf("FATAL: cannot init tracer: %v", err)
	}
	defer tracing.Shutdown(context.Background(), tp)

	dbPool, err := persistence.NewPostgresPool(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot connect Postgres: %v", err)
	}
	defer dbPool.Close()

	// Storage
	var (
		pinner  service.Pinner
		fetcher service.DocumentFetcher
		linkFn  func(cid string) string
	)
	switch cfg.Pinning.Driver {
	case "minio":
		mp, err := pinning.NewMinioPinner(ctx, cfg, appLogger)
		if err != nil {
			log.Fatalf("FATAL: cannot init MinIO pinner: %v", err)
		}
		pinner, fetcher, linkFn = mp, mp, mp.URL
	default:
		pinner, err = pinning.NewPinataClient(cfg, appLogger)
		if err != nil {
			log.Fatalf("FATAL: cannot init Pinata client: %v", err)
		}
		gw, err := gateway.NewFetcher(cfg.Gateway.URLs, cfg.Gateway.AttemptTimeout, appLogger)
		if err != nil {
			log.Fatalf("FATAL: cannot init gateway fetcher: %v", err)
		}
		fetcher, linkFn = gw, gw.URL
	}

	imageLinks, err := media_storage.NewImageLinks(cfg, linkFn, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot init image links: %v", err)
	}

	var resolveCache service.Cache
	if cfg.Cache.Driver == "redis" {
		var rdb *redis.Client
		rdb, err = persistence.NewRedisClient(ctx, cfg, appLogger)
		if err != nil {
			log.Fatalf("FATAL: cannot connect Redis: %v", err)
		}
		defer rdb.Close()
		resolveCache = cache.NewRedisCache(rdb, cfg.Cache.TTL)
	} else {
		resolveCache = cache.NewMemoryCache(cfg.Cache.TTL)
	}

	// Chain
	chainClient, err := chain.Dial(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot connect chain: %v", err)
	}
	profileRegistry, err := chain.NewProfileRegistry(chainClient, cfg.Chain.ProfileRegistry)
	if err != nil {
		log.Fatalf("FATAL: cannot bind profile registry: %v", err)
	}
	projectRegistry, err := chain.NewProjectRegistry(chainClient, cfg.Chain.ProjectRegistry)
	if err != nil {
		log.Fatalf("FATAL: cannot bind project registry: %v", err)
	}

	// Repositories
	userRepo := persistence.NewPostgresUserRepo(dbPool)
	pinLedger := persistence.NewPostgresPinLedger(dbPool)

	// Cleanup
	cleanup := cleanupUC.NewCleanupUseCase(pinner, pinLedger, cfg.Cleanup.GracePeriod, appLogger)
	var scheduler service.CleanupScheduler
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := event.NewKafkaProducerClient(cfg, appLogger)
		if err != nil {
			log.Fatalf("FATAL: cannot init Kafka: %v", err)
		}
		defer kafkaClient.Close()
		scheduler = kafkaClient
	} else {
		direct := event.NewDirectScheduler(cleanup, appLogger)
		defer direct.Close()
		scheduler = direct
	}

	// Use Cases
	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifespan)
	publisher := publish.NewPublisher(pinner, pinLedger, scheduler, appLogger)
	resolver := resolve.NewResolver(profileRegistry, projectRegistry, fetcher, resolveCache, appLogger, resolve.WithImageURLs(imageLinks))
	policy := media.DefaultPolicy()
	policy.MaxBytes = cfg.Media.MaxBytes
	validator := media.NewValidator(policy)

	loginUseCase := authUC.NewLoginUseCase(userRepo, jwtSvc, appLogger)
	profileUseCase := profileUC.NewProfileUseCase(profileRegistry, resolver, publisher, validator, appLogger)
	createProjectUseCase := projectUC.NewCreateProjectUseCase(projectRegistry, resolver, publisher, validator, appLogger)
	updateProjectUseCase := projectUC.NewUpdateProjectUseCase(projectRegistry, resolver, publisher, validator, appLogger)
	setStatusUseCase := projectUC.NewSetStatusUseCase(projectRegistry, resolver, appLogger)
	feedUseCase := resolve.NewFeedUseCase(resolver, resolve.FeedConfig{
		FirstPage:   cfg.Resolve.FeedFirstPage,
		NextPage:    cfg.Resolve.FeedNextPage,
		Concurrency: cfg.Resolve.BatchConcurrency,
		FrontURL:    cfg.App.FrontURL,
	}, appLogger)

	// HTTP Handlers
	session := chainClient.Session
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		JWT:               jwtSvc,
		Logger:            appLogger,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		MaxImageBytes:     policy.MaxBytes,
		Auth:              httpAdapter.NewAuthHandler(loginUseCase, appLogger),
		Profile:           httpAdapter.NewProfileHandler(profileUseCase, resolver, session, cfg.Resolve.BatchConcurrency, appLogger),
		Project: httpAdapter.NewProjectHandler(
			createProjectUseCase,
			updateProjectUseCase,
			setStatusUseCase,
			feedUseCase,
			resolver,
			session,
			appLogger,
		),
		RSS:      httpAdapter.NewRSSHandler(feedUseCase, appLogger),
		Document: httpAdapter.NewDocumentHandler(resolver),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("API server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: cannot start server: %v", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", err)
	}
}
