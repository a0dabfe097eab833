package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"catalogfacets/internal/caching"
	"catalogfacets/internal/config"
	"catalogfacets/internal/controller"
	"catalogfacets/internal/events"
	"catalogfacets/internal/facets"
	"catalogfacets/internal/handlers"
	"catalogfacets/internal/jobs/background"
	"catalogfacets/internal/matching"
	"catalogfacets/internal/middleware"
	"catalogfacets/internal/repositories"
	"catalogfacets/internal/services"
	"catalogfacets/internal/urlcodec"
	"catalogfacets/pkg/database"
)

const version = "1.0.0"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load(os.Getenv("CATALOGFACETS_CONFIG"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := handlers.NewHealthHandlers(version)

	// Object storage holds the taxonomy snapshot.
	var snapshots services.SnapshotStore
	if cfg.Minio.Enabled {
		snapshots, err = services.NewMinioSnapshotStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey,
			cfg.Minio.SecretKey, cfg.Minio.UseSSL, cfg.Minio.Bucket)
		if err != nil {
			return fmt.Errorf("initializing minio: %w", err)
		}
		if err := snapshots.EnsureBucketExists(ctx); err != nil {
			logger.Warn("snapshot bucket unavailable", zap.String("bucket", cfg.Minio.Bucket), zap.Error(err))
		}
		health.AddCheck("minio", false, snapshots.EnsureBucketExists)
	}

	// The catalogue comes from Postgres when configured, otherwise from the
	// last exported snapshot.
	var (
		matcher    facets.Matcher
		categories services.CategorySource
		attributes services.AttributeSource
		pool       *pgxpool.Pool
		memory     *matching.Memory
	)
	if cfg.Database.URL != "" {
		pool, err = database.NewPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		health.AddCheck("database", true, pool.Ping)

		matcher = repositories.NewProductRepo(pool)
		categories = repositories.NewCategoryRepo(pool)
		attributes = repositories.NewAttributeRepo(pool)
	} else {
		snapshot := &services.Snapshot{Version: services.SnapshotVersion}
		if snapshots != nil {
			loaded, err := snapshots.Load(ctx, cfg.Minio.Object)
			switch {
			case err == nil:
				snapshot = loaded
			case errors.Is(err, services.ErrSnapshotNotFound):
				logger.Warn("no catalog snapshot, starting empty", zap.String("object", cfg.Minio.Object))
			default:
				return fmt.Errorf("loading snapshot: %w", err)
			}
		} else {
			logger.Warn("neither database nor snapshot storage configured, starting with an empty catalog")
		}
		source := services.SnapshotSource{Snapshot: snapshot}
		memory = matching.NewMemory(snapshot.Products)
		matcher = memory
		categories, attributes = source, source
		logger.Info("serving catalog snapshot",
			zap.Int("products", len(snapshot.Products)),
			zap.Time("generated_at", snapshot.GeneratedAt))
	}

	var cacheSvc caching.CacheService
	if cfg.Redis.Enabled {
		cacheSvc = caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		health.AddCheck("redis", false, cacheSvc.Ping)
		if ttl := cfg.Facets.CountCacheTTL(); ttl > 0 {
			matcher = caching.NewCachedMatcher(matcher, cacheSvc, ttl, logger)
		}
	}

	catalog := services.NewCatalogService(categories, attributes, cfg.Facets.TaxonomyTTL(), logger)
	if memory != nil {
		catalog.SetProductSource(memory)
	}
	if err := catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("loading taxonomy: %w", err)
	}
	health.AddCheck("catalog", true, func(ctx context.Context) error {
		if catalog.LoadedAt().IsZero() {
			return errors.New("taxonomy not loaded")
		}
		return nil
	})

	counter := facets.NewCounter(matcher, catalog, logger,
		facets.WithConcurrency(cfg.Facets.Concurrency),
		facets.WithChildCategories(cfg.Facets.ChildCategories))
	view := facets.ViewConfig{HideOutOfStock: cfg.Facets.HideOutOfStock}

	var observers []services.SessionObserver
	if cfg.Kafka.Enabled {
		publisher := events.NewPublisher(events.NewKafkaWriter(cfg.Kafka.Broker, cfg.Kafka.Topic), logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close kafka writer", zap.Error(err))
			}
		}()
		observers = append(observers, publisher)
	}

	factory := func(location urlcodec.Location) *controller.Controller {
		return controller.New(location, counter, catalog, logger,
			controller.WithViewConfig(view),
			controller.WithCountTimeout(cfg.Facets.CountTimeout()))
	}
	sessions := services.NewSessionService(factory, cacheSvc, cfg.Facets.SessionTTL(), logger, observers...)
	filters := services.NewFilterService(counter, catalog, view, logger)

	scheduler, err := background.NewJobScheduler(catalog, cacheSvc, snapshots, sessions, background.Options{
		TaxonomyRefreshCron: cfg.Jobs.TaxonomyRefreshCron,
		SnapshotExportCron:  cfg.Jobs.SnapshotExportCron,
		SnapshotObject:      cfg.Minio.Object,
		SessionSweepEvery:   cfg.Jobs.SessionSweepInterval(),
		SessionIdle:         cfg.Facets.SessionIdle(),
	}, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("failed to stop scheduler", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	versions := middleware.NewVersionMiddleware()
	e.Use(middleware.AccessLog(logger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(versions.APIVersionResolver())

	var v1Middleware []echo.MiddlewareFunc
	if cacheSvc != nil && cfg.Server.RateLimit > 0 {
		v1Middleware = append(v1Middleware,
			middleware.RateLimit(cacheSvc, cfg.Server.RateLimit, cfg.Server.RateWindow(), logger))
	}

	handlers.Routes{
		Health:     health,
		Filters:    handlers.NewFilterHandlers(filters, cfg.Facets.DefaultProductsPage),
		Sessions:   handlers.NewSessionHandlers(sessions, cfg.Facets.CountTimeout()),
		Categories: handlers.NewCategoryHandlers(catalog, snapshots, cfg.Minio.Object),
		Jobs:       handlers.NewJobHandlers(scheduler),
	}.Register(e, versions, v1Middleware...)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalogfacets server starting",
			zap.String("version", version),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("database", pool != nil),
			zap.Bool("redis", cacheSvc != nil),
			zap.Bool("minio", snapshots != nil),
			zap.Bool("kafka", cfg.Kafka.Enabled))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
