package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/database"
	"github.com/RubachokBoss/plagiarism-checker/internal/delivery/httpd"
	"github.com/RubachokBoss/plagiarism-checker/internal/middleware"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/integration"
	"github.com/RubachokBoss/plagiarism-checker/internal/worker"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type App struct {
	server      *http.Server
	logger      zerolog.Logger
	config      *config.Config
	ledger      repository.Ledger
	pool        *worker.WorkerPool
	reconciler  *worker.Reconciler
	submissions service.SubmissionService
	closers     []func() error
}

// New wires every component from cfg. version is reported by /health and
// /status.
func New(ctx context.Context, cfg *config.Config, version string, log zerolog.Logger) (*App, error) {
	a := &App{logger: log, config: cfg}

	ledger, err := openLedger(cfg, log)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger
	a.closers = append(a.closers, ledger.Close)

	store, err := a.openContentStore(ctx, cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}

	hasher, err := hash.NewFileHasher(cfg.Detection.HashAlgorithm)
	if err != nil {
		a.close()
		return nil, err
	}

	// Пул воркеров для фоновой публикации событий
	a.pool = worker.NewWorkerPool(cfg.Worker.MaxWorkers, log)
	a.pool.Start()

	publisher, err := a.openPublisher(ctx, cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}

	detector := service.NewDuplicateDetector(ledger, log)
	a.submissions = service.NewSubmissionService(store, ledger, detector, hasher, publisher, log)
	reports := service.NewReportService(ledger, service.StatusInfo{
		Version:         version,
		LedgerDriver:    cfg.Ledger.Driver,
		StorageProvider: cfg.Storage.Provider,
		EventsEnabled:   cfg.RabbitMQ.Enabled,
		ActiveWorkers:   a.pool.GetActiveWorkers,
	}, log)

	a.reconciler = worker.NewReconciler(a.submissions, cfg.Worker.ReconcileInterval, cfg.Worker.ReconcileBatch, log)

	handler := httpd.NewHandler(a.submissions, reports, store, httpd.Options{
		Version:       version,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}, log)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.WithLogger(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(chimiddleware.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	}
	router.Use(middleware.NewCORS(cfg.CORS))

	handler.RegisterRoutes(router)

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

func openLedger(cfg *config.Config, log zerolog.Logger) (repository.Ledger, error) {
	switch cfg.Ledger.Driver {
	case config.LedgerPostgres:
		if cfg.Database.AutoMigrate {
			migrator, err := database.NewMigrator(cfg.Database)
			if err != nil {
				return nil, err
			}
			if err := migrator.Up(); err != nil {
				return nil, err
			}
			log.Info().Msg("Database migrations applied")
		}

		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().Str("host", cfg.Database.Host).Msg("Database connection established")
		return repository.NewPostgresLedger(db, log), nil

	case config.LedgerSQLite:
		db, err := database.NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		ledger, err := repository.NewSQLiteLedger(db, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("SQLite ledger opened")
		return ledger, nil

	default:
		log.Warn().Msg("Using in-memory ledger, submissions are lost on restart")
		return repository.NewMemoryLedger(), nil
	}
}

func (a *App) openContentStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.ContentStore, error) {
	var provider repository.ContentStore

	switch cfg.Storage.Provider {
	case config.StorageFilesystem:
		fs, err := repository.NewFilesystemContentStore(cfg.Storage.FilesystemRoot, log)
		if err != nil {
			return nil, err
		}
		provider = fs

	case config.StorageMinIO:
		minioStore, err := repository.NewMinIOContentStore(cfg.MinIO, 30*time.Second, log)
		if err != nil {
			return nil, err
		}
		provider = minioStore

	case config.StorageRedis:
		redisStore, err := repository.NewRedisContentStore(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisStore.Close)
		provider = redisStore

	case config.StorageHTTP:
		provider = integration.NewContentClient(cfg.ContentService, log)

	default:
		provider = repository.NewMemoryContentStore()
	}

	return repository.NewContentStore(provider, cfg.Storage.Provider, log), nil
}

func (a *App) openPublisher(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.EventPublisher, error) {
	if !cfg.RabbitMQ.Enabled {
		return service.NewNoopPublisher(), nil
	}

	broker, err := repository.NewRabbitMQBroker(ctx, cfg.RabbitMQ, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, broker.Close)

	return worker.NewEventDispatcher(a.pool, broker, cfg.RabbitMQ.Timeout, log), nil
}

// Handler exposes the configured router.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Reconcile completes up to limit submissions that were recorded without a
// report.
func (a *App) Reconcile(ctx context.Context, limit int) (int, error) {
	return a.submissions.ReconcileUnreported(ctx, limit)
}

func (a *App) Run(ctx context.Context) error {
	a.reconciler.Start(ctx)

	a.logger.Info().Msgf("Starting plagiarism checker on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down plagiarism checker...")

	err := a.server.Shutdown(ctx)

	a.reconciler.Stop()
	a.close()

	return err
}

// close stops the pool and releases resources in reverse order of opening.
func (a *App) close() {
	if a.pool != nil {
		a.pool.Stop()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
