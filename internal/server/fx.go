// Package server builds the application's dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/api"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/auth"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/classifier"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/clock/system"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/config"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/sam-opportunity-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/filter"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/hash/sha256"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/id/uuid"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/logging"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/pipeline"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/sam-opportunity-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/sam-opportunity-crawler/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/sam-opportunity-crawler/internal/queue/memory"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/samgov"
	gcsstorage "github.com/JakeFAU/sam-opportunity-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/sam-opportunity-crawler/internal/storage/local"
	memoryStorage "github.com/JakeFAU/sam-opportunity-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/sam-opportunity-crawler/internal/storage/postgres"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/telemetry"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  crawler.Clock

	tasks     crawler.TaskStore
	opps      crawler.OpportunityStore
	pipeline  *pipeline.Pipeline
	queue     *queueMemory.Queue
	workers   []*worker.Worker
	dispatch  *dispatcher.Dispatcher
	apiServer *api.Server

	pool           *pgxpool.Pool
	gcsClient      *storage.Client
	pubsub         *gcppublisher.Publisher
	tracerShutdown telemetry.Shutdown
	closeOnce      sync.Once
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger, clock: system.New()}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.Database.DSN != ""),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
	)

	_, app.tracerShutdown, err = telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	if err := app.setupStores(ctx); err != nil {
		app.cleanup(ctx)
		return nil, err
	}
	blobs, err := app.setupStorage(ctx)
	if err != nil {
		app.cleanup(ctx)
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		app.cleanup(ctx)
		return nil, err
	}
	if app.pipeline, err = app.setupPipeline(blobs); err != nil {
		app.cleanup(ctx)
		return nil, err
	}

	app.queue = queueMemory.NewQueue(cfg.Crawler.QueueDepth)
	workerCfg := worker.Config{Topic: cfg.PubSub.TopicName, TaskTimeout: cfg.TaskTimeout()}
	for i := 0; i < cfg.Crawler.Workers; i++ {
		app.workers = append(app.workers, worker.New(
			app.queue,
			app.tasks,
			app.pipeline,
			publisher,
			app.clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	app.dispatch = dispatcher.New(app.queue, app.workers, logger.Named("dispatcher"))

	authSvc, err := auth.NewService(auth.Config{
		Enabled:  cfg.Auth.Enabled,
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.TokenTTL(),
		Users:    cfg.Auth.Users,
	}, app.clock)
	if err != nil {
		app.cleanup(ctx)
		return nil, fmt.Errorf("auth init failed: %w", err)
	}
	app.apiServer = api.NewServer(api.Deps{
		Tasks:         app.tasks,
		Opportunities: app.opps,
		Queue:         app.dispatch,
		Auth:          authSvc,
		IDs:           uuid.NewUUIDGenerator(),
		Clock:         app.clock,
		Defaults:      cfg.DefaultParameters(),
		Ready:         app.ready,
	}, logger.Named("api"))

	return app, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Opportunities returns the configured opportunity store.
func (a *App) Opportunities() crawler.OpportunityStore { return a.opps }

// Tasks returns the configured task store.
func (a *App) Tasks() crawler.TaskStore { return a.tasks }

// Run serves the API and the worker pool until ctx ends or SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	<-dispatchDone
	a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// RunTask records a task and runs it in-process on the first worker,
// bypassing the queue. It returns the task as stored after the run.
func (a *App) RunTask(ctx context.Context, params crawler.TaskParameters) (crawler.CrawlTask, error) {
	if err := params.Validate(); err != nil {
		return crawler.CrawlTask{}, err
	}
	taskID, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return crawler.CrawlTask{}, err
	}
	now := a.clock.Now()
	task := crawler.CrawlTask{
		ID:         taskID,
		Type:       crawler.TaskType,
		Status:     crawler.TaskStatusPending,
		Parameters: params,
		CreatedBy:  "cli",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.tasks.CreateTask(ctx, task); err != nil {
		return crawler.CrawlTask{}, fmt.Errorf("create task: %w", err)
	}
	a.workers[0].Process(ctx, crawler.QueueItem{TaskID: taskID, Params: params, Submitted: now.Unix()})
	stored, err := a.tasks.GetTask(context.WithoutCancel(ctx), taskID)
	if err != nil {
		return crawler.CrawlTask{}, fmt.Errorf("reload task: %w", err)
	}
	return stored, nil
}

// Close releases infrastructure clients and flushes telemetry. Later calls
// are no-ops.
func (a *App) Close(ctx context.Context) {
	a.closeOnce.Do(func() {
		if a.queue != nil {
			a.queue.Close()
		}
		a.cleanup(ctx)
		a.logger.Info("shutdown complete")
		_ = a.logger.Sync()
	})
}

func (a *App) cleanup(ctx context.Context) {
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.pubsub = nil
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcsClient = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracerShutdown = nil
	}
}

func (a *App) ready(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (a *App) setupStores(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory task and opportunity stores")
		a.tasks = memoryStorage.NewTaskStore()
		a.opps = memoryStorage.NewOpportunityStore()
		return nil
	}
	pgCfg := a.cfg.PostgresSettings()
	pool, err := pgstore.NewPool(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("postgres init failed: %w", err)
	}
	a.pool = pool

	opps, err := pgstore.NewOpportunityStore(pool, pgCfg.Table)
	if err != nil {
		return fmt.Errorf("opportunity store init failed: %w", err)
	}
	tasks, err := pgstore.NewTaskStore(pool, pgCfg.TaskTable, a.clock)
	if err != nil {
		return fmt.Errorf("task store init failed: %w", err)
	}
	if a.cfg.Database.EnsureSchema {
		if err := opps.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure opportunity schema: %w", err)
		}
		if err := tasks.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
		a.logger.Info("postgres schema ensured")
	}
	a.opps, a.tasks = opps, tasks
	a.logger.Info("postgres stores initialized",
		zap.String("table", pgCfg.Table),
		zap.String("task_table", pgCfg.TaskTable),
	)
	return nil
}

func (a *App) setupStorage(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS dump storage", zap.String("bucket", a.cfg.Storage.Bucket))
		return blobs, nil
	case config.StorageLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local dump storage", zap.String("path", a.cfg.Storage.Local.BaseDir))
		return blobs, nil
	default:
		a.logger.Info("using in-memory dump storage")
		return memoryStorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	pub, err := gcppublisher.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsub = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func (a *App) setupPipeline(blobs crawler.BlobStore) (*pipeline.Pipeline, error) {
	base := collyfetcher.New(collyfetcher.Config{
		UserAgent:      a.cfg.Crawler.UserAgent,
		Timeout:        a.cfg.FetchTimeout(),
		ConnectTimeout: a.cfg.ConnectTimeout(),
	})
	var limiter crawler.RateLimiter
	if a.cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.RateLimit.DefaultRPS,
			DefaultBurst: a.cfg.RateLimit.DefaultBurst,
		})
		a.logger.Info("rate limiter enabled",
			zap.Float64("default_rps", a.cfg.RateLimit.DefaultRPS),
			zap.Int("default_burst", a.cfg.RateLimit.DefaultBurst),
		)
	}
	fetcher := collyfetcher.NewRetrying(base, a.cfg.RetryPolicy(), limiter, a.logger.Named("fetcher"))
	source := samgov.NewClient(fetcher, a.cfg.SamGov, a.clock)

	cls, err := classifier.New(a.cfg.ClassifierSettings(), a.logger.Named("classifier"))
	if err != nil {
		return nil, fmt.Errorf("classifier init failed: %w", err)
	}
	chain := filter.NewChain(a.cfg.Filter, a.clock, cls)

	return pipeline.New(source, chain, a.opps, blobs, sha256.New(), pipeline.Config{
		Concurrency: a.cfg.Crawler.Concurrency,
		DumpPrefix:  a.cfg.Storage.Prefix,
	}, a.logger.Named("pipeline")), nil
}
