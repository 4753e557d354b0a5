package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/audisee/docx2daisy/internal/clients/redis"
	"github.com/audisee/docx2daisy/internal/handlers"
	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/jobs/pipeline"
	jobruntime "github.com/audisee/docx2daisy/internal/jobs/runtime"
	"github.com/audisee/docx2daisy/internal/jobs/worker"
	"github.com/audisee/docx2daisy/internal/logger"
	"github.com/audisee/docx2daisy/internal/server"
	"github.com/audisee/docx2daisy/internal/services"
	"github.com/audisee/docx2daisy/internal/ws"
)

type App struct {
	Log    *logger.Logger
	Cfg    Config
	Router *gin.Engine

	Redis    *goredis.Client
	Bus      redisclient.EventBus
	Hub      *ws.Hub
	Store    jobs.Store
	Queue    jobs.Queue
	Liveness jobs.Liveness
	Registry *jobruntime.Registry

	JobService services.JobService
	Pool       *worker.Pool

	cancel context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	for _, dir := range []string{cfg.UploadDir, cfg.WorkDir, cfg.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Sync()
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}

	rdb, err := redisclient.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	bus, err := redisclient.NewEventBus(log, rdb)
	if err != nil {
		log.Sync()
		return nil, err
	}

	hub := ws.NewHub(log)

	store := jobs.NewStore(log, rdb, cfg.JobTTL)
	queue := jobs.NewQueue(log, rdb, cfg.QueueName)
	liveness := jobs.NewLiveness(rdb)
	registry := pipeline.NewRegistry(log, cfg.WorkDir, cfg.ResultsDir)

	notifier := services.NewJobNotifier(log, bus)
	jobService := services.NewJobService(log, store, queue, liveness, notifier)
	pool := worker.NewPool(log, store, queue, registry, notifier, liveness)

	convertHandler := handlers.NewConvertHandler(log, jobService, cfg.UploadDir)
	jobHandler := handlers.NewJobHandler(log, jobService)
	adminHandler := handlers.NewAdminHandler(log, jobService)
	wsHandler := handlers.NewWSHandler(log, hub, jobService)

	router := server.NewRouter(server.RouterConfig{
		ConvertHandler: convertHandler,
		JobHandler:     jobHandler,
		AdminHandler:   adminHandler,
		WSHandler:      wsHandler,
	})

	return &App{
		Log:        log,
		Cfg:        cfg,
		Router:     router,
		Redis:      rdb,
		Bus:        bus,
		Hub:        hub,
		Store:      store,
		Queue:      queue,
		Liveness:   liveness,
		Registry:   registry,
		JobService: jobService,
		Pool:       pool,
	}, nil
}

// Start launches the background pieces of the API process: the event
// forwarder feeding the websocket hub, plus the worker pool when embedded
// mode is on. HTTP serving stays in Run.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
		return fmt.Errorf("start event forwarder: %w", err)
	}
	if a.Cfg.EmbeddedWorkers {
		a.Pool.Start(ctx)
	}
	return nil
}

// StartWorkers runs only the worker pool, the cmd/worker deployment mode.
func (a *App) StartWorkers() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Pool.Start(ctx)
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
