package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tactical "github.com/kimalale/tactical-workflow-manager"
	"github.com/kimalale/tactical-workflow-manager/internal/config"
	"github.com/kimalale/tactical-workflow-manager/internal/dbproxy"
	"github.com/kimalale/tactical-workflow-manager/internal/engine"
	"github.com/kimalale/tactical-workflow-manager/internal/events"
	"github.com/kimalale/tactical-workflow-manager/internal/history"
	"github.com/kimalale/tactical-workflow-manager/internal/scheduler"
	"github.com/kimalale/tactical-workflow-manager/internal/script"
	"github.com/kimalale/tactical-workflow-manager/internal/server"
	"github.com/kimalale/tactical-workflow-manager/internal/trigger"
	"github.com/kimalale/tactical-workflow-manager/internal/vars"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

type tacticalApp struct {
	cfg        *config.Config
	vars       vars.Store
	closeVars  func() error
	history    history.Sink
	closeHist  func() error
	hub        *events.Hub
	console    *engine.Console
	registry   *dbproxy.Registry
	engine     *engine.Engine
	scheduler  *scheduler.Scheduler
	stopSched  context.CancelFunc
	schedDone  chan struct{}
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrConnectVars     = errors.New("failed to connect variable store")
	ErrOpenHistory     = errors.New("failed to open history bucket")
	ErrLoadWorkflow    = errors.New("failed to load workflow file")
	ErrInstallWorkflow = errors.New("failed to install workflow")
)

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	a := &tacticalApp{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	a.setupLogging()

	if err := a.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (a *tacticalApp) run() error {
	if err := a.initializeStores(); err != nil {
		return err
	}
	a.initializeEngine()

	if err := a.loadWorkflow(); err != nil {
		a.shutdown()
		return err
	}
	a.startServer()

	signal.Notify(a.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.quit)
	<-a.quit

	a.shutdown()
	return nil
}

func (a *tacticalApp) setupLogging() {
	level := log.ParseLevel(a.cfg.LogLevel)
	env := os.Getenv("ENV")
	logger := log.NewWithLevel(tactical.Name, env, tactical.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Tactical Workflow Engine starting",
		slog.String("log_level", a.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("vars_backend", a.cfg.Vars.Backend),
		slog.String("vars_redis_addr", a.cfg.Vars.Addr),
		slog.String("gateway_url", a.cfg.GatewayURL),
		slog.Int64("node_pacing_ms", a.cfg.NodePacing),
		slog.Int64("loop_pacing_ms", a.cfg.LoopPacing),
		slog.Int("loop_max_iterations", a.cfg.LoopMaxIterations),
		slog.String("api_host", a.cfg.APIHost),
		slog.Int("api_port", a.cfg.APIPort))
}

func (a *tacticalApp) initializeStores() error {
	ctx, cancel := context.WithTimeout(
		context.Background(), a.cfg.ShutdownTimeout,
	)
	defer cancel()

	switch a.cfg.Vars.Backend {
	case config.VarsBackendRedis:
		store := vars.NewRedis(vars.RedisConfig{
			Addr:     a.cfg.Vars.Addr,
			Password: a.cfg.Vars.Password,
			DB:       a.cfg.Vars.DB,
			Prefix:   a.cfg.Vars.Prefix,
		})
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("%w: %w", ErrConnectVars, err)
		}
		a.vars = store
		a.closeVars = store.Close
	default:
		a.vars = vars.NewMemory()
		a.closeVars = func() error { return nil }
	}

	if a.cfg.HistoryBucketURL == "" {
		a.history = history.NewMemory(a.cfg.HistoryLimit)
		a.closeHist = func() error { return nil }
		return nil
	}
	archive, err := history.NewBlobArchive(
		ctx, a.cfg.HistoryBucketURL, a.cfg.HistoryPrefix, a.cfg.HistoryLimit,
	)
	if err != nil {
		_ = a.closeVars()
		return fmt.Errorf("%w: %w", ErrOpenHistory, err)
	}
	a.history = archive
	a.closeHist = archive.Close
	return nil
}

func (a *tacticalApp) initializeEngine() {
	a.hub = events.NewHub()
	a.console = engine.NewConsole(a.cfg.ConsoleLimit, a.hub)

	gw := dbproxy.NewHTTPGateway(
		a.cfg.GatewayURL, a.cfg.GatewayTimeoutDuration(),
	)
	a.registry = dbproxy.NewRegistry(gw,
		dbproxy.WithTestTimeout(a.cfg.GatewayTimeoutDuration()),
		dbproxy.WithStatusNotifier(a.connectionStatus),
	)

	sb := script.NewSandbox(script.Capabilities{
		Log:  a.console,
		HTTP: &http.Client{Timeout: a.cfg.HTTPTimeoutDuration()},
		Vars: a.vars,
		DB:   dbproxy.NewProxy(a.registry, gw),
	})
	a.engine = engine.New(a.cfg, sb, a.console, a.hub, a.history)

	a.scheduler = scheduler.NewSystem()
	var ctx context.Context
	ctx, a.stopSched = context.WithCancel(context.Background())
	a.schedDone = make(chan struct{})
	go func() {
		defer close(a.schedDone)
		a.scheduler.Run(ctx)
	}()
}

func (a *tacticalApp) connectionStatus(conn *api.DatabaseConnection) {
	ctx := context.Background()
	switch conn.Status {
	case api.ConnectionConnected:
		a.console.Add(ctx, api.TagDatabase,
			"Connected: "+conn.Name, api.LogInfo)
	case api.ConnectionError:
		a.console.Add(ctx, api.TagDatabase,
			"Connection failed: "+conn.Name, api.LogError)
	}
}

func (a *tacticalApp) loadWorkflow() error {
	if a.cfg.WorkflowFile == "" {
		return nil
	}
	data, err := os.ReadFile(a.cfg.WorkflowFile)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadWorkflow, err)
	}
	var doc api.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadWorkflow, err)
	}
	if err := a.engine.SetWorkflow(&doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInstallWorkflow, err)
	}
	slog.Info("Workflow file loaded",
		slog.String("path", a.cfg.WorkflowFile))
	return nil
}

func (a *tacticalApp) startServer() {
	hooks := trigger.NewWebhooks(a.engine, a.console, a.hub, 0)
	schedules := trigger.NewSchedules(a.scheduler, a.engine, a.console, a.hub)

	a.apiServer = server.NewServer(server.Services{
		Engine:    a.engine,
		Hub:       a.hub,
		Webhooks:  hooks,
		Schedules: schedules,
		Vars:      a.vars,
		Registry:  a.registry,
	})
	mux := a.apiServer.SetupRoutes()

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.APIHost, a.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", a.httpServer.Addr))
		err := a.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (a *tacticalApp) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), a.cfg.ShutdownTimeout,
	)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Error("Shutdown failed", log.Error(err))
		}
	}
	if a.apiServer != nil {
		a.apiServer.CloseWebSockets()
	}

	a.stopSched()
	<-a.schedDone

	if err := a.engine.Stop(); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}
	a.registry.Wait()
	a.hub.Close()

	if err := a.closeHist(); err != nil {
		slog.Error("History close failed", log.Error(err))
	}
	if err := a.closeVars(); err != nil {
		slog.Error("Variable store close failed", log.Error(err))
	}

	slog.Info("Server exited")
}
