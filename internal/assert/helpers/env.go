package helpers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/kimalale/tactical-workflow-manager/internal/config"
	"github.com/kimalale/tactical-workflow-manager/internal/dbproxy"
	"github.com/kimalale/tactical-workflow-manager/internal/engine"
	"github.com/kimalale/tactical-workflow-manager/internal/events"
	"github.com/kimalale/tactical-workflow-manager/internal/history"
	"github.com/kimalale/tactical-workflow-manager/internal/scheduler"
	"github.com/kimalale/tactical-workflow-manager/internal/script"
	"github.com/kimalale/tactical-workflow-manager/internal/trigger"
	"github.com/kimalale/tactical-workflow-manager/internal/vars"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	Engine    *engine.Engine
	Redis     *miniredis.Miniredis
	Vars      *vars.Redis
	Gateway   *MockGateway
	Registry  *dbproxy.Registry
	Proxy     *dbproxy.Proxy
	Sandbox   *script.Sandbox
	Console   *engine.Console
	Hub       *events.Hub
	History   *history.Memory
	Scheduler *scheduler.Scheduler
	Webhooks  *trigger.Webhooks
	Schedules *trigger.Schedules
	Config    *config.Config
	Cleanup   func()
}

// NewTestConfig creates a default configuration with pacing disabled so
// runs complete as fast as their scripts allow
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.NodePacing = 0
	cfg.LoopPacing = 0
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// NewTestEngine creates a fully wired engine environment with a Redis
// variable store on miniredis and an in-process database gateway
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()
	return NewTestEngineWithConfig(t, NewTestConfig())
}

// NewTestEngineWithConfig is NewTestEngine with a caller-supplied config
func NewTestEngineWithConfig(
	t *testing.T, cfg *config.Config,
) *TestEngineEnv {
	t.Helper()

	server, err := miniredis.Run()
	assert.NoError(t, err)

	store := vars.NewRedis(vars.RedisConfig{
		Addr:   server.Addr(),
		Prefix: "test",
	})

	gw := NewMockGateway()
	reg := dbproxy.NewRegistry(gw)
	proxy := dbproxy.NewProxy(reg, gw)

	hub := events.NewHub()
	console := engine.NewConsole(cfg.ConsoleLimit, hub)
	sb := script.NewSandbox(script.Capabilities{
		Log:  console,
		HTTP: &http.Client{Timeout: cfg.HTTPTimeoutDuration()},
		Vars: store,
		DB:   proxy,
	})
	sink := history.NewMemory(cfg.HistoryLimit)
	eng := engine.New(cfg, sb, console, hub, sink)

	sched := scheduler.NewSystem()
	schedCtx, stopSched := context.WithCancel(context.Background())
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(schedCtx)
	}()
	hooks := trigger.NewWebhooks(eng, console, hub, 0)
	schedules := trigger.NewSchedules(sched, eng, console, hub)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			stopSched()
			<-schedDone
			_ = eng.Stop()
			reg.Wait()
			hub.Close()
			_ = store.Close()
			server.Close()
		})
	}
	t.Cleanup(cleanup)

	return &TestEngineEnv{
		Engine:    eng,
		Redis:     server,
		Vars:      store,
		Gateway:   gw,
		Registry:  reg,
		Proxy:     proxy,
		Sandbox:   sb,
		Console:   console,
		Hub:       hub,
		History:   sink,
		Scheduler: sched,
		Webhooks:  hooks,
		Schedules: schedules,
		Config:    cfg,
		Cleanup:   cleanup,
	}
}
