package dbproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

type (
	// Registry holds the named database connections scripts may use.
	// Names are unique and the list is last-write-wins
	Registry struct {
		gateway Gateway
		now     func() time.Time
		timeout time.Duration
		notify  func(*api.DatabaseConnection)
		conns   []*api.DatabaseConnection
		mu      sync.RWMutex
		tests   sync.WaitGroup
	}

	// RegistryOption configures a Registry
	RegistryOption func(*Registry)
)

const connectionIDPrefix = "db_"

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrDuplicateName      = errors.New("connection name already exists")
)

// NewRegistry creates an empty connection registry that tests connections
// against the given gateway
func NewRegistry(gw Gateway, opts ...RegistryOption) *Registry {
	r := &Registry{
		gateway: gw,
		now:     time.Now,
		timeout: 30 * time.Second,
		notify:  func(*api.DatabaseConnection) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithTestTimeout bounds the background connection test started by Add
func WithTestTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithStatusNotifier installs a callback invoked with a copy of the
// connection every time its status changes
func WithStatusNotifier(fn func(*api.DatabaseConnection)) RegistryOption {
	return func(r *Registry) {
		r.notify = fn
	}
}

// Add registers a connection with status testing and starts a background
// test against the gateway that moves it to connected or error
func (r *Registry) Add(conn *api.DatabaseConnection) (
	*api.DatabaseConnection, error,
) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	c := *conn
	c.ID = connectionIDPrefix + uuid.NewString()
	c.Status = api.ConnectionTesting
	c.Error = ""
	c.CreatedAt = r.now()
	c.ConnectedAt = time.Time{}

	r.mu.Lock()
	if r.indexOf(c.Name) >= 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, c.Name)
	}
	r.conns = append(r.conns, &c)
	r.mu.Unlock()

	res := c
	r.notify(&res)

	r.tests.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, _ = r.Test(ctx, c.Name)
	})
	return &res, nil
}

// Remove deletes the named connection
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(name)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}
	r.conns = slices.Delete(r.conns, idx, idx+1)
	return nil
}

// Test verifies the named connection through the gateway and records the
// outcome on the connection
func (r *Registry) Test(ctx context.Context, name string) (
	*api.DatabaseConnection, error,
) {
	conn, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}
	r.update(name, func(c *api.DatabaseConnection) {
		c.Status = api.ConnectionTesting
		c.Error = ""
	})

	err := r.gateway.Test(ctx, conn)
	res, _ := r.update(name, func(c *api.DatabaseConnection) {
		if err != nil {
			c.Status = api.ConnectionError
			c.Error = err.Error()
			return
		}
		c.Status = api.ConnectionConnected
		c.ConnectedAt = r.now()
	})

	if err != nil {
		slog.Warn("Database connection test failed",
			log.Connection(name),
			log.Error(err))
		return res, err
	}
	slog.Info("Database connection established",
		log.Connection(name))
	return res, nil
}

// Get returns a copy of the named connection
func (r *Registry) Get(name string) (*api.DatabaseConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOf(name)
	if idx < 0 {
		return nil, false
	}
	res := *r.conns[idx]
	return &res, true
}

// List returns copies of every connection in registration order
func (r *Registry) List() []*api.DatabaseConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*api.DatabaseConnection, len(r.conns))
	for i, c := range r.conns {
		cp := *c
		res[i] = &cp
	}
	return res
}

// Summaries returns the script-visible view of every connection
func (r *Registry) Summaries() []api.ConnectionSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]api.ConnectionSummary, len(r.conns))
	for i, c := range r.conns {
		res[i] = c.Summary()
	}
	return res
}

// Wait blocks until background connection tests have finished
func (r *Registry) Wait() {
	r.tests.Wait()
}

func (r *Registry) update(
	name string, fn func(*api.DatabaseConnection),
) (*api.DatabaseConnection, bool) {
	r.mu.Lock()
	idx := r.indexOf(name)
	if idx < 0 {
		r.mu.Unlock()
		return nil, false
	}
	fn(r.conns[idx])
	res := *r.conns[idx]
	r.mu.Unlock()

	r.notify(&res)
	return &res, true
}

func (r *Registry) indexOf(name string) int {
	return slices.IndexFunc(r.conns, func(c *api.DatabaseConnection) bool {
		return c.Name == name
	})
}
