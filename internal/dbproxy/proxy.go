package dbproxy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

// Proxy shapes script database calls into gateway requests. It resolves
// connection names against a Registry and never talks to a database itself
type Proxy struct {
	registry *Registry
	gateway  Gateway
}

// NewProxy creates a Proxy over the registry's connections
func NewProxy(reg *Registry, gw Gateway) *Proxy {
	return &Proxy{
		registry: reg,
		gateway:  gw,
	}
}

// Query forwards one operation to the gateway. Unknown connection names
// fail before any network call
func (p *Proxy) Query(
	ctx context.Context, name string, op api.Operation,
	opts api.DatabaseOptions,
) (any, error) {
	conn, ok := p.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = api.DatabaseOptions{}
	}

	slog.Debug("Forwarding database operation",
		log.Connection(name),
		slog.String("operation", string(op)))

	return p.gateway.Execute(ctx, &api.DatabaseExecuteRequest{
		ConnectionConfig: conn,
		Operation:        op,
		Options:          opts,
	})
}

// Connection returns the script-visible view of a named connection
func (p *Proxy) Connection(name string) (api.ConnectionSummary, bool) {
	conn, ok := p.registry.Get(name)
	if !ok {
		return api.ConnectionSummary{}, false
	}
	return conn.Summary(), true
}

// Connections lists every connection scripts may use
func (p *Proxy) Connections() []api.ConnectionSummary {
	return p.registry.Summaries()
}

// Find returns the documents in collection matching query
func (p *Proxy) Find(
	ctx context.Context, name, collection string, query any,
) (any, error) {
	return p.Query(ctx, name, api.OpFind, collectionOpts(collection, query))
}

// FindOne returns the first document in collection matching query
func (p *Proxy) FindOne(
	ctx context.Context, name, collection string, query any,
) (any, error) {
	return p.Query(ctx, name, api.OpFindOne,
		collectionOpts(collection, query),
	)
}

// Insert adds one document to collection
func (p *Proxy) Insert(
	ctx context.Context, name, collection string, data any,
) (any, error) {
	return p.Query(ctx, name, api.OpInsert, api.DatabaseOptions{
		"collection": collection,
		"data":       data,
	})
}

// InsertMany adds several documents to collection
func (p *Proxy) InsertMany(
	ctx context.Context, name, collection string, data any,
) (any, error) {
	return p.Query(ctx, name, api.OpInsertMany, api.DatabaseOptions{
		"collection": collection,
		"data":       data,
	})
}

// Update applies data to the first document matching query
func (p *Proxy) Update(
	ctx context.Context, name, collection string, query, data any,
) (any, error) {
	return p.Query(ctx, name, api.OpUpdate,
		updateOpts(collection, query, data),
	)
}

// UpdateMany applies data to every document matching query
func (p *Proxy) UpdateMany(
	ctx context.Context, name, collection string, query, data any,
) (any, error) {
	return p.Query(ctx, name, api.OpUpdateMany,
		updateOpts(collection, query, data),
	)
}

// Delete removes the first document matching query
func (p *Proxy) Delete(
	ctx context.Context, name, collection string, query any,
) (any, error) {
	return p.Query(ctx, name, api.OpDelete,
		collectionOpts(collection, query),
	)
}

// DeleteMany removes every document matching query
func (p *Proxy) DeleteMany(
	ctx context.Context, name, collection string, query any,
) (any, error) {
	return p.Query(ctx, name, api.OpDeleteMany,
		collectionOpts(collection, query),
	)
}

// Count returns the number of documents matching query
func (p *Proxy) Count(
	ctx context.Context, name, collection string, query any,
) (any, error) {
	return p.Query(ctx, name, api.OpCount, collectionOpts(collection, query))
}

// FindSQL runs a parameterized SQL statement
func (p *Proxy) FindSQL(
	ctx context.Context, name, sql string, params []any,
) (any, error) {
	if params == nil {
		params = []any{}
	}
	return p.Query(ctx, name, api.OpQuery, api.DatabaseOptions{
		"sql":    sql,
		"params": params,
	})
}

// InsertSQL runs a SQL statement given as {sql, params} options
func (p *Proxy) InsertSQL(
	ctx context.Context, name string, opts api.DatabaseOptions,
) (any, error) {
	return p.Query(ctx, name, api.OpQuery, opts)
}

func collectionOpts(collection string, query any) api.DatabaseOptions {
	if query == nil {
		query = map[string]any{}
	}
	return api.DatabaseOptions{
		"collection": collection,
		"query":      query,
	}
}

func updateOpts(collection string, query, data any) api.DatabaseOptions {
	res := collectionOpts(collection, query)
	res["data"] = data
	return res
}
