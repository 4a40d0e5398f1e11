package api

import (
	"errors"
	"fmt"
	"time"
)

type (
	// DatabaseType names the engine behind a connection
	DatabaseType string

	// ConnectionStatus is the last known state of a connection
	ConnectionStatus string

	// Operation is a database gateway operation name
	Operation string

	// DatabaseConnection describes one database reachable through the
	// gateway. Scripts refer to connections by Name only
	DatabaseConnection struct {
		ID               string           `json:"id,omitempty"`
		Name             string           `json:"name"`
		Type             DatabaseType     `json:"type"`
		ConnectionString string           `json:"connectionString,omitempty"`
		Host             string           `json:"host,omitempty"`
		Port             int              `json:"port,omitempty"`
		Database         string           `json:"database,omitempty"`
		User             string           `json:"user,omitempty"`
		Password         string           `json:"password,omitempty"`
		Status           ConnectionStatus `json:"status"`
		Error            string           `json:"error,omitempty"`
		CreatedAt        time.Time        `json:"createdAt,omitzero"`
		ConnectedAt      time.Time        `json:"connectedAt,omitzero"`
	}

	// ConnectionSummary is the script-visible view of a connection
	ConnectionSummary struct {
		Name   string           `json:"name"`
		Type   DatabaseType     `json:"type"`
		Status ConnectionStatus `json:"status"`
	}

	// DatabaseOptions carries either NoSQL (collection/query/data) or SQL
	// (sql/params) operation options. Fields are forwarded unmodified
	DatabaseOptions map[string]any

	// DatabaseExecuteRequest is sent to the gateway to run an operation
	DatabaseExecuteRequest struct {
		ConnectionConfig *DatabaseConnection `json:"connectionConfig"`
		Operation        Operation           `json:"operation"`
		Options          DatabaseOptions     `json:"options"`
	}

	// DatabaseExecuteResponse is returned by the gateway for an operation
	DatabaseExecuteResponse struct {
		Success   bool      `json:"success"`
		Result    any       `json:"result,omitempty"`
		Error     string    `json:"error,omitempty"`
		Operation Operation `json:"operation,omitempty"`
		Timestamp string    `json:"timestamp,omitempty"`
	}

	// DatabaseTestRequest asks the gateway to test a connection
	DatabaseTestRequest struct {
		ConnectionConfig *DatabaseConnection `json:"connectionConfig"`
	}

	// DatabaseTestResponse is returned by the gateway for a test
	DatabaseTestResponse struct {
		Success bool         `json:"success"`
		Message string       `json:"message,omitempty"`
		Type    DatabaseType `json:"type,omitempty"`
		Error   string       `json:"error,omitempty"`
	}
)

const (
	DatabaseMongo    DatabaseType = "mongodb"
	DatabasePostgres DatabaseType = "postgresql"
	DatabaseMySQL    DatabaseType = "mysql"
	DatabaseFirebase DatabaseType = "firebase"
)

const (
	ConnectionIdle      ConnectionStatus = "idle"
	ConnectionTesting   ConnectionStatus = "testing"
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionError     ConnectionStatus = "error"
)

const (
	OpFind       Operation = "find"
	OpFindOne    Operation = "findOne"
	OpInsert     Operation = "insert"
	OpInsertMany Operation = "insertMany"
	OpUpdate     Operation = "update"
	OpUpdateMany Operation = "updateMany"
	OpDelete     Operation = "delete"
	OpDeleteMany Operation = "deleteMany"
	OpCount      Operation = "count"
	OpQuery      Operation = "query"
)

var (
	ErrConnectionNameRequired = errors.New("connection name is required")
	ErrInvalidDatabaseType    = errors.New("invalid database type")
	ErrInvalidOperation       = errors.New("invalid database operation")
)

var operations = map[Operation]bool{
	OpFind: true, OpFindOne: true, OpInsert: true, OpInsertMany: true,
	OpUpdate: true, OpUpdateMany: true, OpDelete: true, OpDeleteMany: true,
	OpCount: true, OpQuery: true,
}

// Validate checks the operation against the closed set the gateway accepts
func (o Operation) Validate() error {
	if !operations[o] {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, string(o))
	}
	return nil
}

// IsSQL returns true for engines that take sql/params options
func (t DatabaseType) IsSQL() bool {
	return t == DatabasePostgres || t == DatabaseMySQL
}

// Validate checks that the connection can be registered
func (c *DatabaseConnection) Validate() error {
	if c.Name == "" {
		return ErrConnectionNameRequired
	}
	switch c.Type {
	case DatabaseMongo, DatabasePostgres, DatabaseMySQL, DatabaseFirebase:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDatabaseType, string(c.Type))
	}
}

// Summary returns the script-visible view of the connection
func (c *DatabaseConnection) Summary() ConnectionSummary {
	return ConnectionSummary{
		Name:   c.Name,
		Type:   c.Type,
		Status: c.Status,
	}
}
