// Package server implements the HTTP API of the workflow engine
//
// This package provides REST endpoints for installing and running
// workflows, managing webhooks, schedules, variables and database
// connections, reading history and console logs, and a WebSocket stream
// of live engine events
package server
