// Package builder provides a Go client for the workflow engine's HTTP API
// and a fluent builder for workflow documents
//
// Documents built here can be installed on a running engine, which can then
// be asked to run them, fire webhooks against them, or read back run state
package builder
