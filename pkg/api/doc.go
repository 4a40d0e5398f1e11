// Package api defines the public data model shared by the engine, the
// trigger sources and the HTTP surface: workflow documents, run state,
// database connection descriptors, trigger descriptors and event payloads
package api
