// Package util provides small generic containers shared by the engine,
// the trigger scheduler and the HTTP server
package util
