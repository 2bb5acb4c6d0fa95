// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the engine, operator nodes and runner use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - StructuredLogger with run/flow context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(registry, func(o *engine.Options) { o.Logger = logger })
//
// Messages follow a component.action.phase naming scheme, for example
// "engine.node.start"; details go into key/value attributes.
package logging
