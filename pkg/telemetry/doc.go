// Package telemetry provides structured logging and metrics for
// pgtend. Logging wraps zerolog with component and run-scoped child
// loggers; metrics are Prometheus instruments on an isolated registry.
package telemetry
