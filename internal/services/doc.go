// Package services implements the business logic layer between the HTTP
// handlers and the processing engine.
//
// ProcessingService owns the operation manager and job queue: it runs a
// rent roll workbook through the pipeline synchronously, or enqueues it
// as a background job and exposes job lookup and cancellation. It also
// lists and resolves generated CSV files in the output directory.
//
// HealthService aggregates liveness, readiness and version information
// for the health endpoints, including directory write checks and
// websocket and pipeline stats.
//
// Services receive their dependencies through constructors, propagate
// context on every call, and log with the injected slog logger.
package services
