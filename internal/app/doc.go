// Package app assembles the rent roll processing service.
//
// The Application container loads configuration, initializes the logger
// and OpenTelemetry providers, wires the processing engine into the
// operation pipeline, and exposes it all through a chi router. All
// dependencies flow through constructors so every component can be
// tested in isolation.
//
// Route layout:
//
//	GET  /                      service-online banner
//	GET  /api/health[...]       liveness, readiness, version, stats
//	POST /api/process           synchronous upload-and-process
//	POST /api/process/async     enqueue a background job
//	GET  /api/process/jobs      job listing and lookup
//	GET  /api/operations        live pipeline snapshots
//	GET  /api/results           generated CSV files
//	GET  /ws                    websocket progress stream
//	GET  /metrics               Prometheus metrics
//
// Processing routes use the long operation timeout because a large
// workbook can take minutes to analyze and map; everything else runs
// under the standard read timeout.
package app
