// Package operations orchestrates the rent roll processing pipeline.
//
// A pipeline run is an operation built from four steps executed in
// dependency order: tab analysis, column mapping, row grouping, and CSV
// export. Steps share intermediate results through an OperationState; the
// workbook session opened by the analysis step is parked there and released
// by the manager when the run finishes.
//
// The Manager executes operations with per-step timeouts and retry, the
// Registry holds the step graph, and the StatusBroadcaster pushes complete
// operation snapshots over the websocket hub on every state change. The
// JobQueue runs operations asynchronously on a worker pool so HTTP uploads
// can return a job ID immediately.
package operations
