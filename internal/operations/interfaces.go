package operations

// WebSocketHub is the subset of the websocket hub the pipeline needs for
// status broadcasting.
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
}

// ProgressReporter is implemented by steps that report incremental progress.
type ProgressReporter interface {
	ReportProgress(progress int, message string) error
}
