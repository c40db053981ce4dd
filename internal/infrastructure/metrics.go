package infrastructure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// BusinessMetrics holds the service-level metrics instruments
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Processing metrics
	WorkbooksProcessedTotal metric.Int64Counter
	SheetsAnalyzedTotal     metric.Int64Counter
	RecordsExportedTotal    metric.Int64Counter
	ProcessingDuration      metric.Float64Histogram

	// AI mapping metrics
	AIMappingRequestsTotal  metric.Int64Counter
	AIMappingFallbacksTotal metric.Int64Counter

	// Operation pipeline metrics
	OperationExecutionsTotal metric.Int64Counter
	OperationStepsTotal      metric.Int64Counter

	// Error metrics
	SystemErrors metric.Int64Counter
}

// CreateBusinessMetrics creates the metric instruments on the given meter
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create http_request_duration_seconds: %w", err)
	}

	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests")); err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	if m.WorkbooksProcessedTotal, err = meter.Int64Counter("workbooks_processed_total",
		metric.WithDescription("Total number of rent roll workbooks processed")); err != nil {
		return nil, fmt.Errorf("create workbooks_processed_total: %w", err)
	}

	if m.SheetsAnalyzedTotal, err = meter.Int64Counter("sheets_analyzed_total",
		metric.WithDescription("Total number of worksheet tabs analyzed")); err != nil {
		return nil, fmt.Errorf("create sheets_analyzed_total: %w", err)
	}

	if m.RecordsExportedTotal, err = meter.Int64Counter("records_exported_total",
		metric.WithDescription("Total number of rent roll records exported")); err != nil {
		return nil, fmt.Errorf("create records_exported_total: %w", err)
	}

	if m.ProcessingDuration, err = meter.Float64Histogram("processing_duration_seconds",
		metric.WithDescription("End-to-end workbook processing duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create processing_duration_seconds: %w", err)
	}

	if m.AIMappingRequestsTotal, err = meter.Int64Counter("ai_mapping_requests_total",
		metric.WithDescription("Total number of AI column mapping requests")); err != nil {
		return nil, fmt.Errorf("create ai_mapping_requests_total: %w", err)
	}

	if m.AIMappingFallbacksTotal, err = meter.Int64Counter("ai_mapping_fallbacks_total",
		metric.WithDescription("Total number of rule-based mapping fallbacks")); err != nil {
		return nil, fmt.Errorf("create ai_mapping_fallbacks_total: %w", err)
	}

	if m.OperationExecutionsTotal, err = meter.Int64Counter("operation_executions_total",
		metric.WithDescription("Total number of operation pipeline executions")); err != nil {
		return nil, fmt.Errorf("create operation_executions_total: %w", err)
	}

	if m.OperationStepsTotal, err = meter.Int64Counter("operation_steps_total",
		metric.WithDescription("Total number of operation step executions")); err != nil {
		return nil, fmt.Errorf("create operation_steps_total: %w", err)
	}

	if m.SystemErrors, err = meter.Int64Counter("system_errors_total",
		metric.WithDescription("Total number of system errors by component")); err != nil {
		return nil, fmt.Errorf("create system_errors_total: %w", err)
	}

	return m, nil
}

// AddSpanEvent adds an event to the active span in the context
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}
