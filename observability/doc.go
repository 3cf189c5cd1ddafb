// Package observability provides OpenTelemetry-based metrics and tracing
// extensions for the ingestion core. MetricsExtension implements the
// ext lifecycle hooks to record system-wide counters for job enqueue,
// completion, failure, retry, DLQ, pipeline-stage, webhook delivery,
// and rate-limit-denial events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
