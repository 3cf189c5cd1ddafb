// Package ext defines the extension system for the ingestion core.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued] — job was accepted for processing
//   - [JobStarted] — worker began executing the job
//   - [JobCompleted] — job finished successfully
//   - [JobFailed] — job failed with no attempts remaining
//   - [JobRetrying] — job failed but will be retried
//   - [JobDLQ] — job was moved to the dead letter queue
//
// # Pipeline Lifecycle Hooks
//
//   - [PipelineStageCompleted] — an extraction stage finished for a job
//   - [PipelineStageFailed] — an extraction stage failed for a job
//
// # Webhook Lifecycle Hooks
//
//   - [WebhookDelivered] — a webhook delivery attempt succeeded
//   - [WebhookDeliveryFailed] — a webhook delivery attempt failed
//
// # Other Hooks
//
//   - [RateLimitDenied] — a request was denied by the rate limiter
//   - [Shutdown] — the service is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
