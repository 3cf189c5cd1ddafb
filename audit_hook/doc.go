// Package audithook is an ingestion extension that bridges lifecycle events
// to an immutable audit trail backend.
//
// Every job, pipeline, webhook, and rate-limit lifecycle hook emits a
// structured audit event through the [Recorder] interface. The extension
// assigns appropriate severity levels (info for normal operations, warning
// for retries and denials, critical for terminal failures) and rich
// metadata (job kind, stage, elapsed time, errors).
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return myAuditBackend.Write(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobDLQ,
//	        audithook.ActionWebhookDeliveryFailed,
//	    ),
//	)
package audithook
