// Package intake implements the document-submission entry point: the
// only place new jobs enter the system from outside the worker pool's
// own retry/DLQ-replay paths. Submit composes admission control, blob
// storage, and job persistence behind a single call so a future HTTP
// layer (or any other caller) has one narrow surface to drive.
package intake
