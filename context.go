package ingest

import "context"

// Context is the execution context for ingest handlers.
// It is a simple alias for context.Context; tenant scope is injected
// via the tenant package on the stdlib context.
type Context = context.Context
