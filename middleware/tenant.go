package middleware

import (
	"context"

	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/tenant"
)

// Tenant returns middleware that attaches the job's TenantID to the
// context, so handlers (and the extraction pipeline) see the same
// tenant scope the original submit request carried.
func Tenant() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx = tenant.WithID(ctx, j.TenantID.String())
		return next(ctx)
	}
}
