package webhook

import (
	"context"

	"github.com/cinco36/iv-ingestion/id"
)

// ListOpts filters subscription listings.
type ListOpts struct {
	TenantID id.ID
	Limit    int
	Offset   int
}

// Store defines the persistence contract for subscriptions and
// delivery records.
type Store interface {
	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)
	ListActiveSubscriptionsForEvent(ctx context.Context, t EventType) ([]*Subscription, error)
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error

	RecordDelivery(ctx context.Context, d *Delivery) error
	ListDeliveries(ctx context.Context, subID id.SubscriptionID, limit int) ([]*Delivery, error)
}
