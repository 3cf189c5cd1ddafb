package memory

import (
	"context"
	"sort"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/webhook"
)

// ──────────────────────────────────────────────────
// Webhook Store
// ──────────────────────────────────────────────────

func (m *Store) CreateSubscription(_ context.Context, sub *webhook.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *sub
	m.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (m *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*webhook.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscriptions[subID.String()]
	if !ok {
		return nil, ingest.NewError(ingest.CodeSubscriptionNotFound, ingest.CategoryValidation, "subscription not found", nil)
	}
	cp := *sub
	return &cp, nil
}

func (m *Store) ListSubscriptions(_ context.Context, opts webhook.ListOpts) ([]*webhook.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*webhook.Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if !opts.TenantID.IsNil() && sub.TenantID != opts.TenantID {
			continue
		}
		cp := *sub
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

func (m *Store) ListActiveSubscriptionsForEvent(_ context.Context, t webhook.EventType) ([]*webhook.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*webhook.Subscription
	for _, sub := range m.subscriptions {
		if sub.Matches(t) {
			cp := *sub
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *Store) UpdateSubscription(_ context.Context, sub *webhook.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[sub.ID.String()]; !ok {
		return ingest.NewError(ingest.CodeSubscriptionNotFound, ingest.CategoryValidation, "subscription not found", nil)
	}
	cp := *sub
	m.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (m *Store) DeleteSubscription(_ context.Context, subID id.SubscriptionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[subID.String()]; !ok {
		return ingest.NewError(ingest.CodeSubscriptionNotFound, ingest.CategoryValidation, "subscription not found", nil)
	}
	delete(m.subscriptions, subID.String())
	return nil
}

func (m *Store) RecordDelivery(_ context.Context, d *webhook.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := d.SubscriptionID.String()
	cp := *d
	m.deliveries[key] = append(m.deliveries[key], &cp)

	sub, ok := m.subscriptions[key]
	if ok {
		sub.TotalDeliveries++
		if d.Outcome == webhook.OutcomeDelivered {
			sub.SucceededDeliveries++
		} else {
			sub.FailedDeliveries++
		}
		now := d.ScheduledAt
		sub.LastTriggeredAt = &now
	}
	return nil
}

func (m *Store) ListDeliveries(_ context.Context, subID id.SubscriptionID, limit int) ([]*webhook.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.deliveries[subID.String()]
	result := make([]*webhook.Delivery, len(all))
	copy(result, all)

	sort.Slice(result, func(i, k int) bool {
		return result[i].ScheduledAt.After(result[k].ScheduledAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
