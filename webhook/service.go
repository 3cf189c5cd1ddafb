package webhook

import (
	"context"
	"fmt"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/id"
)

// Service provides the subscription CRUD surface: create/list/delete.
type Service struct {
	store Store
}

// NewService creates a subscription service over the given Store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateSubscriptionRequest is the input to CreateSubscription.
type CreateSubscriptionRequest struct {
	TenantID    id.ID
	URL         string
	Description string
	EventTypes  []EventType
}

// CreateSubscription persists a new subscription with a freshly
// generated secret and returns it. The secret is present on this
// returned value only; subsequent Get/List calls never include it.
func (s *Service) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	if req.URL == "" {
		return nil, ingest.NewError(ingest.CodeInvalidPayload, ingest.CategoryValidation, "url is required", nil)
	}
	if len(req.EventTypes) == 0 {
		return nil, ingest.NewError(ingest.CodeInvalidPayload, ingest.CategoryValidation, "at least one event type is required", nil)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	types := make(map[EventType]bool, len(req.EventTypes))
	for _, t := range req.EventTypes {
		types[t] = true
	}

	sub := &Subscription{
		Entity:      ingest.NewEntity(),
		ID:          id.NewSubscriptionID(),
		TenantID:    req.TenantID,
		URL:         req.URL,
		Description: req.Description,
		EventTypes:  types,
		Secret:      secret,
		Active:      true,
	}

	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("webhook: create subscription: %w", err)
	}

	return sub, nil
}

// ListSubscriptions returns subscriptions for a tenant. Secret is
// always zeroed on the returned values.
func (s *Service) ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error) {
	subs, err := s.store.ListSubscriptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		sub.Secret = ""
	}
	return subs, nil
}

// DeleteSubscription soft-deletes a subscription (sets Active=false).
func (s *Service) DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error {
	sub, err := s.store.GetSubscription(ctx, subID)
	if err != nil {
		return ingest.NewError(ingest.CodeSubscriptionNotFound, ingest.CategoryValidation, "subscription not found", err)
	}
	sub.Active = false
	sub.Touch()
	return s.store.UpdateSubscription(ctx, sub)
}
