package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/webhook"
)

// CreateSubscription persists a new webhook subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub *webhook.Subscription) error {
	types, err := marshalEventTypes(sub.EventTypes)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO webhook_subscriptions (
			id, tenant_id, url, description, event_types, secret, active,
			total_deliveries, succeeded_deliveries, failed_deliveries, last_triggered_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sub.ID.String(), sub.TenantID.String(), sub.URL, sub.Description, types, sub.Secret, sub.Active,
		sub.TotalDeliveries, sub.SucceededDeliveries, sub.FailedDeliveries, sub.LastTriggeredAt,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create subscription: %w", err)
	}
	return nil
}

// GetSubscription retrieves a subscription by ID.
func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*webhook.Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM webhook_subscriptions WHERE id = $1`,
		subID.String(),
	)

	sub, err := scanSubscription(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("postgres: get subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns subscriptions matching the given options.
func (s *Store) ListSubscriptions(ctx context.Context, opts webhook.ListOpts) ([]*webhook.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if !opts.TenantID.IsNil() {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID.String())
		argIdx++
	}

	query += " ORDER BY created_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// ListActiveSubscriptionsForEvent returns every active subscription
// whose EventTypes set contains t.
func (s *Store) ListActiveSubscriptionsForEvent(ctx context.Context, t webhook.EventType) ([]*webhook.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM webhook_subscriptions
		 WHERE active AND event_types @> $1::jsonb`,
		fmt.Sprintf(`[%q]`, string(t)),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active subscriptions for event: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// UpdateSubscription persists changes to an existing subscription.
func (s *Store) UpdateSubscription(ctx context.Context, sub *webhook.Subscription) error {
	types, err := marshalEventTypes(sub.EventTypes)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_subscriptions SET
			url = $2, description = $3, event_types = $4::jsonb, secret = $5, active = $6,
			total_deliveries = $7, succeeded_deliveries = $8, failed_deliveries = $9,
			last_triggered_at = $10, updated_at = $11
		WHERE id = $1`,
		sub.ID.String(), sub.URL, sub.Description, types, sub.Secret, sub.Active,
		sub.TotalDeliveries, sub.SucceededDeliveries, sub.FailedDeliveries,
		sub.LastTriggeredAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrSubscriptionNotFound
	}
	return nil
}

// DeleteSubscription removes a subscription and its delivery history.
func (s *Store) DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, subID.String())
	if err != nil {
		return fmt.Errorf("postgres: delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrSubscriptionNotFound
	}
	return nil
}

// RecordDelivery persists one delivery attempt and rolls its outcome
// into the owning subscription's running counters.
func (s *Store) RecordDelivery(ctx context.Context, d *webhook.Delivery) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: record delivery: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is a no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO webhook_deliveries (
			id, subscription_id, event_id, event_type, event_timestamp, event_data,
			attempt, scheduled_at, outcome, status_code, error
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11)`,
		d.ID.String(), d.SubscriptionID.String(), d.Event.ID.String(), string(d.Event.Type), d.Event.Timestamp, []byte(d.Event.Data),
		d.Attempt, d.ScheduledAt, string(d.Outcome), d.StatusCode, d.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: record delivery: insert: %w", err)
	}

	succeededDelta, failedDelta := 0, 0
	if d.Outcome == webhook.OutcomeDelivered {
		succeededDelta = 1
	} else {
		failedDelta = 1
	}

	_, err = tx.Exec(ctx, `
		UPDATE webhook_subscriptions
		SET total_deliveries = total_deliveries + 1,
		    succeeded_deliveries = succeeded_deliveries + $2,
		    failed_deliveries = failed_deliveries + $3,
		    last_triggered_at = $4,
		    updated_at = $4
		WHERE id = $1`,
		d.SubscriptionID.String(), succeededDelta, failedDelta, d.ScheduledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record delivery: update subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: record delivery: commit: %w", err)
	}
	return nil
}

// ListDeliveries returns the most recent deliveries for a subscription.
func (s *Store) ListDeliveries(ctx context.Context, subID id.SubscriptionID, limit int) ([]*webhook.Delivery, error) {
	query := `
		SELECT id, subscription_id, event_id, event_type, event_timestamp, event_data,
		       attempt, scheduled_at, outcome, status_code, error
		FROM webhook_deliveries
		WHERE subscription_id = $1
		ORDER BY scheduled_at DESC`
	args := []any{subID.String()}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*webhook.Delivery
	for rows.Next() {
		d, scanErr := scanDelivery(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("postgres: scan delivery row: %w", scanErr)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate delivery rows: %w", err)
	}
	return deliveries, nil
}

const subscriptionColumns = `
	id, tenant_id, url, description, event_types, secret, active,
	total_deliveries, succeeded_deliveries, failed_deliveries, last_triggered_at,
	created_at, updated_at`

func marshalEventTypes(types map[webhook.EventType]bool) ([]byte, error) {
	list := make([]string, 0, len(types))
	for t, on := range types {
		if on {
			list = append(list, string(t))
		}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal event types: %w", err)
	}
	return data, nil
}

func unmarshalEventTypes(data []byte) (map[webhook.EventType]bool, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal event types: %w", err)
	}
	out := make(map[webhook.EventType]bool, len(list))
	for _, t := range list {
		out[webhook.EventType(t)] = true
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*webhook.Subscription, error) {
	var (
		sub                webhook.Subscription
		idStr, tenantIDStr string
		eventTypesRaw      []byte
	)

	err := row.Scan(
		&idStr, &tenantIDStr, &sub.URL, &sub.Description, &eventTypesRaw, &sub.Secret, &sub.Active,
		&sub.TotalDeliveries, &sub.SucceededDeliveries, &sub.FailedDeliveries, &sub.LastTriggeredAt,
		&sub.Entity.CreatedAt, &sub.Entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := id.ParseSubscriptionID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse subscription id %q: %w", idStr, err)
	}
	sub.ID = parsedID

	tenantID, err := id.Parse(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id %q: %w", tenantIDStr, err)
	}
	sub.TenantID = tenantID

	eventTypes, err := unmarshalEventTypes(eventTypesRaw)
	if err != nil {
		return nil, err
	}
	sub.EventTypes = eventTypes

	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*webhook.Subscription, error) {
	var subs []*webhook.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate subscription rows: %w", err)
	}
	return subs, nil
}

func scanDelivery(row pgx.Row) (*webhook.Delivery, error) {
	var (
		d                         webhook.Delivery
		idStr, subIDStr, eventIDStr string
		eventType                 string
		outcome                   string
		eventData                 []byte
	)

	err := row.Scan(
		&idStr, &subIDStr, &eventIDStr, &eventType, &d.Event.Timestamp, &eventData,
		&d.Attempt, &d.ScheduledAt, &outcome, &d.StatusCode, &d.Error,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := id.ParseDeliveryID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse delivery id %q: %w", idStr, err)
	}
	d.ID = parsedID

	subID, err := id.ParseSubscriptionID(subIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse subscription id %q: %w", subIDStr, err)
	}
	d.SubscriptionID = subID

	eventID, err := id.ParseEventID(eventIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", eventIDStr, err)
	}
	d.Event.ID = eventID
	d.Event.Type = webhook.EventType(eventType)
	d.Event.Data = eventData
	d.Outcome = webhook.Outcome(outcome)

	return &d, nil
}
