package webhook

import (
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/id"
)

// EventType identifies one of the closed set of domain events the bus
// publishes and subscriptions may filter on.
type EventType string

const (
	EventProcessingStarted   EventType = "processing.started"
	EventProcessingProgress  EventType = "processing.progress"
	EventProcessingCompleted EventType = "processing.completed"
	EventProcessingFailed    EventType = "processing.failed"
	EventInspectionCreated   EventType = "inspection.created"
	EventInspectionUpdated   EventType = "inspection.updated"
	EventFindingAdded        EventType = "finding.added"
	EventUserRegistered      EventType = "user.registered"
	EventTest                EventType = "test"
)

// Subscription is a registered webhook endpoint for a tenant.
type Subscription struct {
	ingest.Entity

	ID          id.SubscriptionID `json:"id"`
	TenantID    id.ID             `json:"tenant_id"`
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	EventTypes  map[EventType]bool `json:"event_types"`

	// Secret is the HMAC-SHA256 key used to sign deliveries. Returned
	// to the caller only at creation time; never included in list/get
	// responses thereafter.
	Secret string `json:"-"`

	Active bool `json:"active"`

	TotalDeliveries     int64      `json:"total_deliveries"`
	SucceededDeliveries int64      `json:"succeeded_deliveries"`
	FailedDeliveries    int64      `json:"failed_deliveries"`
	LastTriggeredAt     *time.Time `json:"last_triggered_at,omitempty"`
}

// Matches reports whether the subscription is active and subscribed to
// the given event type.
func (s *Subscription) Matches(t EventType) bool {
	return s.Active && s.EventTypes[t]
}
