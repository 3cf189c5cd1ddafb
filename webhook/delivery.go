package webhook

import (
	"encoding/json"
	"time"

	"github.com/cinco36/iv-ingestion/id"
)

// Outcome is the result of one delivery attempt. No status in this
// version is ever classified permanent_fail; a non-2xx response or a
// transport error/timeout is always transient_fail.
type Outcome string

const (
	OutcomeDelivered     Outcome = "delivered"
	OutcomeTransientFail Outcome = "transient_fail"
)

// Event is the payload published on the event bus and, after
// filtering, handed to the Dispatcher for fan-out.
type Event struct {
	ID        id.EventID      `json:"id"`
	Type      EventType       `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Delivery is one HTTP POST of an Event to one Subscription.
type Delivery struct {
	ID             id.DeliveryID     `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	Event          Event             `json:"event"`
	Attempt        int               `json:"attempt"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	Outcome        Outcome           `json:"outcome,omitempty"`
	StatusCode     int               `json:"status_code,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// wireBody is the exact JSON body shape sent in every delivery POST.
type wireBody struct {
	Event     EventType       `json:"event"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}
