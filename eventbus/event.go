// Package eventbus provides an in-process event broker that bridges
// job and pipeline lifecycle events to consumers such as the webhook
// dispatcher, via topic-based pub/sub.
package eventbus

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the bus. The
// set is closed: only these event types are ever published or
// subscribed to a webhook.
type EventType string

const (
	EventProcessingStarted  EventType = "processing.started"
	EventProcessingProgress EventType = "processing.progress"
	EventProcessingComplete EventType = "processing.completed"
	EventProcessingFailed   EventType = "processing.failed"

	EventInspectionCreated EventType = "inspection.created"
	EventInspectionUpdated EventType = "inspection.updated"

	EventFindingAdded EventType = "finding.added"

	EventUserRegistered EventType = "user.registered"

	// EventTest is published only by the subscription-test operation.
	EventTest EventType = "test"
)

// Event is the envelope carried on topic channels and handed to
// webhook.Dispatcher for fan-out.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"ts"`
	Topic     string          `json:"topic"`
	TenantID  string          `json:"tenant_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// ProcessingEventData is the payload for processing.* events.
type ProcessingEventData struct {
	JobID    string `json:"job_id"`
	Kind     string `json:"kind"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}

// InspectionEventData is the payload for inspection.* events.
type InspectionEventData struct {
	JobID         string `json:"job_id"`
	InspectionID  string `json:"inspection_id"`
	PropertyID    string `json:"property_id,omitempty"`
}

// FindingEventData is the payload for finding.added events.
type FindingEventData struct {
	JobID     string `json:"job_id"`
	FindingID string `json:"finding_id"`
	Severity  string `json:"severity"`
	Category  string `json:"category"`
}

// UserEventData is the payload for user.registered events.
type UserEventData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}
