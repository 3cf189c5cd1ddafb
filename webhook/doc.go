// Package webhook fans out published domain events to subscriber
// endpoints: HMAC-signed HTTP deliveries with bounded, back-off
// retries.
//
// # Subscription
//
// A [Subscription] pairs a target URL and an event-type set with an
// HMAC secret generated at creation time and returned exactly once.
// [Service.CreateSubscription] persists it; [Service.ListSubscriptions]
// and [Service.DeleteSubscription] (soft: sets Active=false) round out
// the CRUD surface.
//
// # Delivery
//
// [Dispatcher] subscribes to the event bus and, for each published
// event, enqueues one [Delivery] per active Subscription whose
// EventTypes set contains the event's type. Deliveries run on the
// Dispatcher's own bounded worker pool (default concurrency 8),
// independent of the extraction worker pool.
//
// Wire format, headers, signature computation, 30s timeout, and the
// five-attempt retry schedule (1s, 5s, 15s, 60s, 300s) are implemented
// in dispatcher.go and sign.go. No HTTP status is ever classified a permanent
// failure in this version; exhausted deliveries are dropped with a
// warning log and a counter increment.
package webhook
