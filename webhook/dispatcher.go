package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cinco36/iv-ingestion/backoff"
	"github.com/cinco36/iv-ingestion/eventbus"
	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/id"
)

// DefaultConcurrency is the default number of deliveries the Dispatcher
// runs at once, independent of the extraction worker pool.
const DefaultConcurrency = 8

// DefaultMaxAttempts is the number of delivery attempts before a
// delivery is dropped, matching the fixed retry schedule in backoff.Schedule.
const DefaultMaxAttempts = 5

const deliveryTimeout = 30 * time.Second

// Dispatcher subscribes to the event bus's firehose topic and, for each
// published event, enqueues one Delivery per active Subscription whose
// EventTypes set contains the event's type. Deliveries run on their own
// bounded pool of goroutines, gated by a counting semaphore.
type Dispatcher struct {
	store   Store
	ext     *ext.Registry
	client  *http.Client
	backoff backoff.Strategy
	logger  *slog.Logger

	concurrency int
	maxAttempts int

	sub  *eventbus.Subscriber
	sem  chan struct{}
	wg   sync.WaitGroup
	stop chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConcurrency sets the maximum number of deliveries in flight at once.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithMaxAttempts overrides the number of delivery attempts before a
// delivery is dropped.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxAttempts = n }
}

// WithHTTPClient overrides the HTTP client used for delivery POSTs.
func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.client = c }
}

// WithBackoff overrides the retry delay strategy between attempts.
func WithBackoff(s backoff.Strategy) DispatcherOption {
	return func(d *Dispatcher) { d.backoff = s }
}

// NewDispatcher creates a Dispatcher subscribed to every event the
// broker publishes. Call Start to begin consuming.
func NewDispatcher(store Store, extensions *ext.Registry, broker *eventbus.Broker, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		ext:         extensions,
		client:      &http.Client{Timeout: deliveryTimeout},
		backoff:     backoff.NewSchedule(),
		logger:      logger,
		concurrency: DefaultConcurrency,
		maxAttempts: DefaultMaxAttempts,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sem = make(chan struct{}, d.concurrency)
	d.sub = broker.Subscribe("webhook-dispatcher", eventbus.TopicAll)
	return d
}

// Start launches the consumer loop. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.consume(ctx)
}

// Stop signals the consumer loop and all in-flight deliveries to wind
// down and waits for them to finish.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
}

func (d *Dispatcher) consume(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case evt, ok := <-d.sub.C():
			if !ok {
				return
			}
			d.fanOut(ctx, evt)
		}
	}
}

// fanOut matches evt against every active subscription for its type
// and spawns one delivery goroutine per match.
func (d *Dispatcher) fanOut(ctx context.Context, evt *eventbus.Event) {
	t := EventType(evt.Type)
	subs, err := d.store.ListActiveSubscriptionsForEvent(ctx, t)
	if err != nil {
		d.logger.Error("list subscriptions for event failed",
			slog.String("event", string(evt.Type)), slog.String("error", err.Error()))
		return
	}

	for _, sub := range subs {
		d.wg.Add(1)
		go func(sub *Subscription) {
			defer d.wg.Done()
			select {
			case d.sem <- struct{}{}:
			case <-d.stop:
				return
			}
			defer func() { <-d.sem }()
			d.deliver(ctx, sub, evt)
		}(sub)
	}
}

// deliver attempts delivery of evt to sub up to maxAttempts times,
// sleeping the configured backoff delay between attempts and recording
// every attempt. No response status is ever classified a permanent
// failure in this version: a non-2xx response, a timeout, or a
// transport error are all transient_fail, and retried the same way.
func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, evt *eventbus.Event) {
	eventID := id.NewEventID()
	body, err := json.Marshal(wireBody{
		Event:     EventType(evt.Type),
		Timestamp: evt.Timestamp.Format(time.RFC3339),
		Data:      evt.Data,
		ID:        eventID.String(),
	})
	if err != nil {
		d.logger.Error("marshal webhook body failed",
			slog.String("subscription_id", sub.ID.String()), slog.String("error", err.Error()))
		return
	}
	sig := Sign(body, sub.Secret)

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		deliveryID := id.NewDeliveryID()
		outcome, status, deliverErr := d.attempt(ctx, sub, body, sig, deliveryID, EventType(evt.Type), attempt)

		del := &Delivery{
			ID:             deliveryID,
			SubscriptionID: sub.ID,
			Event: Event{
				ID:        eventID,
				Type:      EventType(evt.Type),
				Timestamp: evt.Timestamp,
				Data:      evt.Data,
			},
			Attempt:     attempt,
			ScheduledAt: time.Now().UTC(),
			Outcome:     outcome,
			StatusCode:  status,
		}
		if deliverErr != nil {
			del.Error = deliverErr.Error()
		}
		if recErr := d.store.RecordDelivery(ctx, del); recErr != nil {
			d.logger.Error("record delivery failed",
				slog.String("subscription_id", sub.ID.String()), slog.String("error", recErr.Error()))
		}

		if outcome == OutcomeDelivered {
			d.ext.EmitWebhookDelivered(ctx, sub.ID, string(evt.Type), attempt)
			return
		}
		d.ext.EmitWebhookDeliveryFailed(ctx, sub.ID, string(evt.Type), attempt, deliverErr)

		if attempt == d.maxAttempts {
			d.logger.Warn("webhook delivery exhausted",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("event", string(evt.Type)),
				slog.Int("attempts", attempt),
			)
			return
		}

		select {
		case <-time.After(d.backoff.Delay(attempt)):
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		}
	}
}

// attempt performs one HTTP POST of body to sub.URL and classifies the
// outcome: any 2xx status is delivered, everything else (including
// transport errors and the client's own 30s timeout) is transient_fail.
func (d *Dispatcher) attempt(ctx context.Context, sub *Subscription, body []byte, sig string, deliveryID id.DeliveryID, eventType EventType, attemptNum int) (Outcome, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return OutcomeTransientFail, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "iv-ingestion-webhook/1.0")
	req.Header.Set("X-Webhook-Signature", sig)
	req.Header.Set("X-Webhook-Event", string(eventType))
	req.Header.Set("X-Webhook-Delivery", deliveryID.String())
	req.Header.Set("X-Webhook-Attempt", fmt.Sprintf("%d", attemptNum))

	resp, err := d.client.Do(req)
	if err != nil {
		return OutcomeTransientFail, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return OutcomeDelivered, resp.StatusCode, nil
	}
	return OutcomeTransientFail, resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
}
