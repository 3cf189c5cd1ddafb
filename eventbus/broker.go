package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Broker)(nil)
	_ ext.JobStarted   = (*Broker)(nil)
	_ ext.JobCompleted = (*Broker)(nil)
	_ ext.JobFailed    = (*Broker)(nil)
	_ ext.Shutdown     = (*Broker)(nil)
	_ Publisher        = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// Publisher is the narrow interface injected into extract.Pipeline and
// webhook.Service so they can publish events without depending on the
// concrete Broker type.
type Publisher interface {
	Publish(ctx context.Context, t EventType, tenantID string, data any) error
}

// Broker is the in-process event broker. It implements ext.Extension to
// receive job lifecycle callbacks and fans events out to subscribers
// via topic-based pub/sub. webhook.Dispatcher is the primary consumer.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	subscribers sync.Map // subscriberID → *Subscriber

	totalPublished atomic.Int64

	bufferSize int
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// NewBroker creates a new event broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:     NewTopicRegistry(),
		logger:     logger,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "eventbus-broker" }

// Topics returns the topic registry for external use.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	var dropped int64
	b.subscribers.Range(func(_, v any) bool {
		count++
		dropped += v.(*Subscriber).Dropped() //nolint:errcheck // sync.Map always stores *Subscriber
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    dropped,
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// Publish marshals data and broadcasts an event of type t to every
// matching topic. Satisfies Publisher.
func (b *Broker) Publish(_ context.Context, t EventType, tenantID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event data: %w", err)
	}
	b.publish(&Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Data:      raw,
	})
	return nil
}

func (b *Broker) publish(evt *Event) {
	topics := resolveTopics(evt)
	delivered := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))
}

// ── Job lifecycle hooks ─────────────────────────────

func (b *Broker) OnJobStarted(_ context.Context, j *job.Job) error {
	b.publish(&Event{
		Type:      EventProcessingStarted,
		Timestamp: time.Now().UTC(),
		TenantID:  j.TenantID.String(),
		Data: mustMarshal(ProcessingEventData{
			JobID: j.ID.String(),
			Kind:  j.Kind,
		}),
	})
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, j *job.Job, _ time.Duration) error {
	b.publish(&Event{
		Type:      EventProcessingComplete,
		Timestamp: time.Now().UTC(),
		TenantID:  j.TenantID.String(),
		Data: mustMarshal(ProcessingEventData{
			JobID: j.ID.String(),
			Kind:  j.Kind,
		}),
	})
	return nil
}

func (b *Broker) OnJobFailed(_ context.Context, j *job.Job, jobErr error) error {
	b.publish(&Event{
		Type:      EventProcessingFailed,
		Timestamp: time.Now().UTC(),
		TenantID:  j.TenantID.String(),
		Data: mustMarshal(ProcessingEventData{
			JobID: j.ID.String(),
			Kind:  j.Kind,
			Error: jobErr.Error(),
		}),
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("event broker shut down")
	return nil
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("eventbus: marshal event data: " + err.Error())
	}
	return data
}
