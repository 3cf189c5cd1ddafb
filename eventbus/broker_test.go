package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBrokerSubscribeAndPublish(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	sub := b.Subscribe("sub-1", EventTopic(EventInspectionCreated))

	evt := &Event{
		Type:      EventInspectionCreated,
		Timestamp: time.Now().UTC(),
		Data:      json.RawMessage(`{"inspection_id":"insp-123"}`),
	}
	b.publish(evt)

	select {
	case received := <-sub.C():
		if received.Type != EventInspectionCreated {
			t.Errorf("Type = %q, want %q", received.Type, EventInspectionCreated)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerFirehoseReceivesEverything(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	firehose := b.Subscribe("firehose-sub", TopicAll)
	scoped := b.Subscribe("scoped-sub", EventTopic(EventProcessingComplete))

	evt := &Event{
		Type:      EventProcessingComplete,
		Timestamp: time.Now().UTC(),
		Data:      json.RawMessage(`{}`),
	}
	b.publish(evt)

	for _, sub := range []*Subscriber{firehose, scoped} {
		select {
		case <-sub.C():
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s timed out", sub.ID())
		}
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	sub := b.Subscribe("sub-rm", TopicAll)
	b.RemoveSubscriber("sub-rm")

	evt := &Event{Type: EventTest, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}
	b.publish(evt)

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatal("channel should be closed after RemoveSubscriber")
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBrokerStats(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	_ = b.Subscribe("s1", EventTopic(EventProcessingStarted))
	_ = b.Subscribe("s2", EventTopic(EventFindingAdded), TopicAll)

	stats := b.Stats()
	if stats.SubscriberCount != 2 {
		t.Errorf("SubscriberCount = %d, want 2", stats.SubscriberCount)
	}
	if stats.TopicCount < 2 {
		t.Errorf("TopicCount = %d, want >= 2", stats.TopicCount)
	}
}

func TestBrokerPublishViaPublisherInterface(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	sub := b.Subscribe("pub-sub", EventTopic(EventFindingAdded))

	var pub Publisher = b
	err := pub.Publish(context.Background(), EventFindingAdded, "tenant-1", FindingEventData{
		JobID:     "job-1",
		FindingID: "finding-1",
		Severity:  "major",
		Category:  "electrical",
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	select {
	case evt := <-sub.C():
		if evt.TenantID != "tenant-1" {
			t.Errorf("TenantID = %q, want tenant-1", evt.TenantID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestSubscriberDropsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("overflow-sub", 2)

	evt1 := &Event{Type: EventTest, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{"n":1}`)}
	evt2 := &Event{Type: EventTest, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{"n":2}`)}
	evt3 := &Event{Type: EventTest, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{"n":3}`)}

	if !sub.send(evt1) || !sub.send(evt2) {
		t.Fatal("first two sends should fill the buffer")
	}

	if !sub.send(evt3) {
		t.Fatal("send on a full buffer should still succeed by dropping the oldest")
	}
	if sub.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", sub.Dropped())
	}

	// evt1 was dropped; evt2 then evt3 remain.
	first := <-sub.C()
	if first != evt2 {
		t.Error("expected the oldest surviving event (evt2) to be read first")
	}
	second := <-sub.C()
	if second != evt3 {
		t.Error("expected evt3 to be read second")
	}
}

func TestSubscriberFilter(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("filter-sub", 10)
	sub.SetFilter(func(e *Event) bool {
		return e.Type == EventProcessingFailed
	})

	if sub.send(&Event{Type: EventProcessingComplete, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}) {
		t.Fatal("completed event should be filtered out")
	}
	if !sub.send(&Event{Type: EventProcessingFailed, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}) {
		t.Fatal("failed event should pass filter")
	}
}

func TestValidateEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		t     EventType
		valid bool
	}{
		{EventProcessingStarted, true},
		{EventProcessingProgress, true},
		{EventInspectionCreated, true},
		{EventFindingAdded, true},
		{EventUserRegistered, true},
		{EventTest, true},
		{"bogus.type", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.t), func(t *testing.T) {
			err := ValidateEventType(tt.t)
			if tt.valid && err != nil {
				t.Errorf("ValidateEventType(%q) returned error: %v", tt.t, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateEventType(%q) should return error", tt.t)
			}
		})
	}
}

func TestTopicRegistry(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()

	sub1 := NewSubscriber("s1", 10)
	sub2 := NewSubscriber("s2", 10)

	tr.Subscribe("topic-a", sub1)
	tr.Subscribe("topic-a", sub2)
	tr.Subscribe("topic-b", sub1)

	if tr.TopicCount() != 2 {
		t.Errorf("TopicCount = %d, want 2", tr.TopicCount())
	}
	if tr.SubscriberCount("topic-a") != 2 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 2", tr.SubscriberCount("topic-a"))
	}

	tr.Unsubscribe("topic-a", "s2")
	if tr.SubscriberCount("topic-a") != 1 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 1", tr.SubscriberCount("topic-a"))
	}

	tr.UnsubscribeAll("s1")
	if tr.TopicCount() != 0 {
		t.Errorf("TopicCount after UnsubscribeAll = %d, want 0", tr.TopicCount())
	}
}

func TestBroadcastDeduplication(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()
	sub := NewSubscriber("dedup-sub", 10)

	tr.Subscribe("topic-x", sub)
	tr.Subscribe("topic-y", sub)

	evt := &Event{Type: EventTest, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}

	delivered := tr.Broadcast([]string{"topic-x", "topic-y"}, evt)
	if delivered != 1 {
		t.Errorf("Broadcast delivered to %d subscribers, want 1 (deduplicated)", delivered)
	}
}

func TestResolveTopics(t *testing.T) {
	t.Parallel()

	evt := &Event{Type: EventInspectionCreated}
	topics := resolveTopics(evt)

	expected := []string{TopicAll, EventTopic(EventInspectionCreated)}
	if len(topics) != len(expected) {
		t.Fatalf("got %d topics, want %d: %v", len(topics), len(expected), topics)
	}
	for i, topic := range topics {
		if topic != expected[i] {
			t.Errorf("topic[%d] = %q, want %q", i, topic, expected[i])
		}
	}
}
