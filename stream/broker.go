package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ermey-enterprises/marketalert/ext"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/target"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*Broker)(nil)
	_ ext.PassStarted      = (*Broker)(nil)
	_ ext.PassCompleted    = (*Broker)(nil)
	_ ext.ScheduleRecorded = (*Broker)(nil)
	_ ext.ScanTriggered    = (*Broker)(nil)
	_ ext.ScanSucceeded    = (*Broker)(nil)
	_ ext.ScanFailed       = (*Broker)(nil)
	_ ext.ScanPanicked     = (*Broker)(nil)
	_ ext.Shutdown         = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Publisher forwards events to an external sink (a message bus, a
// websocket hub, ...). Publishing is best-effort and never on the
// correctness path of a scheduler pass.
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
}

// Broker is the real-time stream broker. It implements the ext.Extension
// interface to receive lifecycle events and fans them out to subscribers
// via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Optional external sink.
	publisher Publisher

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// WithPublisher attaches an external sink that receives every event
// alongside the in-process subscribers.
func WithPublisher(p Publisher) BrokerOption {
	return func(b *Broker) { b.publisher = p }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
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
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish broadcasts an event to all matching topics plus any extras.
func (b *Broker) publish(ctx context.Context, evt *Event, extraTopics ...string) {
	evt.ID = id.NewEventID()
	topics := append(resolveTopics(evt), extraTopics...)
	delivered := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))

	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, evt); err != nil {
			b.totalDropped.Add(1)
			b.logger.Warn("stream: external publish failed",
				"event_type", evt.Type,
				"error", err,
			)
		}
	}
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

// scanEventData builds the common payload for scan lifecycle events.
func scanEventData(t target.Target) ScanEventData {
	ids := make([]string, len(t.InstitutionIDs))
	for i, instID := range t.InstitutionIDs {
		ids[i] = instID.String()
	}
	return ScanEventData{
		TenantID:       t.TenantID.String(),
		Region:         t.Region,
		InstitutionIDs: ids,
	}
}

// ── Pass lifecycle hooks ────────────────────────────

func (b *Broker) OnPassStarted(ctx context.Context, triggeredAt time.Time, targets int) error {
	b.publish(ctx, &Event{
		Type:      EventPassStarted,
		Timestamp: time.Now().UTC(),
		Data: mustMarshal(PassEventData{
			TriggeredAt: triggeredAt.Format(time.RFC3339),
			Targets:     targets,
		}),
	})
	return nil
}

func (b *Broker) OnPassCompleted(ctx context.Context, triggeredAt time.Time, succeeded, failed int, elapsed time.Duration) error {
	b.publish(ctx, &Event{
		Type:      EventPassCompleted,
		Timestamp: time.Now().UTC(),
		Data: mustMarshal(PassEventData{
			TriggeredAt: triggeredAt.Format(time.RFC3339),
			Succeeded:   succeeded,
			Failed:      failed,
			ElapsedMs:   elapsed.Milliseconds(),
		}),
	})
	return nil
}

func (b *Broker) OnScheduleRecorded(ctx context.Context, lastRunAt time.Time) error {
	b.publish(ctx, &Event{
		Type:      EventScheduleRecorded,
		Timestamp: time.Now().UTC(),
		Data: mustMarshal(ScheduleEventData{
			LastRunAt: lastRunAt.Format(time.RFC3339),
		}),
	})
	return nil
}

// ── Scan lifecycle hooks ────────────────────────────

func (b *Broker) OnScanTriggered(ctx context.Context, t target.Target) error {
	b.publish(ctx, &Event{
		Type:      EventScanTriggered,
		Timestamp: time.Now().UTC(),
		Topic:     TenantTopic(t.TenantID.String()),
		Data:      mustMarshal(scanEventData(t)),
	}, RegionTopic(t.Region))
	return nil
}

func (b *Broker) OnScanSucceeded(ctx context.Context, t target.Target, matches int, elapsed time.Duration) error {
	data := scanEventData(t)
	data.Matches = matches
	data.ElapsedMs = elapsed.Milliseconds()
	b.publish(ctx, &Event{
		Type:      EventScanSucceeded,
		Timestamp: time.Now().UTC(),
		Topic:     TenantTopic(t.TenantID.String()),
		Data:      mustMarshal(data),
	}, RegionTopic(t.Region))
	return nil
}

func (b *Broker) OnScanFailed(ctx context.Context, t target.Target, reason string) error {
	data := scanEventData(t)
	data.Error = reason
	b.publish(ctx, &Event{
		Type:      EventScanFailed,
		Timestamp: time.Now().UTC(),
		Topic:     TenantTopic(t.TenantID.String()),
		Data:      mustMarshal(data),
	}, RegionTopic(t.Region))
	return nil
}

func (b *Broker) OnScanPanicked(ctx context.Context, t target.Target, detail string) error {
	data := scanEventData(t)
	data.Error = detail
	b.publish(ctx, &Event{
		Type:      EventScanPanicked,
		Timestamp: time.Now().UTC(),
		Topic:     TenantTopic(t.TenantID.String()),
		Data:      mustMarshal(data),
	}, RegionTopic(t.Region))
	return nil
}

// ── Shutdown ────────────────────────────────────────

// OnShutdown closes all subscribers.
func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, val any) bool {
		b.topics.UnsubscribeAll(key.(string))  //nolint:errcheck // keys are strings
		val.(*Subscriber).Close()              //nolint:errcheck // values are *Subscriber
		b.subscribers.Delete(key)
		return true
	})
	return nil
}
