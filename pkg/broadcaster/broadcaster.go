// Package broadcaster implements the pub/sub core: topic registry,
// subscriber identity allocation and fan-out with bounded per-subscriber
// queues. It is shared by every clone of a service handle.
package broadcaster

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

// QueueCapacity is the bounded size of each subscriber's outbound queue.
const QueueCapacity = 128

// Metrics are the counters/gauges a Broadcaster reports into, wired from
// internal/metricsx. A nil Metrics is valid and simply does nothing.
type Metrics struct {
	Published prometheus.Counter
	Delivered prometheus.Counter
	Dropped   prometheus.Counter
}

func (m *Metrics) incPublished() {
	if m != nil && m.Published != nil {
		m.Published.Inc()
	}
}
func (m *Metrics) incDelivered() {
	if m != nil && m.Delivered != nil {
		m.Delivered.Inc()
	}
}
func (m *Metrics) incDropped() {
	if m != nil && m.Dropped != nil {
		m.Dropped.Inc()
	}
}

type subscription struct {
	mu     sync.RWMutex
	queue  chan kvpb.CommandResponse
	closed bool
}

// Broadcaster owns the topic registry and subscription table. The zero
// value is not usable; construct with New.
type Broadcaster struct {
	metrics *Metrics

	topicsMu sync.RWMutex
	topics   map[string]map[uint32]struct{}

	subsMu sync.RWMutex
	subs   map[uint32]*subscription

	nextID uint32
}

func New(metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		metrics: metrics,
		topics:  make(map[string]map[uint32]struct{}),
		subs:    make(map[uint32]*subscription),
	}
}

// allocID returns a fresh subscription id, skipping 0 and any id still
// live in subs (wraparound after ~4 billion subscriptions is handled by
// collision avoidance rather than forbidden outright).
func (b *Broadcaster) allocID() uint32 {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for {
		b.nextID++
		if b.nextID == 0 {
			continue
		}
		if _, live := b.subs[b.nextID]; live {
			continue
		}
		return b.nextID
	}
}

// Subscribe allocates a subscription id, registers it under topic and
// returns the id plus the read-only channel of responses the connection
// loop should forward to the client. The first item enqueued is always
// an informational response whose Values[0] carries the id.
func (b *Broadcaster) Subscribe(topic string) (uint32, <-chan kvpb.CommandResponse) {
	id := b.allocID()
	sub := &subscription{queue: make(chan kvpb.CommandResponse, QueueCapacity)}

	b.subsMu.Lock()
	b.subs[id] = sub
	b.subsMu.Unlock()

	b.topicsMu.Lock()
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[uint32]struct{})
		b.topics[topic] = set
	}
	set[id] = struct{}{}
	b.topicsMu.Unlock()

	sub.queue <- kvpb.CommandResponse{Status: kvpb.StatusOK, Values: []kvpb.Value{kvpb.IntValue(int64(id))}}

	return id, sub.queue
}

// Unsubscribe removes id from topic and from the subscription table and
// closes its queue (the consumer observes end-of-sequence). Returns true
// iff id existed. Idempotent: a second call for the same id returns
// false.
func (b *Broadcaster) Unsubscribe(topic string, id uint32) bool {
	return b.removeSubscription(topic, id)
}

func (b *Broadcaster) removeSubscription(topic string, id uint32) bool {
	b.topicsMu.Lock()
	existed := false
	if set, ok := b.topics[topic]; ok {
		if _, ok := set[id]; ok {
			existed = true
			delete(set, id)
			if len(set) == 0 {
				delete(b.topics, topic)
			}
		}
	}
	b.topicsMu.Unlock()

	if !existed {
		return false
	}

	b.subsMu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.subsMu.Unlock()

	if !ok {
		return existed
	}

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.queue)
	}
	sub.mu.Unlock()

	return existed
}

// removeEverywhere drops id from every topic set and the subscription
// table, used when a connection disconnects without an explicit
// UNSUBSCRIBE. See DESIGN.md for why this replaces "publisher observes a
// closed queue" as the consumer-drop signal.
func (b *Broadcaster) removeEverywhere(id uint32) {
	b.topicsMu.Lock()
	for topic, set := range b.topics {
		if _, ok := set[id]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(b.topics, topic)
			}
		}
	}
	b.topicsMu.Unlock()

	b.subsMu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.subsMu.Unlock()

	if ok {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.queue)
		}
		sub.mu.Unlock()
	}
}

// UnsubscribeAll unsubscribes every (topic, id) pair in ids. The
// connection loop does not call it; it releases subscriptions through
// ReleaseID.
func (b *Broadcaster) UnsubscribeAll(ids map[string]uint32) {
	for topic, id := range ids {
		b.removeSubscription(topic, id)
	}
}

// ReleaseID tears down a subscription id regardless of which topic it
// belongs to, for callers that only tracked the id.
func (b *Broadcaster) ReleaseID(id uint32) {
	b.removeEverywhere(id)
}

// Publish fans values out to every subscriber currently on topic.
// Delivery is best-effort: a full queue drops that payload for that
// subscriber with no retry and no backpressure onto the publisher.
// Publish to a topic with no subscribers is a silent no-op.
func (b *Broadcaster) Publish(topic string, values []kvpb.Value) {
	b.topicsMu.RLock()
	set := b.topics[topic]
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	b.topicsMu.RUnlock()

	b.metrics.incPublished()

	resp := kvpb.CommandResponse{Status: kvpb.StatusOK, Values: values}

	for _, id := range ids {
		b.subsMu.RLock()
		sub, ok := b.subs[id]
		b.subsMu.RUnlock()
		if !ok {
			continue
		}

		sub.mu.RLock()
		if sub.closed {
			sub.mu.RUnlock()
			continue
		}
		select {
		case sub.queue <- resp:
			b.metrics.incDelivered()
		default:
			b.metrics.incDropped()
		}
		sub.mu.RUnlock()
	}
}

// SubscriberCount reports how many live subscribers a topic has, mainly
// for tests and metrics.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.topicsMu.RLock()
	defer b.topicsMu.RUnlock()
	return len(b.topics[topic])
}
