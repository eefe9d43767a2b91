// Package topic provides the per-name state of the broker: subscribers,
// bounded history and counters.
package topic

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"pubsub/broker/subscription"
	"pubsub/types/client/response"
)

// HistoryLimit is the number of messages a topic keeps for replay.
const HistoryLimit = 100

// Info is a point-in-time view of a topic.
type Info struct {
	Name        string
	Subscribers int
	Messages    int64
	Dropped     int64
}

type entry struct {
	message     json.RawMessage
	publishedAt time.Time
}

// Topic is a named channel with its own subscriber set and history.
//
// mu is the critical section that orders history appends, replay and
// fan-out. subsMu only guards the subscriber map so that counts and
// removals never wait on a publish in progress. Lock order is mu, subsMu.
type Topic struct {
	name string

	mu      sync.Mutex
	history [HistoryLimit]entry
	head    int
	size    int

	subsMu sync.RWMutex
	subs   map[string]*subscription.Subscription

	messages atomic.Int64
	dropped  atomic.Int64
}

// New creates and initializes a new Topic.
func New(name string) *Topic {
	return &Topic{
		name: name,
		subs: make(map[string]*subscription.Subscription),
	}
}

// Name returns the topic name.
func (t *Topic) Name() string {
	return t.name
}

// AppendHistory stores a message at the tail of the history, evicting the
// oldest one when the history is full.
func (t *Topic) AppendHistory(message json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendHistory(entry{message: bytes.Clone(message), publishedAt: time.Now()})
}

func (t *Topic) appendHistory(e entry) {
	if t.size < HistoryLimit {
		t.history[(t.head+t.size)%HistoryLimit] = e
		t.size++
		return
	}
	t.history[t.head] = e
	t.head = (t.head + 1) % HistoryLimit
}

// LastN returns up to n of the most recent messages, oldest first.
func (t *Topic) LastN(n int) []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.lastN(n)
	messages := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		messages[i] = e.message
	}
	return messages
}

func (t *Topic) lastN(n int) []entry {
	if n > t.size {
		n = t.size
	}
	if n <= 0 {
		return nil
	}
	entries := make([]entry, n)
	start := t.head + t.size - n
	for i := range entries {
		entries[i] = t.history[(start+i)%HistoryLimit]
	}
	return entries
}

// Publish appends the message to the history and offers an event frame to
// every registered subscriber. It never waits on a subscriber: frames that
// do not fit a subscriber's queue are dropped and counted. It returns the
// number of drops caused by this call.
func (t *Topic) Publish(message json.RawMessage) int {
	e := entry{message: bytes.Clone(message), publishedAt: time.Now()}
	frame := response.NewEvent(t.name, e.message, e.publishedAt)

	t.mu.Lock()
	t.appendHistory(e)
	t.messages.Add(1)

	subs := t.snapshot()
	delivered := make([]*subscription.Subscription, 0, len(subs))
	dropped := 0
	for _, sub := range subs {
		if sub.Offer(frame) {
			delivered = append(delivered, sub)
			continue
		}
		dropped++
	}
	if dropped > 0 {
		t.dropped.Add(int64(dropped))
	}
	t.mu.Unlock()

	for _, sub := range delivered {
		sub.Drain()
	}
	return dropped
}

// Subscribe registers sub under its client id, replacing any subscription
// registered under the same id, and replays up to lastN history messages to
// it. A concurrent Publish is either part of the replay or delivered live
// afterwards. Replay stops at the first frame the queue refuses; those
// frames were never published to sub, so they do not count as drops. The
// replaced subscription, if any, is returned.
func (t *Topic) Subscribe(sub *subscription.Subscription, lastN int) *subscription.Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.subsMu.Lock()
	prev := t.subs[sub.ClientID()]
	t.subs[sub.ClientID()] = sub
	t.subsMu.Unlock()

	for _, e := range t.lastN(lastN) {
		if !sub.Enqueue(response.NewEvent(t.name, e.message, e.publishedAt)) {
			break
		}
	}
	if prev == sub {
		return nil
	}
	return prev
}

// Unsubscribe removes the subscription registered under clientID. Removing
// an unknown id is a no-op.
func (t *Topic) Unsubscribe(clientID string) bool {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	if _, ok := t.subs[clientID]; !ok {
		return false
	}
	delete(t.subs, clientID)
	return true
}

// Remove removes sub only if it is still the subscription registered under
// its client id, so a newer subscription for the same id survives.
func (t *Topic) Remove(sub *subscription.Subscription) bool {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	if t.subs[sub.ClientID()] != sub {
		return false
	}
	delete(t.subs, sub.ClientID())
	return true
}

// Subscriber returns the subscription registered under clientID.
func (t *Topic) Subscriber(clientID string) (*subscription.Subscription, bool) {
	t.subsMu.RLock()
	defer t.subsMu.RUnlock()
	sub, ok := t.subs[clientID]
	return sub, ok
}

// SubscriberCount returns the number of registered subscriptions.
func (t *Topic) SubscriberCount() int {
	t.subsMu.RLock()
	defer t.subsMu.RUnlock()
	return len(t.subs)
}

// MessageCount returns the number of messages published to the topic.
func (t *Topic) MessageCount() int64 {
	return t.messages.Load()
}

// DroppedCount returns the number of published frames dropped on full
// subscriber queues.
func (t *Topic) DroppedCount() int64 {
	return t.dropped.Load()
}

// Info returns the current counters of the topic. The values are read
// independently and may be slightly out of step under concurrent use.
func (t *Topic) Info() Info {
	return Info{
		Name:        t.name,
		Subscribers: t.SubscriberCount(),
		Messages:    t.MessageCount(),
		Dropped:     t.DroppedCount(),
	}
}

func (t *Topic) snapshot() []*subscription.Subscription {
	t.subsMu.RLock()
	defer t.subsMu.RUnlock()

	subs := make([]*subscription.Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	return subs
}
