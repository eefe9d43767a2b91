// Package broker is an in-memory topic based publish/subscribe broker.
package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"pubsub/broker/subscription"
	"pubsub/broker/topic"
	"pubsub/database"
	"pubsub/metric"
	"pubsub/types/client/request"
)

// ErrInvalidRequest is returned when a command misses a required field or
// carries an invalid value.
var ErrInvalidRequest = errors.New("invalid request")

// Stats holds aggregate counters of the broker.
type Stats struct {
	Topics      int
	Subscribers int
}

// Broker routes subscribe, unsubscribe and publish commands to topics.
type Broker struct {
	directory *Directory
	sessions  *Sessions
	metric    *metric.Metrics
	logger    *slog.Logger
}

// New creates a new Broker with an empty directory.
func New(db database.Database, met *metric.Metrics, logger *slog.Logger) *Broker {
	dir := NewDirectory()
	return &Broker{
		directory: dir,
		sessions:  NewSessions(dir, db, logger),
		metric:    met,
		logger:    logger,
	}
}

// Directory returns the topic directory of the broker.
func (b *Broker) Directory() *Directory {
	return b.directory
}

// CreateTopic creates a topic. It reports false if the topic already exists.
func (b *Broker) CreateTopic(name string) bool {
	created := b.directory.CreateTopic(name)
	if created {
		b.logger.Debug("topic created", "topic", name)
	}
	return created
}

// Topics returns the infos of all topics ordered by name.
func (b *Broker) Topics() []topic.Info {
	return slices.Collect(b.directory.ListTopics())
}

// TopicCount returns the number of topics.
func (b *Broker) TopicCount() int {
	return b.directory.TopicCount()
}

// TotalSubscribers returns the number of subscriptions across all topics.
func (b *Broker) TotalSubscribers() int {
	return b.directory.TotalSubscribers()
}

// SessionCount returns the number of connections with at least one
// subscription.
func (b *Broker) SessionCount() int {
	return b.sessions.Count()
}

// Stats returns the number of topics and subscriptions.
func (b *Broker) Stats() Stats {
	return Stats{
		Topics:      b.directory.TopicCount(),
		Subscribers: b.directory.TotalSubscribers(),
	}
}

// Subscribe registers the client of the connection identified by handle on
// the topic and replays up to LastN history messages to it.
func (b *Broker) Subscribe(handle string, sender subscription.Sender, req request.Subscribe) error {
	if req.Topic == "" {
		return fmt.Errorf("missing topic: %w", ErrInvalidRequest)
	}
	if req.ClientID == "" {
		return fmt.Errorf("missing client_id: %w", ErrInvalidRequest)
	}
	if req.LastN < 0 {
		return fmt.Errorf("last_n must not be negative, given %d: %w", req.LastN, ErrInvalidRequest)
	}

	sub, err := b.sessions.Bind(handle, req.ClientID, sender)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	t := b.directory.GetOrCreate(req.Topic)
	if err := b.sessions.Join(sub, t.Name()); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	t.Subscribe(sub, req.LastN)
	if sub.Closed() {
		// The connection was torn down while subscribing.
		t.Remove(sub)
	}
	b.logger.Debug("subscribed", "topic", req.Topic, "client_id", req.ClientID, "last_n", req.LastN)
	return nil
}

// Unsubscribe removes the client from the topic. Unknown topics and clients
// are ignored.
func (b *Broker) Unsubscribe(req request.Unsubscribe) error {
	if req.Topic == "" || req.ClientID == "" {
		return fmt.Errorf("missing topic or client_id: %w", ErrInvalidRequest)
	}

	t, ok := b.directory.Get(req.Topic)
	if !ok {
		return nil
	}
	t.Unsubscribe(req.ClientID)
	if err := b.sessions.Leave(req.ClientID, req.Topic); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	b.logger.Debug("unsubscribed", "topic", req.Topic, "client_id", req.ClientID)
	return nil
}

// Publish stores the message in the topic history and delivers it to every
// current subscriber of the topic.
func (b *Broker) Publish(req request.Publish) error {
	if req.Topic == "" {
		return fmt.Errorf("missing topic: %w", ErrInvalidRequest)
	}
	if len(req.Message) == 0 || !json.Valid(req.Message) {
		return fmt.Errorf("missing or malformed message: %w", ErrInvalidRequest)
	}

	dropped := b.directory.GetOrCreate(req.Topic).Publish(req.Message)
	b.metric.IncrementPublished()
	b.metric.AddDropped(dropped)
	return nil
}

// Teardown removes every subscription of the connection from all topics.
func (b *Broker) Teardown(handle string) {
	removed := b.sessions.Teardown(handle)
	b.logger.Debug("session torn down", "handle", handle, "removed", removed)
}
