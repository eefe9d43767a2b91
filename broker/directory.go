package broker

import (
	"iter"
	"slices"
	"strings"
	"sync"

	"pubsub/broker/topic"
)

// Directory maps topic names to topics. Exactly one Topic ever exists per
// name; topics live until the process exits.
type Directory struct {
	mu     sync.RWMutex
	topics map[string]*topic.Topic
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		topics: make(map[string]*topic.Topic),
	}
}

// CreateTopic creates the topic if it does not exist. It reports false,
// leaving the existing topic untouched, when the name is already taken.
func (d *Directory) CreateTopic(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.topics[name]; exists {
		return false
	}
	d.topics[name] = topic.New(name)
	return true
}

// GetOrCreate returns the topic for name, creating it on first use.
func (d *Directory) GetOrCreate(name string) *topic.Topic {
	d.mu.RLock()
	if t, exists := d.topics[name]; exists {
		d.mu.RUnlock()
		return t
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	t, exists := d.topics[name]
	if !exists {
		t = topic.New(name)
		d.topics[name] = t
	}
	return t
}

// Get returns the topic for name if it exists.
func (d *Directory) Get(name string) (*topic.Topic, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, exists := d.topics[name]
	return t, exists
}

// ListTopics returns a sequence of topic infos ordered by name. Each
// iteration takes a fresh list of topics; the counters of every topic are
// read when it is yielded.
func (d *Directory) ListTopics() iter.Seq[topic.Info] {
	return func(yield func(topic.Info) bool) {
		for _, t := range d.snapshot() {
			if !yield(t.Info()) {
				return
			}
		}
	}
}

// TopicCount returns the number of topics.
func (d *Directory) TopicCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.topics)
}

// TotalSubscribers sums the subscriber counts of all topics. Topics are
// counted one at a time, so the sum is approximate under concurrent use.
func (d *Directory) TotalSubscribers() int {
	total := 0
	for _, t := range d.snapshot() {
		total += t.SubscriberCount()
	}
	return total
}

func (d *Directory) snapshot() []*topic.Topic {
	d.mu.RLock()
	topics := make([]*topic.Topic, 0, len(d.topics))
	for _, t := range d.topics {
		topics = append(topics, t)
	}
	d.mu.RUnlock()

	slices.SortFunc(topics, func(a, b *topic.Topic) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return topics
}
