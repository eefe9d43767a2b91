package topic_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub/broker/subscription"
	"pubsub/broker/topic"
	"pubsub/types/client/response"
)

// stalled is a Sender whose connection never accepts a frame.
type stalled struct{}

func (stalled) Send(any) error { return errors.New("stalled") }

// collector is a Sender that keeps every event it receives.
type collector struct {
	mu     sync.Mutex
	events []response.Event
}

func (c *collector) Send(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, frame.(response.Event))
	return nil
}

func (c *collector) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = string(e.Message)
	}
	return out
}

func msg(i int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))
}

func msgs(from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, string(msg(i)))
	}
	return out
}

func raw(messages []json.RawMessage) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = string(m)
	}
	return out
}

func TestLastN(t *testing.T) {
	tests := []struct {
		name      string
		published int
		n         int
		want      []string
	}{
		{name: "given no messages when last 5 requested then empty", published: 0, n: 5, want: []string{}},
		{name: "given 3 messages when last 5 requested then all 3", published: 3, n: 5, want: msgs(1, 3)},
		{name: "given 10 messages when last 4 requested then newest 4 oldest first", published: 10, n: 4, want: msgs(7, 10)},
		{name: "given 10 messages when last 0 requested then empty", published: 10, n: 0, want: []string{}},
		{name: "given 10 messages when negative requested then empty", published: 10, n: -1, want: []string{}},
		{name: "given 100 messages when last 100 requested then all", published: 100, n: 100, want: msgs(1, 100)},
		{name: "given 150 messages when last 100 requested then oldest 50 evicted", published: 150, n: 100, want: msgs(51, 150)},
		{name: "given 150 messages when last 200 requested then capped at history limit", published: 150, n: 200, want: msgs(51, 150)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := topic.New("orders")
			for i := 1; i <= tt.published; i++ {
				tp.AppendHistory(msg(i))
			}
			assert.Equal(t, tt.want, raw(tp.LastN(tt.n)))
		})
	}
}

func TestPublish(t *testing.T) {
	t.Run("given three subscribers when published then each queues one frame", func(t *testing.T) {
		tp := topic.New("orders")
		subs := make([]*subscription.Subscription, 3)
		for i := range subs {
			subs[i] = subscription.New(fmt.Sprintf("client-%d", i), "conn", stalled{})
			tp.Subscribe(subs[i], 0)
		}

		dropped := tp.Publish(msg(1))

		assert.Equal(t, 0, dropped)
		assert.Equal(t, int64(1), tp.MessageCount())
		for _, sub := range subs {
			require.Equal(t, 1, sub.Len())
			event := sub.Pending()[0].(response.Event)
			assert.Equal(t, response.EVENT, event.Type)
			assert.Equal(t, "orders", event.Topic)
			assert.JSONEq(t, `{"n":1}`, string(event.Message))
		}
	})

	t.Run("given full subscriber queue when published then frame dropped and counted", func(t *testing.T) {
		tp := topic.New("orders")
		sub := subscription.New("slow", "conn", stalled{})
		tp.Subscribe(sub, 0)
		for i := 1; i <= subscription.DefaultCapacity; i++ {
			tp.Publish(msg(i))
		}
		before := sub.Pending()
		require.Len(t, before, subscription.DefaultCapacity)

		dropped := tp.Publish(msg(51))

		assert.Equal(t, 1, dropped)
		assert.Equal(t, int64(1), tp.DroppedCount())
		assert.Equal(t, before, sub.Pending())
	})

	t.Run("given slow subscriber when published then others still receive", func(t *testing.T) {
		tp := topic.New("orders")
		fast := &collector{}
		tp.Subscribe(subscription.New("slow", "conn-1", stalled{}), 0)
		tp.Subscribe(subscription.New("fast", "conn-2", fast), 0)

		for i := 1; i <= 60; i++ {
			tp.Publish(msg(i))
		}

		assert.Equal(t, msgs(1, 60), fast.messages())
		assert.Equal(t, int64(10), tp.DroppedCount())
		assert.Equal(t, int64(60), tp.MessageCount())
	})

	t.Run("given payload when published then passed through byte for byte", func(t *testing.T) {
		tp := topic.New("orders")
		rec := &collector{}
		tp.Subscribe(subscription.New("c", "conn", rec), 0)

		payload := json.RawMessage(`{ "b" : [1, 2.50, "x"],"a":null }`)
		tp.Publish(payload)

		assert.Equal(t, []string{string(payload)}, rec.messages())
	})
}

func TestSubscribe(t *testing.T) {
	t.Run("given 5 messages when subscribed with last 3 then replay precedes live", func(t *testing.T) {
		tp := topic.New("orders")
		for i := 1; i <= 5; i++ {
			tp.Publish(msg(i))
		}
		rec := &collector{}
		tp.Subscribe(subscription.New("c", "conn", rec), 3)
		tp.Publish(msg(6))

		assert.Equal(t, msgs(3, 6), rec.messages())
	})

	t.Run("given replay larger than queue when subscribed then overflow is not counted as dropped", func(t *testing.T) {
		tp := topic.New("orders")
		for i := 1; i <= topic.HistoryLimit; i++ {
			tp.Publish(msg(i))
		}
		sub := subscription.New("slow", "conn", stalled{})
		tp.Subscribe(sub, topic.HistoryLimit)

		assert.Len(t, sub.Pending(), subscription.DefaultCapacity)
		assert.Equal(t, int64(0), tp.DroppedCount())

		tp.Publish(msg(topic.HistoryLimit + 1))
		assert.Equal(t, int64(1), tp.DroppedCount())
	})

	t.Run("given same client id when subscribed again then subscription replaced", func(t *testing.T) {
		tp := topic.New("orders")
		first := subscription.New("c", "conn-1", &collector{})
		second := subscription.New("c", "conn-2", &collector{})

		assert.Nil(t, tp.Subscribe(first, 0))
		assert.Same(t, first, tp.Subscribe(second, 0))
		assert.Equal(t, 1, tp.SubscriberCount())

		got, ok := tp.Subscriber("c")
		require.True(t, ok)
		assert.Same(t, second, got)
	})

	t.Run("given concurrent publishes when subscribed then every message seen exactly once in order", func(t *testing.T) {
		const total = 500
		tp := topic.New("orders")

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= total; i++ {
				tp.Publish(msg(i))
			}
		}()

		rec := &collector{}
		sub := subscription.NewWithCapacity("c", "conn", rec, total)
		tp.Subscribe(sub, topic.HistoryLimit)
		wg.Wait()

		got := rec.messages()
		require.NotEmpty(t, got)
		var first int
		_, err := fmt.Sscanf(got[0], `{"n":%d}`, &first)
		require.NoError(t, err)
		assert.Equal(t, msgs(first, total), got)
	})
}

func TestUnsubscribe(t *testing.T) {
	t.Run("given unknown client when unsubscribed then nothing changes", func(t *testing.T) {
		tp := topic.New("orders")
		tp.Subscribe(subscription.New("known", "conn", &collector{}), 0)

		assert.False(t, tp.Unsubscribe("unknown-client"))
		assert.Equal(t, 1, tp.SubscriberCount())
	})

	t.Run("given subscriber when unsubscribed then no longer receives", func(t *testing.T) {
		tp := topic.New("orders")
		rec := &collector{}
		tp.Subscribe(subscription.New("c", "conn", rec), 0)
		tp.Publish(msg(1))

		assert.True(t, tp.Unsubscribe("c"))
		tp.Publish(msg(2))

		assert.Equal(t, msgs(1, 1), rec.messages())
		assert.Equal(t, 0, tp.SubscriberCount())
	})

	t.Run("given replaced subscription when stale one removed then newer survives", func(t *testing.T) {
		tp := topic.New("orders")
		stale := subscription.New("c", "conn-1", &collector{})
		fresh := subscription.New("c", "conn-2", &collector{})
		tp.Subscribe(stale, 0)
		tp.Subscribe(fresh, 0)

		assert.False(t, tp.Remove(stale))
		assert.Equal(t, 1, tp.SubscriberCount())
		assert.True(t, tp.Remove(fresh))
		assert.Equal(t, 0, tp.SubscriberCount())
	})
}

func TestInfo(t *testing.T) {
	tp := topic.New("orders")
	tp.Subscribe(subscription.New("c", "conn", &collector{}), 0)
	tp.Publish(msg(1))
	tp.Publish(msg(2))

	assert.Equal(t, topic.Info{Name: "orders", Subscribers: 1, Messages: 2}, tp.Info())
}
