package controller_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub/broker"
	"pubsub/broker/subscription"
	"pubsub/broker/topic"
	"pubsub/metric"
	"pubsub/server/controller"
	"pubsub/types/client/request"
	"pubsub/types/client/response"
)

// fakeSocket replays queued commands and records the frames sent to it.
type fakeSocket struct {
	in chan []byte

	mu  sync.Mutex
	out []any
}

func newFakeSocket(commands ...string) *fakeSocket {
	s := &fakeSocket{in: make(chan []byte, len(commands))}
	for _, c := range commands {
		s.in <- []byte(c)
	}
	close(s.in)
	return s
}

func (s *fakeSocket) ID() string { return "conn-1" }

func (s *fakeSocket) Read() ([]byte, error) {
	data, ok := <-s.in
	if !ok {
		return nil, net.ErrClosed
	}
	return data, nil
}

func (s *fakeSocket) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, v)
	return nil
}

func (s *fakeSocket) Close() error { return nil }

func (s *fakeSocket) frames() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.out...)
}

// fakeBroker records calls and panics on publish when asked to.
type fakeBroker struct {
	mu         sync.Mutex
	subscribes []request.Subscribe
	teardowns  int
	panics     bool
}

func (b *fakeBroker) CreateTopic(string) bool { return true }
func (b *fakeBroker) Topics() []topic.Info    { return nil }
func (b *fakeBroker) Stats() broker.Stats     { return broker.Stats{} }
func (b *fakeBroker) SessionCount() int       { return 0 }

func (b *fakeBroker) Subscribe(_ string, _ subscription.Sender, req request.Subscribe) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribes = append(b.subscribes, req)
	return nil
}

func (b *fakeBroker) Unsubscribe(request.Unsubscribe) error { return nil }

func (b *fakeBroker) Publish(request.Publish) error {
	if b.panics {
		panic("boom")
	}
	return nil
}

func (b *fakeBroker) Teardown(string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardowns++
}

func newTestSocketController(b broker.Service) *controller.Socket {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	met := metric.New(metric.Config{
		Port:     metric.DefaultMetricsPort,
		Path:     metric.DefaultMetricsPath,
		Interval: time.Second,
	}, logger)
	return controller.NewSocket(b, met, logger)
}

func TestProcess(t *testing.T) {
	t.Run("given commands when processed then answer each in order", func(t *testing.T) {
		b := &fakeBroker{}
		s := newFakeSocket(
			`{"type":"subscribe","request_id":"r1","topic":"orders","last_n":2}`,
			`{"type":"publish","request_id":"r2","topic":"orders","message":{"n":1}}`,
			`{"type":"unsubscribe","request_id":"r3","topic":"orders","client_id":"c"}`,
			`{"type":"ping","request_id":"r4"}`,
		)

		require.NoError(t, newTestSocketController(b).Process(context.Background(), s))

		frames := s.frames()
		require.Len(t, frames, 5)
		assert.Equal(t, response.INFO, frames[0].(response.Info).Type)
		assert.Equal(t, response.SUBSCRIBED, frames[1].(response.Ack).Status)
		assert.Equal(t, response.PUBLISHED, frames[2].(response.Ack).Status)
		assert.Equal(t, response.UNSUBSCRIBED, frames[3].(response.Ack).Status)
		assert.Equal(t, response.PONG, frames[4].(response.Pong).Type)

		require.Len(t, b.subscribes, 1)
		assert.Equal(t, 2, b.subscribes[0].LastN)
		assert.NotEmpty(t, b.subscribes[0].ClientID)
		assert.Equal(t, 1, b.teardowns)
	})

	t.Run("given panic in a command when processed then internal error and connection survives", func(t *testing.T) {
		b := &fakeBroker{panics: true}
		s := newFakeSocket(
			`{"type":"publish","request_id":"r1","topic":"orders","message":{}}`,
			`{"type":"ping","request_id":"r2"}`,
		)

		require.NoError(t, newTestSocketController(b).Process(context.Background(), s))

		frames := s.frames()
		require.Len(t, frames, 3)
		failure := frames[1].(response.Error)
		assert.Equal(t, response.Internal, failure.Error.Code)
		assert.Equal(t, "r1", failure.RequestID)
		assert.Equal(t, response.PONG, frames[2].(response.Pong).Type)
		assert.Equal(t, 1, b.teardowns)
	})

	t.Run("given unknown type when processed then bad request", func(t *testing.T) {
		s := newFakeSocket(`{"type":"shout","request_id":"r1"}`)

		require.NoError(t, newTestSocketController(&fakeBroker{}).Process(context.Background(), s))

		frames := s.frames()
		require.Len(t, frames, 2)
		failure := frames[1].(response.Error)
		assert.Equal(t, response.BadRequest, failure.Error.Code)

		data, err := json.Marshal(failure)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"request_id":"r1"`)
	})

	t.Run("given client id on subscribe when processed then it is kept", func(t *testing.T) {
		b := &fakeBroker{}
		s := newFakeSocket(`{"type":"subscribe","topic":"orders","client_id":"mine"}`)

		require.NoError(t, newTestSocketController(b).Process(context.Background(), s))

		require.Len(t, b.subscribes, 1)
		assert.Equal(t, request.Subscribe{Topic: "orders", ClientID: "mine"}, b.subscribes[0])
	})
}
