// Package subscription provides the delivery path of a single subscriber.
package subscription

import "sync"

// DefaultCapacity is the number of frames a subscription can hold before it
// starts dropping incoming ones.
const DefaultCapacity = 50

// Sender delivers a frame to the remote end of a subscription. Send must
// not wait on the network: replay calls it while the topic is locked.
//
//go:generate mockgen -destination=mock_sender.go -package=subscription . Sender
type Sender interface {
	Send(frame any) error
}

// Waiter is implemented by senders whose Send refuses frames while an
// outgoing buffer is full. Wait calls fn once the buffer has room again,
// and never if the sender is closed first.
type Waiter interface {
	Wait(fn func())
}

// Subscription is the outbound queue of one client identity. Producers never
// block on it: when the queue is full the incoming frame is dropped.
type Subscription struct {
	clientID string
	handle   string
	sender   Sender
	capacity int

	mu       sync.Mutex
	queue    []any
	draining bool
	waiting  bool
	closed   bool
}

// New creates a new Subscription with the default capacity.
func New(clientID, handle string, sender Sender) *Subscription {
	return NewWithCapacity(clientID, handle, sender, DefaultCapacity)
}

// NewWithCapacity creates a new Subscription holding at most capacity frames.
func NewWithCapacity(clientID, handle string, sender Sender, capacity int) *Subscription {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Subscription{
		clientID: clientID,
		handle:   handle,
		sender:   sender,
		capacity: capacity,
		queue:    make([]any, 0, capacity),
	}
}

// ClientID returns the identity the subscription is registered under.
func (s *Subscription) ClientID() string {
	return s.clientID
}

// Handle returns the connection handle the subscription belongs to.
func (s *Subscription) Handle() string {
	return s.handle
}

// Enqueue adds the frame to the queue and drains it. It reports false when
// the frame was dropped.
func (s *Subscription) Enqueue(frame any) bool {
	if !s.Offer(frame) {
		return false
	}
	s.Drain()
	return true
}

// Offer adds the frame to the queue without draining it. Callers holding a
// lock that must not wait on the transport use Offer and call Drain later.
func (s *Subscription) Offer(frame any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.queue) >= s.capacity {
		return false
	}
	s.queue = append(s.queue, frame)
	return true
}

// Drain hands queued frames to the sender in FIFO order until the queue is
// empty or a send fails. Only one drain runs at a time; a caller that finds
// a drain in progress returns immediately and the running drain picks up
// its frame. A frame is removed only after it was sent, so a failed send
// leaves it at the head of the queue. If the sender is a Waiter, the drain
// resumes by itself once the sender has room.
func (s *Subscription) Drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	refused := false
	for len(s.queue) > 0 && !s.closed {
		frame := s.queue[0]
		s.mu.Unlock()
		err := s.sender.Send(frame)
		s.mu.Lock()
		if err != nil {
			refused = true
			break
		}
		if s.closed {
			break
		}
		s.queue[0] = nil
		s.queue = s.queue[1:]
	}

	s.draining = false
	w, ok := s.sender.(Waiter)
	wait := ok && refused && !s.closed && !s.waiting
	if wait {
		s.waiting = true
	}
	s.mu.Unlock()

	if wait {
		w.Wait(s.resume)
	}
}

func (s *Subscription) resume() {
	s.mu.Lock()
	s.waiting = false
	s.mu.Unlock()
	s.Drain()
}

// Len returns the number of queued frames.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Pending returns a copy of the queued frames, oldest first.
func (s *Subscription) Pending() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.queue...)
}

// Close discards queued frames. Frames offered afterwards are dropped.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.queue = nil
}

// Closed reports whether Close has been called.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
