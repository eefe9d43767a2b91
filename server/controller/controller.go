package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lithammer/shortuuid/v4"

	"pubsub/broker"
	"pubsub/metric"
	"pubsub/pkg/socket"
	"pubsub/types/client/request"
	"pubsub/types/client/response"
)

// errUnknownType is returned for commands with an unrecognized type.
var errUnknownType = errors.New("unknown type")

// Socket serves the websocket commands of a connection.
type Socket struct {
	broker broker.Service
	metric *metric.Metrics
	logger *slog.Logger
}

// NewSocket creates a new instance of Socket.
func NewSocket(b broker.Service, m *metric.Metrics, logger *slog.Logger) *Socket {
	return &Socket{
		broker: b,
		metric: m,
		logger: logger,
	}
}

// session is the state of one connection.
type session struct {
	socket   socket.Socket
	clientID string
}

// Process reads commands from the socket until it closes or ctx is done.
// The connection is torn down in the broker exactly once when it returns.
func (c *Socket) Process(ctx context.Context, s socket.Socket) error {
	c.metric.IncrementWebSocketConnections()
	defer c.metric.DecrementWebSocketConnections()

	// 01. Close the socket when the server shuts down so Read returns
	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	defer stop()

	// 02. Remove every subscription of the connection when it ends
	defer c.broker.Teardown(s.ID())

	sess := &session{
		socket:   s,
		clientID: shortuuid.New(),
	}
	log := c.logger.With("handle", s.ID())
	log.Debug("connection opened", "client_id", sess.clientID)
	c.send(sess, response.NewInfo("connected"))

	for {
		data, err := s.Read()
		if err != nil {
			if socket.IsClosedError(err) || ctx.Err() != nil {
				log.Debug("connection closed")
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}
		c.handle(sess, data)
	}
}

// handle decodes one command and answers it. It never fails the connection.
func (c *Socket) handle(sess *session, data []byte) {
	var req request.Common
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while handling command", "type", req.Type, "panic", r)
			c.fail(sess, req, response.Internal, "internal error")
		}
	}()

	if err := json.Unmarshal(data, &req); err != nil {
		c.fail(sess, req, response.BadRequest, "malformed command")
		return
	}

	var err error
	switch req.Type {
	case request.SUBSCRIBE:
		err = c.handleSubscribe(sess, req)
	case request.UNSUBSCRIBE:
		err = c.handleUnsubscribe(sess, req)
	case request.PUBLISH:
		err = c.handlePublish(sess, req)
	case request.PING:
		c.send(sess, response.NewPong(req.RequestID))
	default:
		err = fmt.Errorf("%w: %s", errUnknownType, req.Type)
	}

	switch {
	case err == nil:
		c.metric.IncrementCommands(commandLabel(req.Type), "ok")
	case errors.Is(err, broker.ErrInvalidRequest), errors.Is(err, errUnknownType):
		c.fail(sess, req, response.BadRequest, err.Error())
	default:
		c.logger.Warn("failed to handle command", "type", req.Type, "error", err)
		c.fail(sess, req, response.Internal, "internal error")
	}
}

// handleSubscribe subscribes the connection to a topic. The client id
// defaults to the one generated for the connection.
func (c *Socket) handleSubscribe(sess *session, req request.Common) error {
	clientID := req.ClientID
	if clientID == "" {
		clientID = sess.clientID
	}
	lastN := 0
	if req.LastN != nil {
		lastN = *req.LastN
	}

	if err := c.broker.Subscribe(sess.socket.ID(), sess.socket, request.Subscribe{
		Topic:    req.Topic,
		ClientID: clientID,
		LastN:    lastN,
	}); err != nil {
		return err
	}
	c.send(sess, response.NewAck(req.RequestID, req.Topic, response.SUBSCRIBED))
	return nil
}

// handleUnsubscribe removes a client from a topic.
func (c *Socket) handleUnsubscribe(sess *session, req request.Common) error {
	if err := c.broker.Unsubscribe(request.Unsubscribe{
		Topic:    req.Topic,
		ClientID: req.ClientID,
	}); err != nil {
		return err
	}
	c.send(sess, response.NewAck(req.RequestID, req.Topic, response.UNSUBSCRIBED))
	return nil
}

// handlePublish publishes the message to a topic.
func (c *Socket) handlePublish(sess *session, req request.Common) error {
	if err := c.broker.Publish(request.Publish{
		Topic:   req.Topic,
		Message: req.Message,
	}); err != nil {
		return err
	}
	c.send(sess, response.NewAck(req.RequestID, req.Topic, response.PUBLISHED))
	return nil
}

func (c *Socket) fail(sess *session, req request.Common, code, message string) {
	c.metric.IncrementCommands(commandLabel(req.Type), code)
	c.send(sess, response.NewError(req.RequestID, code, message))
}

// commandLabel keeps the metric label set bounded.
func commandLabel(typ string) string {
	switch typ {
	case request.SUBSCRIBE, request.UNSUBSCRIBE, request.PUBLISH, request.PING:
		return typ
	}
	return "unknown"
}

func (c *Socket) send(sess *session, frame any) {
	if err := sess.socket.Send(frame); err != nil {
		c.logger.Debug("failed to send frame", "handle", sess.socket.ID(), "error", err)
	}
}
