package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pubsub/broker/subscription"
	"pubsub/database"
)

// Sessions binds connection handles to the subscriptions opened on them and
// remembers which topics each subscription joined, so that a closed
// connection can be removed from every topic at once.
type Sessions struct {
	directory *Directory
	database  database.Database
	logger    *slog.Logger

	mu   sync.Mutex
	subs map[string]map[string]*subscription.Subscription
}

// NewSessions creates a new instance of Sessions.
func NewSessions(dir *Directory, db database.Database, logger *slog.Logger) *Sessions {
	return &Sessions{
		directory: dir,
		database:  db,
		logger:    logger,
		subs:      make(map[string]map[string]*subscription.Subscription),
	}
}

// Bind returns the subscription of clientID on the connection, creating it
// on first use. clientID becomes the current identity of the connection.
func (s *Sessions) Bind(handle, clientID string, sender subscription.Sender) (*subscription.Subscription, error) {
	if _, err := s.database.UpsertSessionInfo(handle, clientID); err != nil {
		return nil, fmt.Errorf("failed to bind session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byClient, ok := s.subs[handle]
	if !ok {
		byClient = make(map[string]*subscription.Subscription)
		s.subs[handle] = byClient
	}
	sub, ok := byClient[clientID]
	if !ok {
		sub = subscription.New(clientID, handle, sender)
		byClient[clientID] = sub
	}
	return sub, nil
}

// Join records that sub joined the topic.
func (s *Sessions) Join(sub *subscription.Subscription, topicName string) error {
	if _, err := s.database.CreateMembershipInfo(sub.Handle(), sub.ClientID(), topicName); err != nil {
		return fmt.Errorf("failed to join %s: %w", topicName, err)
	}
	return nil
}

// Leave forgets that clientID joined the topic, on any connection.
func (s *Sessions) Leave(clientID, topicName string) error {
	infos, err := s.database.FindMembershipInfosByTopic(clientID, topicName)
	if err != nil {
		return fmt.Errorf("failed to leave %s: %w", topicName, err)
	}
	for _, info := range infos {
		err := s.database.DeleteMembershipInfo(info.Handle, info.ClientID, info.Topic)
		if err != nil && !errors.Is(err, database.ErrMembershipNotFound) {
			return fmt.Errorf("failed to leave %s: %w", topicName, err)
		}
	}
	return nil
}

// Teardown closes every subscription of the connection and removes it from
// the topics it joined. Calling it again for the same handle does nothing.
// It returns the number of topic registrations removed.
func (s *Sessions) Teardown(handle string) int {
	s.mu.Lock()
	byClient := s.subs[handle]
	delete(s.subs, handle)
	s.mu.Unlock()

	// Closing first makes a subscribe racing with this teardown either
	// visible in the memberships below or aware that it must undo itself.
	for _, sub := range byClient {
		sub.Close()
	}

	session, err := s.database.FindSessionInfoByHandle(handle)
	if errors.Is(err, database.ErrSessionNotFound) && len(byClient) == 0 {
		return 0
	}
	if err != nil {
		s.logger.Warn("failed to find session", "handle", handle, "error", err)
	}

	infos, err := s.database.FindMembershipInfosByHandle(handle)
	if err != nil {
		s.logger.Warn("failed to find memberships", "handle", handle, "error", err)
	}

	removed := 0
	for _, info := range infos {
		sub, ok := byClient[info.ClientID]
		if !ok {
			continue
		}
		if t, ok := s.directory.Get(info.Topic); ok && t.Remove(sub) {
			removed++
		}
	}

	if _, err := s.database.DeleteMembershipInfosByHandle(handle); err != nil {
		s.logger.Warn("failed to delete memberships", "handle", handle, "error", err)
	}
	if err := s.database.DeleteSessionInfoByHandle(handle); err != nil && !errors.Is(err, database.ErrSessionNotFound) {
		s.logger.Warn("failed to delete session", "handle", handle, "error", err)
	}
	if session != nil {
		s.logger.Debug("session closed", "handle", handle, "client_id", session.ClientID,
			"duration", time.Since(session.ConnectedAt))
	}
	return removed
}

// Count returns the number of connections with at least one subscription.
func (s *Sessions) Count() int {
	count, err := s.database.CountSessionInfos()
	if err != nil {
		s.logger.Warn("failed to count sessions", "error", err)
		return 0
	}
	return count
}
