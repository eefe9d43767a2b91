package database

import "time"

// SessionInfo is the identity a connection currently subscribes under.
type SessionInfo struct {
	Handle      string
	ClientID    string
	ConnectedAt time.Time
	UpdatedAt   time.Time
}

// UpdateClientID replaces the identity of the session.
func (s *SessionInfo) UpdateClientID(clientID string) {
	s.ClientID = clientID
	s.UpdatedAt = time.Now()
}

// DeepCopy creates a deep copy of the given SessionInfo.
func (s *SessionInfo) DeepCopy() *SessionInfo {
	return &SessionInfo{
		Handle:      s.Handle,
		ClientID:    s.ClientID,
		ConnectedAt: s.ConnectedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// MembershipInfo records that an identity of a connection joined a topic.
type MembershipInfo struct {
	Handle   string
	ClientID string
	Topic    string
	JoinedAt time.Time
}

// DeepCopy creates a deep copy of the given MembershipInfo.
func (m *MembershipInfo) DeepCopy() *MembershipInfo {
	return &MembershipInfo{
		Handle:   m.Handle,
		ClientID: m.ClientID,
		Topic:    m.Topic,
		JoinedAt: m.JoinedAt,
	}
}
