// Package database provides an interface for storing connection sessions
// and the topics each session joined.
package database

import (
	"errors"
)

var (
	// ErrSessionNotFound is returned when the session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMembershipNotFound is returned when the membership is not found.
	ErrMembershipNotFound = errors.New("membership not found")
)

// Database is an interface for database operations.
type Database interface {
	UpsertSessionInfo(handle, clientID string) (*SessionInfo, error)
	FindSessionInfoByHandle(handle string) (*SessionInfo, error)
	DeleteSessionInfoByHandle(handle string) error
	CountSessionInfos() (int, error)

	CreateMembershipInfo(handle, clientID, topic string) (*MembershipInfo, error)
	FindMembershipInfosByHandle(handle string) ([]*MembershipInfo, error)
	FindMembershipInfosByTopic(clientID, topic string) ([]*MembershipInfo, error)
	DeleteMembershipInfo(handle, clientID, topic string) error
	DeleteMembershipInfosByHandle(handle string) (int, error)
}
