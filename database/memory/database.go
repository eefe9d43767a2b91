package memory

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"pubsub/database"
)

// DB is a memory-backed database.
type DB struct {
	db *memdb.MemDB
}

// New creates a new memory-backed database.
func New() *DB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	return &DB{
		db: db,
	}
}

// UpsertSessionInfo stores clientID as the current identity of the session,
// creating the session on first use.
func (d *DB) UpsertSessionInfo(handle, clientID string) (*database.SessionInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSessions, idxSessionHandle, handle)
	if err != nil {
		return nil, fmt.Errorf("find session by handle: %w", err)
	}

	var info *database.SessionInfo
	if raw == nil {
		now := time.Now()
		info = &database.SessionInfo{
			Handle:      handle,
			ClientID:    clientID,
			ConnectedAt: now,
			UpdatedAt:   now,
		}
	} else {
		info = raw.(*database.SessionInfo).DeepCopy()
		if info.ClientID == clientID {
			return info, nil
		}
		info.UpdateClientID(clientID)
	}

	if err := txn.Insert(tblSessions, info); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindSessionInfoByHandle finds a session by its connection handle.
func (d *DB) FindSessionInfoByHandle(handle string) (*database.SessionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSessions, idxSessionHandle, handle)
	if err != nil {
		return nil, fmt.Errorf("find session by handle: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", handle, database.ErrSessionNotFound)
	}
	return raw.(*database.SessionInfo).DeepCopy(), nil
}

// DeleteSessionInfoByHandle deletes a session by its connection handle.
func (d *DB) DeleteSessionInfoByHandle(handle string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSessions, idxSessionHandle, handle)
	if err != nil {
		return fmt.Errorf("find session by handle: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", handle, database.ErrSessionNotFound)
	}
	if err := txn.Delete(tblSessions, raw); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	txn.Commit()
	return nil
}

// CountSessionInfos returns the number of stored sessions.
func (d *DB) CountSessionInfos() (int, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblSessions, idxSessionHandle)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	count := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		count++
	}
	return count, nil
}

// CreateMembershipInfo records that clientID of the session joined topic.
// Joining a topic twice keeps the first record.
func (d *DB) CreateMembershipInfo(handle, clientID, topic string) (*database.MembershipInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblMemberships, idxMembershipID, handle, clientID, topic)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if raw != nil {
		return raw.(*database.MembershipInfo).DeepCopy(), nil
	}

	info := &database.MembershipInfo{
		Handle:   handle,
		ClientID: clientID,
		Topic:    topic,
		JoinedAt: time.Now(),
	}
	if err := txn.Insert(tblMemberships, info); err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindMembershipInfosByHandle finds every topic the session joined.
func (d *DB) FindMembershipInfosByHandle(handle string) ([]*database.MembershipInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblMemberships, idxMembershipHandle, handle)
	if err != nil {
		return nil, fmt.Errorf("find memberships by handle: %w", err)
	}
	var infos []*database.MembershipInfo
	for obj := it.Next(); obj != nil; obj = it.Next() {
		infos = append(infos, obj.(*database.MembershipInfo).DeepCopy())
	}
	return infos, nil
}

// FindMembershipInfosByTopic finds the memberships of clientID in topic
// across all sessions.
func (d *DB) FindMembershipInfosByTopic(clientID, topic string) ([]*database.MembershipInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblMemberships, idxMembershipTopic, clientID, topic)
	if err != nil {
		return nil, fmt.Errorf("find memberships by topic: %w", err)
	}
	var infos []*database.MembershipInfo
	for obj := it.Next(); obj != nil; obj = it.Next() {
		infos = append(infos, obj.(*database.MembershipInfo).DeepCopy())
	}
	return infos, nil
}

// DeleteMembershipInfo deletes a single membership.
func (d *DB) DeleteMembershipInfo(handle, clientID, topic string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblMemberships, idxMembershipID, handle, clientID, topic)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s/%s/%s: %w", handle, clientID, topic, database.ErrMembershipNotFound)
	}
	if err := txn.Delete(tblMemberships, raw); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	txn.Commit()
	return nil
}

// DeleteMembershipInfosByHandle deletes every membership of the session and
// returns how many were deleted.
func (d *DB) DeleteMembershipInfosByHandle(handle string) (int, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	n, err := txn.DeleteAll(tblMemberships, idxMembershipHandle, handle)
	if err != nil {
		return 0, fmt.Errorf("delete memberships by handle: %w", err)
	}
	txn.Commit()
	return n, nil
}
