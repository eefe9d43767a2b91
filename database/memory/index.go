// Package memory provides an in-memory database implementation.
package memory

import "github.com/hashicorp/go-memdb"

const (
	tblSessions    = "sessions"
	tblMemberships = "memberships"
)

const (
	idxSessionHandle    = "id"
	idxMembershipID     = "id"
	idxMembershipHandle = "handle"
	idxMembershipTopic  = "topic"
)

// schema is the schema of the memory database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblSessions: {
			Name: tblSessions,
			Indexes: map[string]*memdb.IndexSchema{
				idxSessionHandle: {
					Name:    idxSessionHandle,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Handle"},
				},
			},
		},
		tblMemberships: {
			Name: tblMemberships,
			Indexes: map[string]*memdb.IndexSchema{
				idxMembershipID: {
					Name:   idxMembershipID,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Handle"},
							&memdb.StringFieldIndex{Field: "ClientID"},
							&memdb.StringFieldIndex{Field: "Topic"},
						},
					},
				},
				idxMembershipHandle: {
					Name:    idxMembershipHandle,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Handle"},
				},
				idxMembershipTopic: {
					Name:   idxMembershipTopic,
					Unique: false,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "ClientID"},
							&memdb.StringFieldIndex{Field: "Topic"},
						},
					},
				},
			},
		},
	},
}
