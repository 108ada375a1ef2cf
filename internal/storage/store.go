// Package storage provides abstractions for persistent data storage.
package storage

import "context"

// Kind identifies an entity collection.
type Kind string

const (
	KindUsers        Kind = "users"
	KindGroups       Kind = "groups"
	KindTransactions Kind = "transactions"
	KindInvites      Kind = "invites"
)

// Secondary index names. Indexes stand in for the query patterns a
// document store would serve with a GSI.
const (
	// IndexEmail maps users and invites by lower-cased email.
	IndexEmail = "email"
	// IndexGroup maps transactions and invites by owning group ID.
	IndexGroup = "group"
)

// Record is a versioned JSON document. Version starts at 1 and bumps on
// every write; Update uses it for optimistic concurrency.
type Record struct {
	Key     string
	Version int64
	Data    []byte
}

// Store defines the key-value persistence contract the services are built
// against. This abstraction allows swapping storage backends without
// changing the domain layer.
//
// Collection-valued fields (member rosters, vote maps) must never be
// written blindly: callers read a record, mutate it, and write it back
// with Update carrying the read version. A version mismatch returns an
// errs.Conflict error and the caller re-reads fresh state before retrying.
// Infrastructure failures are classified errs.Unavailable.
type Store interface {
	// Get retrieves a record, or errs.NotFound if absent.
	Get(ctx context.Context, kind Kind, key string) (Record, error)

	// Put creates or replaces a record unconditionally and rewrites its
	// index entries. The stored version becomes 1 for a new record, or
	// the previous version plus one.
	Put(ctx context.Context, kind Kind, key string, data []byte, index map[string]string) error

	// Update replaces a record only if its stored version equals expect.
	// Returns errs.Conflict on a version mismatch and errs.NotFound if
	// the record is absent.
	Update(ctx context.Context, kind Kind, key string, expect int64, data []byte, index map[string]string) error

	// Query returns all records whose index entry equals value.
	Query(ctx context.Context, kind Kind, index, value string) ([]Record, error)

	// Scan returns every record of a kind. Operational tooling only.
	Scan(ctx context.Context, kind Kind) ([]Record, error)

	// Delete removes a record and its index entries. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, kind Kind, key string) error

	// Close releases any resources held by the store.
	Close() error
}
