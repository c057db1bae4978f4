/*
store.go - Persistence interface for snapshots and samples

PURPOSE:
  Defines the boundary between the recording core and the database.
  Different implementations can use SQLite, PostgreSQL, or wrappers for
  fault-injection in tests.

APPEND-ONLY CONTRACT:
  Samples are append-only. The interface has no way to update or delete a
  sample; history only grows.

SNAPSHOT CONTRACT:
  UpsertSnapshot keeps at most one row per (SessionID, ItemID): it creates
  the snapshot when absent and overwrites value/remark (refreshing the
  update timestamp) when present.

ATOMIC BATCHES:
  TxStore.WithTx runs a function against a transactional view of the store.
  The recorder uses it so that one batch's snapshot upserts and sample
  appends commit or abort together; partial application is never visible.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
*/
package record

import "context"

// Store handles persistence of snapshots and samples.
type Store interface {
	// FindSnapshot returns the current snapshot for (sessionID, itemID),
	// or nil if the item has never been answered in this session.
	FindSnapshot(ctx context.Context, sessionID, itemID string) (*Snapshot, error)

	// UpsertSnapshot creates or overwrites the single current value for
	// (SessionID, ItemID).
	UpsertSnapshot(ctx context.Context, snap Snapshot) error

	// ListSnapshots returns all current snapshots for a session, ordered by
	// creation time ascending.
	ListSnapshots(ctx context.Context, sessionID string) ([]Snapshot, error)

	// AppendSamples persists history samples. Pure insert: no existence
	// check, no merge, one new immutable row per sample.
	AppendSamples(ctx context.Context, samples []Sample) error

	// ListSamples returns the full sample history of a session, ordered by
	// sample timestamp ascending.
	ListSamples(ctx context.Context, sessionID string) ([]Sample, error)
}

// TxStore wraps Store with transaction support. The batch is the
// transaction boundary, not the individual row.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional store view. If fn returns
	// an error the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// CatalogStore provides read access to the item catalog of a template.
// The catalog is owned elsewhere (template CRUD); this core only reads it.
type CatalogStore interface {
	// ListItems returns a template's items ordered by display order ascending.
	ListItems(ctx context.Context, templateID string) ([]Item, error)
}
