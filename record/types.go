/*
Package record provides the response recording core.

PURPOSE:
  This package contains the domain logic for collecting repeated rounds of
  answers against an evaluation template: normalizing submitted batches,
  maintaining a current-value snapshot per item, retaining every accepted
  batch as immutable history samples, and reconstructing a turn-indexed
  series from those samples.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: One question/field of a template (kind NUMBER/TEXT/BOOL)
  - Snapshot: The single current value of one item within one session
  - Sample: One immutable historical record, tied to a batch timestamp
  - RawRow/Row: A submitted batch row before/after normalization

DESIGN PRINCIPLES:
  1. Opaque values: Stored values are raw JSON; type interpretation happens
     only at read time (coerce.go), never in the stores.
  2. Immutability: Samples are never updated or deleted, only appended.
  3. Atomic batches: A batch is fully applied or not at all.

SEE ALSO:
  - coerce.go: Polymorphic value to typed scalar
  - batch.go: Batch normalization and dedup
  - recorder.go: Transactional batch application
  - timeseries.go: Turn reconstruction from samples
*/
package record

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ITEM - Catalog entry (read-only to this package)
// =============================================================================

// ItemKind is the declared type of a template item's value.
type ItemKind string

const (
	KindNumber ItemKind = "NUMBER"
	KindText   ItemKind = "TEXT"
	KindBool   ItemKind = "BOOL"
)

// Valid reports whether k is one of the known kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case KindNumber, KindText, KindBool:
		return true
	}
	return false
}

// Item is one question/field of an evaluation template.
// Order is the display order and is significant: every enumeration of items
// for output (forms, CSV columns, chart series) preserves it.
type Item struct {
	ID         string
	TemplateID string
	Key        string
	Label      string
	Kind       ItemKind
	Unit       string
	Required   bool
	Weight     decimal.Decimal
	Order      int
}

// =============================================================================
// SNAPSHOT & SAMPLE - Current value and immutable history
// =============================================================================

// Snapshot is the single current value of one item within one session.
// At most one snapshot exists per (SessionID, ItemID); a batch either
// creates it or overwrites value/remark and refreshes UpdatedAt.
type Snapshot struct {
	SessionID string
	ItemID    string
	Value     json.RawMessage
	Remark    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sample is one immutable historical record of a submitted value.
// All samples produced by one batch share the same SampledAt timestamp,
// which acts as the batch's identity during reconstruction.
type Sample struct {
	SessionID string
	ItemID    string
	Value     json.RawMessage
	Remark    string
	SampledAt time.Time
}

// =============================================================================
// BATCH ROWS
// =============================================================================

// RawRow is one row of a submitted batch, before normalization.
// ItemID is deliberately untyped: rows whose identifier is missing, not a
// string, or blank are silently dropped by Normalize.
type RawRow struct {
	ItemID any
	Value  any
	Note   string
}

// Row is a normalized batch row: a validated item identifier and a
// serializable value payload. The value is not type-checked against the
// item kind here; coercion happens at read time.
type Row struct {
	ItemID string
	Value  json.RawMessage
	Note   string
}
