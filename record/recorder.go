/*
recorder.go - Transactional batch application

PURPOSE:
  The Recorder turns one submitted batch into durable state: a snapshot
  upsert per surviving row (the current value) plus an immutable sample per
  surviving row (the history). Both run in a single storage transaction.

CRITICAL INVARIANTS:
  1. AT-MOST-ONE snapshot per (session, item): a batch creates or overwrites
  2. APPEND-ONLY history: samples are never updated or deleted
  3. ATOMIC batches: snapshot and sample writes commit or abort together
  4. SHARED TIMESTAMP: all samples of one batch carry the same timestamp,
     captured once per batch, which later regroups them into a save-event

IDEMPOTENCE:
  Applying the same batch twice leaves the snapshot identical but appends a
  second set of samples. The snapshot is idempotent-on-value; the history
  records every submission.

SEE ALSO:
  - batch.go: Normalization applied before anything is written
  - timeseries.go: Reconstruction of turns from the recorded samples
*/
package record

import (
	"context"
	"time"
)

// Recorder applies submitted batches against a transactional store.
type Recorder struct {
	store TxStore
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(store TxStore) *Recorder {
	return &Recorder{store: store}
}

// ApplyBatch normalizes and applies one submitted batch for a session.
// Returns the number of rows applied (creates + updates).
//
// An empty or all-invalid batch is a no-op, not an error: it returns
// (0, nil) without touching storage.
//
// All samples of the batch share one timestamp, truncated to millisecond
// precision. Two genuinely distinct batches committed within the same
// millisecond would merge into one reconstruction turn; an explicit batch
// id would fix that but changes the reconstruction key observably.
func (r *Recorder) ApplyBatch(ctx context.Context, sessionID string, raw []RawRow) (int, error) {
	rows := Normalize(raw)
	if len(rows) == 0 {
		return 0, nil
	}

	stamp := time.Now().UTC().Truncate(time.Millisecond)

	err := r.store.WithTx(ctx, func(tx Store) error {
		samples := make([]Sample, 0, len(rows))
		for _, row := range rows {
			if err := tx.UpsertSnapshot(ctx, Snapshot{
				SessionID: sessionID,
				ItemID:    row.ItemID,
				Value:     row.Value,
				Remark:    row.Note,
			}); err != nil {
				return err
			}
			samples = append(samples, Sample{
				SessionID: sessionID,
				ItemID:    row.ItemID,
				Value:     row.Value,
				Remark:    row.Note,
				SampledAt: stamp,
			})
		}
		return tx.AppendSamples(ctx, samples)
	})
	if err != nil {
		return 0, err
	}

	return len(rows), nil
}

// CurrentValues returns the session's current snapshots, one per answered
// item, ordered by creation time.
func (r *Recorder) CurrentValues(ctx context.Context, sessionID string) ([]Snapshot, error) {
	return r.store.ListSnapshots(ctx, sessionID)
}

// History returns the session's full sample history ordered by sample
// timestamp ascending, unreconstructed. Reconstruction is a pure
// caller-side step over this feed.
func (r *Recorder) History(ctx context.Context, sessionID string) ([]Sample, error) {
	return r.store.ListSamples(ctx, sessionID)
}
