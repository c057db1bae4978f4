package record_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/eval-engine/record"
	"github.com/warp/eval-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRecorder(t *testing.T) (*record.Recorder, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return record.NewRecorder(store), store
}

// =============================================================================
// BATCH APPLICATION
// =============================================================================

func TestRecorder_ApplyBatch(t *testing.T) {
	// GIVEN: A fresh session
	recorder, _ := newTestRecorder(t)
	ctx := context.Background()

	// WHEN: Applying a two-row batch
	count, err := recorder.ApplyBatch(ctx, "sess-1", []record.RawRow{
		{ItemID: "item-a", Value: 10},
		{ItemID: "item-b", Value: true},
	})

	// THEN: Both rows applied; one snapshot and one sample per item
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	snapshots, err := recorder.CurrentValues(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	samples, err := recorder.History(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	// All samples of one batch share one timestamp
	assert.True(t, samples[0].SampledAt.Equal(samples[1].SampledAt),
		"batch timestamp is captured once per batch, not per row")
	assert.False(t, samples[0].SampledAt.IsZero())
}

func TestRecorder_ApplyBatch_DedupBeforeWrite(t *testing.T) {
	recorder, _ := newTestRecorder(t)
	ctx := context.Background()

	// Same item twice in one batch: last wins, and only the surviving row
	// produces a sample.
	count, err := recorder.ApplyBatch(ctx, "sess-1", []record.RawRow{
		{ItemID: "item-a", Value: 10},
		{ItemID: "item-a", Value: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	snapshots, err := recorder.CurrentValues(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.JSONEq(t, `12`, string(snapshots[0].Value))

	samples, err := recorder.History(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestRecorder_ApplyBatch_Upserts(t *testing.T) {
	recorder, store := newTestRecorder(t)
	ctx := context.Background()

	_, err := recorder.ApplyBatch(ctx, "sess-1", []record.RawRow{
		{ItemID: "item-a", Value: 10, Note: "first"},
	})
	require.NoError(t, err)

	before, err := store.FindSnapshot(ctx, "sess-1", "item-a")
	require.NoError(t, err)
	require.NotNil(t, before)

	_, err = recorder.ApplyBatch(ctx, "sess-1", []record.RawRow{
		{ItemID: "item-a", Value: 12, Note: "second"},
	})
	require.NoError(t, err)

	// Still exactly one snapshot, overwritten in place
	snapshots, err := recorder.CurrentValues(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	after := snapshots[0]
	assert.JSONEq(t, `12`, string(after.Value))
	assert.Equal(t, "second", after.Remark)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}

func TestRecorder_Idempotence(t *testing.T) {
	// Applying the same batch twice: snapshot identical to applying it
	// once, history row count doubled.
	recorder, _ := newTestRecorder(t)
	ctx := context.Background()

	batch := []record.RawRow{
		{ItemID: "item-a", Value: 42.5},
		{ItemID: "item-b", Value: "ok"},
	}

	_, err := recorder.ApplyBatch(ctx, "sess-1", batch)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond) // distinct batch timestamps
	_, err = recorder.ApplyBatch(ctx, "sess-1", batch)
	require.NoError(t, err)

	snapshots, err := recorder.CurrentValues(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	for _, snap := range snapshots {
		switch snap.ItemID {
		case "item-a":
			assert.JSONEq(t, `42.5`, string(snap.Value))
		case "item-b":
			assert.JSONEq(t, `"ok"`, string(snap.Value))
		}
	}

	samples, err := recorder.History(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, samples, 4)
}

// =============================================================================
// NO-OP BATCHES
// =============================================================================

func TestRecorder_EmptyBatch_TouchesNothing(t *testing.T) {
	// A recorder over a store that fails every call proves the no-op batch
	// short-circuits before any storage access.
	recorder := record.NewRecorder(&explodingStore{})
	ctx := context.Background()

	count, err := recorder.ApplyBatch(ctx, "sess-1", nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = recorder.ApplyBatch(ctx, "sess-1", []record.RawRow{
		{ItemID: "", Value: 1},
		{ItemID: 99, Value: 2},
	})
	require.NoError(t, err)
	assert.Zero(t, count, "all-invalid batch is a no-op too")
}

// =============================================================================
// ATOMICITY
// =============================================================================

func TestRecorder_Atomicity_SampleFailureRollsBackSnapshot(t *testing.T) {
	// GIVEN: An existing snapshot value
	_, store := newTestRecorder(t)
	ctx := context.Background()

	seeded := record.NewRecorder(store)
	_, err := seeded.ApplyBatch(ctx, "sess-1", []record.RawRow{
		{ItemID: "item-a", Value: 10},
	})
	require.NoError(t, err)

	// WHEN: A batch whose history append fails after the upsert succeeded
	recorder := record.NewRecorder(&sampleFailStore{store})
	_, err = recorder.ApplyBatch(ctx, "sess-1", []record.RawRow{
		{ItemID: "item-a", Value: 99},
	})
	require.Error(t, err)

	// THEN: The snapshot still holds the pre-batch value and no extra
	// samples were persisted - atomicity spans both stores.
	snap, err := store.FindSnapshot(ctx, "sess-1", "item-a")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `10`, string(snap.Value))

	samples, err := store.ListSamples(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

// =============================================================================
// FAULT-INJECTION DOUBLES
// =============================================================================

// sampleFailStore delegates to a real store but fails the sample append
// inside the transaction.
type sampleFailStore struct {
	record.TxStore
}

func (s *sampleFailStore) WithTx(ctx context.Context, fn func(tx record.Store) error) error {
	return s.TxStore.WithTx(ctx, func(tx record.Store) error {
		return fn(&failingSampleTx{tx})
	})
}

type failingSampleTx struct {
	record.Store
}

func (f *failingSampleTx) AppendSamples(ctx context.Context, samples []record.Sample) error {
	return errors.New("injected: sample append failed")
}

// explodingStore fails every operation; reaching it at all is the bug.
type explodingStore struct{}

func (e *explodingStore) FindSnapshot(ctx context.Context, sessionID, itemID string) (*record.Snapshot, error) {
	return nil, errors.New("unexpected storage access")
}

func (e *explodingStore) UpsertSnapshot(ctx context.Context, snap record.Snapshot) error {
	return errors.New("unexpected storage access")
}

func (e *explodingStore) ListSnapshots(ctx context.Context, sessionID string) ([]record.Snapshot, error) {
	return nil, errors.New("unexpected storage access")
}

func (e *explodingStore) AppendSamples(ctx context.Context, samples []record.Sample) error {
	return errors.New("unexpected storage access")
}

func (e *explodingStore) ListSamples(ctx context.Context, sessionID string) ([]record.Sample, error) {
	return nil, errors.New("unexpected storage access")
}

func (e *explodingStore) WithTx(ctx context.Context, fn func(tx record.Store) error) error {
	return errors.New("unexpected storage access")
}
