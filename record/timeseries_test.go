package record_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/eval-engine/record"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func numberItem(id, label string, order int) record.Item {
	return record.Item{ID: id, Key: id, Label: label, Kind: record.KindNumber, Order: order}
}

func boolItem(id, label string, order int) record.Item {
	return record.Item{ID: id, Key: id, Label: label, Kind: record.KindBool, Order: order}
}

func sample(itemID string, at time.Time, value string) record.Sample {
	return record.Sample{
		SessionID: "sess-1",
		ItemID:    itemID,
		Value:     json.RawMessage(value),
		SampledAt: at,
	}
}

var base = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

// =============================================================================
// RECONSTRUCTION
// =============================================================================

func TestReconstruct_PivotsByTurnAndItem(t *testing.T) {
	items := []record.Item{
		numberItem("a", "Max speed", 10),
		boolItem("b", "Safety check", 20),
	}
	t1 := base
	t2 := base.Add(5 * time.Minute)
	samples := []record.Sample{
		sample("a", t1, `10`),
		sample("b", t1, `true`),
		sample("a", t2, `12`),
	}

	table := record.Reconstruct(items, samples)

	require.Len(t, table.Columns, 2)
	assert.Equal(t, "Max speed", table.Columns[0].Label)
	assert.Equal(t, "Safety check", table.Columns[1].Label)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, 1, table.Rows[0].Turn)
	require.NotNil(t, table.Rows[0].Cells[0])
	assert.Equal(t, 10.0, *table.Rows[0].Cells[0])
	require.NotNil(t, table.Rows[0].Cells[1])
	assert.Equal(t, 1.0, *table.Rows[0].Cells[1])

	assert.Equal(t, 2, table.Rows[1].Turn)
	require.NotNil(t, table.Rows[1].Cells[0])
	assert.Equal(t, 12.0, *table.Rows[1].Cells[0])
	assert.Nil(t, table.Rows[1].Cells[1], "item b skipped turn 2: gap, not zero")
}

func TestReconstruct_TurnOrderFollowsTimestamps(t *testing.T) {
	// GIVEN: Samples whose storage order disagrees with their timestamps
	items := []record.Item{numberItem("a", "A", 10)}
	tEarly := base
	tMid := base.Add(time.Minute)
	tLate := base.Add(2 * time.Minute)
	samples := []record.Sample{
		sample("a", tMid, `2`),
		sample("a", tEarly, `1`),
		sample("a", tLate, `3`),
	}

	// WHEN: Reconstructing
	table := record.Reconstruct(items, samples)

	// THEN: Turns are assigned by ascending timestamp, not storage order
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 1.0, *table.Rows[0].Cells[0])
	assert.Equal(t, 2.0, *table.Rows[1].Cells[0])
	assert.Equal(t, 3.0, *table.Rows[2].Cells[0])
}

func TestReconstruct_GapIntegrity(t *testing.T) {
	// Item present on turns 1 and 3 but not 2: turn 2 is a gap, never the
	// turn-1 value carried forward and never zero.
	items := []record.Item{
		numberItem("a", "A", 10),
		numberItem("b", "B", 20),
	}
	t1, t2, t3 := base, base.Add(time.Minute), base.Add(2*time.Minute)
	samples := []record.Sample{
		sample("a", t1, `5`),
		sample("b", t1, `1`),
		sample("b", t2, `2`),
		sample("a", t3, `7`),
		sample("b", t3, `3`),
	}

	table := record.Reconstruct(items, samples)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, 5.0, *table.Rows[0].Cells[0])
	assert.Nil(t, table.Rows[1].Cells[0])
	assert.Equal(t, 7.0, *table.Rows[2].Cells[0])
}

func TestReconstruct_ExactTimestampGrouping(t *testing.T) {
	// One millisecond apart is two distinct save-events.
	items := []record.Item{numberItem("a", "A", 10)}
	samples := []record.Sample{
		sample("a", base, `1`),
		sample("a", base.Add(time.Millisecond), `2`),
	}

	table := record.Reconstruct(items, samples)
	assert.Len(t, table.Rows, 2)
}

func TestReconstruct_ItemAddedAfterEarlierTurns(t *testing.T) {
	// An item added to the catalog later yields gaps on all earlier turns.
	items := []record.Item{
		numberItem("a", "A", 10),
		numberItem("late", "Added later", 20),
	}
	t1, t2 := base, base.Add(time.Minute)
	samples := []record.Sample{
		sample("a", t1, `1`),
		sample("a", t2, `2`),
		sample("late", t2, `9`),
	}

	table := record.Reconstruct(items, samples)

	require.Len(t, table.Rows, 2)
	assert.Nil(t, table.Rows[0].Cells[1])
	require.NotNil(t, table.Rows[1].Cells[1])
	assert.Equal(t, 9.0, *table.Rows[1].Cells[1])
}

func TestReconstruct_CoercesPolymorphicValues(t *testing.T) {
	items := []record.Item{
		numberItem("n", "N", 10),
		boolItem("f", "F", 20),
		{ID: "t", Key: "t", Label: "T", Kind: record.KindText, Order: 30},
	}
	samples := []record.Sample{
		sample("n", base, `{"value":"42.5"}`),
		sample("f", base, `false`),
		sample("t", base, `"not numeric"`),
	}

	table := record.Reconstruct(items, samples)

	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	require.NotNil(t, row.Cells[0])
	assert.Equal(t, 42.5, *row.Cells[0])
	require.NotNil(t, row.Cells[1])
	assert.Equal(t, 0.0, *row.Cells[1], "false charts as zero, not a gap")
	assert.Nil(t, row.Cells[2], "non-numeric text stays off the chart")
}

func TestReconstruct_Deterministic(t *testing.T) {
	items := []record.Item{
		numberItem("a", "A", 10),
		numberItem("b", "B", 20),
	}
	samples := []record.Sample{
		sample("a", base, `1`),
		sample("b", base.Add(time.Minute), `2`),
		sample("a", base.Add(2*time.Minute), `3`),
	}

	first := record.Reconstruct(items, samples)
	second := record.Reconstruct(items, samples)
	assert.Equal(t, first, second)
}

func TestReconstruct_EmptyHistory(t *testing.T) {
	table := record.Reconstruct([]record.Item{numberItem("a", "A", 10)}, nil)
	assert.Len(t, table.Columns, 1)
	assert.Empty(t, table.Rows)
}
