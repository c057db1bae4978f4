package record_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/eval-engine/record"
)

func TestNormalize_LastOccurrenceWins(t *testing.T) {
	// GIVEN: The same item submitted twice with different values
	raw := []record.RawRow{
		{ItemID: "item-a", Value: 10},
		{ItemID: "item-b", Value: true},
		{ItemID: "item-a", Value: 12},
	}

	// WHEN: Normalizing
	rows := record.Normalize(raw)

	// THEN: Exactly one row per item, the later value surviving
	require.Len(t, rows, 2)

	byID := make(map[string]record.Row)
	for _, r := range rows {
		byID[r.ItemID] = r
	}
	assert.JSONEq(t, `12`, string(byID["item-a"].Value))
	assert.JSONEq(t, `true`, string(byID["item-b"].Value))
}

func TestNormalize_DropsUnusableIdentifiers(t *testing.T) {
	raw := []record.RawRow{
		{ItemID: nil, Value: 1},
		{ItemID: 42, Value: 2},
		{ItemID: "", Value: 3},
		{ItemID: "   ", Value: 4},
		{ItemID: "item-ok", Value: 5},
	}

	rows := record.Normalize(raw)

	require.Len(t, rows, 1)
	assert.Equal(t, "item-ok", rows[0].ItemID)
	assert.JSONEq(t, `5`, string(rows[0].Value))
}

func TestNormalize_EmptyBatch(t *testing.T) {
	assert.Empty(t, record.Normalize(nil))
	assert.Empty(t, record.Normalize([]record.RawRow{}))
	assert.Empty(t, record.Normalize([]record.RawRow{{ItemID: "", Value: 1}}))
}

func TestNormalize_ValuesPassThroughUnexamined(t *testing.T) {
	// The normalizer never type-checks values against item kinds; any
	// serializable payload survives as raw JSON.
	raw := []record.RawRow{
		{ItemID: "a", Value: map[string]any{"value": "42.5"}},
		{ItemID: "b", Value: nil},
		{ItemID: "c", Value: []any{1, 2}},
	}

	rows := record.Normalize(raw)
	require.Len(t, rows, 3)
	assert.JSONEq(t, `{"value":"42.5"}`, string(rows[0].Value))
	assert.JSONEq(t, `null`, string(rows[1].Value))
	assert.JSONEq(t, `[1,2]`, string(rows[2].Value))
}

func TestNormalize_ClonesRawJSONValues(t *testing.T) {
	src := json.RawMessage(`{"value":1}`)
	rows := record.Normalize([]record.RawRow{{ItemID: "a", Value: src}})
	require.Len(t, rows, 1)

	// Mutating the caller's buffer must not reach the normalized row.
	src[0] = 'X'
	assert.JSONEq(t, `{"value":1}`, string(rows[0].Value))
}

func TestNormalize_KeepsNotes(t *testing.T) {
	rows := record.Normalize([]record.RawRow{
		{ItemID: "a", Value: 1, Note: "first pass"},
		{ItemID: "a", Value: 2, Note: "corrected"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "corrected", rows[0].Note)
}
