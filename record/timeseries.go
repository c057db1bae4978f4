/*
timeseries.go - Turn reconstruction from sample history

PURPOSE:
  Rebuilds the "turn 1, 2, 3..." axis from the immutable sample history.
  All samples written by one batch share one timestamp, so grouping by
  exact timestamp recovers the original save-events; sorting the distinct
  timestamps ascending and numbering them 1..N yields the turns.

OUTPUT:
  A wide table: one row per turn, one column per catalog item in display
  order, labeled by the item's display label. Cells are numeric-or-nil;
  nil is a gap (the item was not part of that save-event), never a
  defaulted zero.

PURITY:
  Reconstruct holds no state and is re-derivable at any time from the
  sample history plus the current item catalog. Identical inputs produce
  identical output. An item added to the catalog after earlier turns were
  recorded yields gaps on those turns; that is expected.
*/
package record

import "sort"

// Column describes one series of the reconstructed table.
type Column struct {
	ItemID string
	Key    string
	Label  string
	Unit   string
	Kind   ItemKind
}

// TurnRow is one reconstructed save-event. Cells align with the table's
// Columns by index; nil marks a gap.
type TurnRow struct {
	Turn  int
	Cells []*float64
}

// Table is the reconstructed multi-series view of a session's history.
type Table struct {
	Columns []Column
	Rows    []TurnRow
}

// Reconstruct groups samples into save-events by exact batch timestamp,
// orders the events chronologically, assigns 1-based turn numbers, and
// pivots into a wide table over the item catalog.
//
// Timestamps group only on bit-for-bit equality (UnixNano); no truncation
// to a coarser unit happens here.
func Reconstruct(items []Item, samples []Sample) Table {
	table := Table{Columns: make([]Column, len(items))}
	for i, it := range items {
		table.Columns[i] = Column{
			ItemID: it.ID,
			Key:    it.Key,
			Label:  it.Label,
			Unit:   it.Unit,
			Kind:   it.Kind,
		}
	}

	type cellKey struct {
		stamp  int64
		itemID string
	}
	cells := make(map[cellKey]Sample, len(samples))
	stampSet := make(map[int64]struct{})
	for _, s := range samples {
		stamp := s.SampledAt.UnixNano()
		stampSet[stamp] = struct{}{}
		// Within one save-event an item has at most one sample; if storage
		// ever holds more, the later one in feed order wins.
		cells[cellKey{stamp, s.ItemID}] = s
	}

	stamps := make([]int64, 0, len(stampSet))
	for stamp := range stampSet {
		stamps = append(stamps, stamp)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	table.Rows = make([]TurnRow, len(stamps))
	for turn, stamp := range stamps {
		row := TurnRow{Turn: turn + 1, Cells: make([]*float64, len(items))}
		for i, it := range items {
			sample, ok := cells[cellKey{stamp, it.ID}]
			if !ok {
				continue // gap, stays nil
			}
			row.Cells[i] = Coerce(it.Kind, sample.Value).Chart()
		}
		table.Rows[turn] = row
	}

	return table
}
