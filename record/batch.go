/*
batch.go - Submitted batch normalization

PURPOSE:
  Turns a raw submitted batch into a clean list of rows the recorder can
  apply. Rows with unusable item identifiers are silently dropped, and when
  the same identifier appears more than once the last occurrence wins.

LAST-WINS DEDUP:
  Repeating an item inside one batch is a deliberate "latest wins within a
  batch" policy, not an error. Downstream processing is an unordered
  per-item upsert, so only the final value per identifier matters.

VALUE PASS-THROUGH:
  Value payloads are not type-checked against the item kind here. They are
  deep-cloned through a JSON round-trip to strip non-serializable artifacts
  and stored opaquely; interpretation happens at read time in coerce.go.
*/
package record

import (
	"encoding/json"
	"strings"
)

// Normalize cleans a raw submitted batch:
//   - drops rows whose item identifier is missing, not a string, or blank
//     after trimming
//   - deduplicates by item identifier, last occurrence in submission order
//     winning
//   - clones each value payload into raw JSON
//
// Zero output rows is valid (a no-op batch) and must short-circuit before
// any storage access.
func Normalize(raw []RawRow) []Row {
	index := make(map[string]int, len(raw))
	clean := make([]Row, 0, len(raw))

	for _, r := range raw {
		id, ok := r.ItemID.(string)
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}

		value, err := cloneValue(r.Value)
		if err != nil {
			continue
		}

		row := Row{ItemID: id, Value: value, Note: r.Note}
		if at, seen := index[id]; seen {
			clean[at] = row
			continue
		}
		index[id] = len(clean)
		clean = append(clean, row)
	}

	return clean
}

// cloneValue deep-clones a value payload by JSON round-trip, the store's
// canonical encoding for opaque values.
func cloneValue(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		out := make(json.RawMessage, len(raw))
		copy(out, raw)
		return out, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(encoded), nil
}
