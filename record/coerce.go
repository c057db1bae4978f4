/*
coerce.go - Polymorphic stored value to typed scalar

PURPOSE:
  Stored values arrive in several encodings: a bare scalar, a single-level
  {"value": X} wrapper, or raw JSON bytes straight from the store. Coerce
  resolves that ambiguity in exactly one place and produces a strict scalar
  per item kind. Nothing outside this file inspects value structure.

NO-VALUE SEMANTICS:
  "No value" (Scalar.Null) is distinct from the zero value of each kind:
  an empty TEXT string and a NUMBER zero are real values, a gap is not.
  The reconstructor relies on this to render gaps instead of false zeros.

COERCION RULES:
  NUMBER: numbers pass through; true/false map to 1/0; strings parse as
          base-10 numbers when trimmed and fully numeric, else no value.
  BOOL:   booleans pass through; non-empty strings and non-zero numbers
          are true (host truthiness); charted as 1/0.
  TEXT:   strings pass through; numbers and booleans are stringified;
          empty string is a valid value.

Pure functions, no side effects.
*/
package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Scalar is the result of coercing a stored value against an item kind.
// Exactly one of Num/Str/Bool is meaningful, selected by Kind; Null set
// means "no value" regardless of the other fields.
type Scalar struct {
	Kind ItemKind
	Num  float64
	Str  string
	Bool bool
	Null bool
}

// Coerce normalizes a polymorphic stored value into a strict scalar for the
// given item kind. Raw JSON bytes are decoded first; a single {"value": X}
// wrapper level is removed before coercing.
func Coerce(kind ItemKind, raw any) Scalar {
	v := Unwrap(raw)

	switch kind {
	case KindNumber:
		if n, ok := asNumber(v); ok {
			return Scalar{Kind: kind, Num: n}
		}
		return Scalar{Kind: kind, Null: true}

	case KindBool:
		if v == nil {
			return Scalar{Kind: kind, Null: true}
		}
		return Scalar{Kind: kind, Bool: truthy(v)}

	case KindText:
		if v == nil {
			return Scalar{Kind: kind, Null: true}
		}
		return Scalar{Kind: kind, Str: stringify(v)}
	}

	return Scalar{Kind: kind, Null: true}
}

// Chart projects the scalar onto the numeric chart axis.
// Returns nil for gaps: a skipped turn must not chart as zero.
func (s Scalar) Chart() *float64 {
	if s.Null {
		return nil
	}
	switch s.Kind {
	case KindNumber:
		n := s.Num
		return &n
	case KindBool:
		n := 0.0
		if s.Bool {
			n = 1.0
		}
		return &n
	case KindText:
		// Numeric text still charts; prose does not.
		if n, ok := parseNumber(s.Str); ok {
			return &n
		}
	}
	return nil
}

// Display renders the scalar for tabular export. Gaps render empty.
func (s Scalar) Display() string {
	if s.Null {
		return ""
	}
	switch s.Kind {
	case KindNumber:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.Bool)
	case KindText:
		return s.Str
	}
	return ""
}

// Unwrap decodes raw JSON bytes and removes exactly one {"value": X}
// wrapper level. Deeper nesting is left alone: {"value":{"value":1}}
// unwraps to {"value":1}, which then coerces to no value.
func Unwrap(raw any) any {
	switch b := raw.(type) {
	case json.RawMessage:
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		raw = v
	case []byte:
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		raw = v
	}

	if m, ok := raw.(map[string]any); ok {
		if inner, ok := m["value"]; ok {
			return inner
		}
	}
	return raw
}

// asNumber applies the NUMBER coercion rules to an unwrapped value.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		return parseNumber(n.String())
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		return parseNumber(n)
	}
	return 0, false
}

// parseNumber parses a base-10 integer or decimal. The empty (or
// all-whitespace) string is no value, not zero.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// truthy applies host boolean-cast semantics to an unwrapped value.
func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != ""
	case float64:
		return b != 0
	case float32:
		return b != 0
	case int:
		return b != 0
	case int64:
		return b != 0
	case json.Number:
		n, ok := parseNumber(b.String())
		return !ok || n != 0
	case nil:
		return false
	}
	// Objects and arrays are truthy.
	return true
}

// stringify applies the TEXT coercion rules to an unwrapped value.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}
