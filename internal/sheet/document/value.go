package document

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field ids shared by every sheet kind.
const (
	FieldVersion        = "version"
	FieldUID            = "uid"
	FieldDiceVisibility = "diceVisibility"
)

// Data is the field-id to value mapping of one document.
type Data map[string]any

// Clone returns a copy of d whose repeaters and entries are independent.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = CloneValue(v)
	}
	return out
}

// Version returns the stored schema version. The host may hand the field
// back as a numeric string. An absent or non-numeric version reads as 0.
func (d Data) Version() int {
	if s, ok := d[FieldVersion].(string); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(n) {
			return 0
		}
		return int(n)
	}
	n, ok := Number(d[FieldVersion])
	if !ok {
		return 0
	}
	return int(n)
}

// String returns the string stored at key, or "" for any other value.
func (d Data) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Number returns the numeric value stored at key.
func (d Data) Number(key string) (float64, bool) {
	return Number(d[key])
}

// Bool reports the truthiness of the value at key.
func (d Data) Bool(key string) bool {
	return Truthy(d[key])
}

// Repeater returns the repeater stored at key. An absent field yields
// (nil, false); any non-repeater value also yields false.
func (d Data) Repeater(key string) (*Repeater, bool) {
	r, ok := d[key].(*Repeater)
	return r, ok && r != nil
}

// Number converts the numeric representations a document may hold. Strings
// are not coerced.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Truthy mirrors the host's loose boolean reading of stored values.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case *Repeater:
		return t != nil
	default:
		n, ok := Number(v)
		if ok {
			return n != 0
		}
		return true
	}
}

// EmptyValue returns the smallest representable value of v's type, used to
// blank a field the host cannot delete.
func EmptyValue(v any) any {
	switch v.(type) {
	case nil:
		return nil
	case string:
		return ""
	case bool:
		return false
	case int:
		return 0
	case int32:
		return int32(0)
	case int64:
		return int64(0)
	case float32:
		return float32(0)
	case float64, json.Number:
		return float64(0)
	case *Repeater:
		return NewRepeater()
	case Entry:
		return Entry{}
	case map[string]any:
		return map[string]any{}
	default:
		return nil
	}
}

// CloneValue copies repeaters and entries; scalars are returned as-is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case *Repeater:
		return t.Clone()
	case Entry:
		return t.Clone()
	case map[string]any:
		return Entry(t).Clone()
	default:
		return v
	}
}

// Equal compares two document values, treating numeric types by value.
func Equal(a, b any) bool {
	if na, ok := Number(a); ok {
		nb, ok := Number(b)
		return ok && na == nb
	}
	switch ta := a.(type) {
	case *Repeater:
		tb, ok := b.(*Repeater)
		return ok && ta.Equal(tb)
	case Entry:
		tb, ok := asEntry(b)
		return ok && ta.Equal(tb)
	case map[string]any:
		tb, ok := asEntry(b)
		return ok && Entry(ta).Equal(tb)
	default:
		return a == b
	}
}

// ConvertInstanceID turns a host sheet id into the uid used in roll tags.
// Tags cannot contain digits, so each decimal digit maps to a letter A..J.
func ConvertInstanceID(id int64) string {
	digits := strconv.FormatInt(id, 10)
	var b strings.Builder
	b.Grow(len(IDPrefix) + len(digits))
	b.WriteString(IDPrefix)
	for _, c := range digits {
		if c < '0' || c > '9' {
			continue
		}
		b.WriteByte(byte('A' + (c - '0')))
	}
	return b.String()
}

// IDPrefix marks the uid tag inside a roll's tag list.
const IDPrefix = "ID_"
