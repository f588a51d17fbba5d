package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one flat record inside a repeater.
type Entry map[string]any

// Clone returns an independent copy of the entry.
func (e Entry) Clone() Entry {
	if e == nil {
		return nil
	}
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = CloneValue(v)
	}
	return out
}

// Equal reports whether both entries hold the same keys and values.
func (e Entry) Equal(other Entry) bool {
	if len(e) != len(other) {
		return false
	}
	for k, v := range e {
		ov, ok := other[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

func asEntry(v any) (Entry, bool) {
	switch t := v.(type) {
	case Entry:
		return t, true
	case map[string]any:
		return Entry(t), true
	default:
		return nil, false
	}
}

// Repeater is an insertion-ordered mapping of entry id to Entry.
type Repeater struct {
	ids     []string
	entries map[string]Entry
}

// NewRepeater returns an empty repeater.
func NewRepeater() *Repeater {
	return &Repeater{entries: map[string]Entry{}}
}

// Len returns the number of entries.
func (r *Repeater) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}

// IDs returns the entry ids in insertion order.
func (r *Repeater) IDs() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.ids...)
}

// Get returns the entry stored under id.
func (r *Repeater) Get(id string) (Entry, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[id]
	return e, ok
}

// Set stores e under id. Replacing an existing id keeps its position.
func (r *Repeater) Set(id string, e Entry) {
	if r.entries == nil {
		r.entries = map[string]Entry{}
	}
	if _, ok := r.entries[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.entries[id] = e
}

// Delete removes id if present.
func (r *Repeater) Delete(id string) {
	if r == nil {
		return
	}
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, existing := range r.ids {
		if existing == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
}

// Each visits entries in insertion order.
func (r *Repeater) Each(fn func(id string, e Entry)) {
	if r == nil {
		return
	}
	for _, id := range r.ids {
		fn(id, r.entries[id])
	}
}

// Clone returns a deep copy.
func (r *Repeater) Clone() *Repeater {
	out := NewRepeater()
	r.Each(func(id string, e Entry) {
		out.Set(id, e.Clone())
	})
	return out
}

// Equal compares ids, order, and entries.
func (r *Repeater) Equal(other *Repeater) bool {
	if r.Len() != other.Len() {
		return false
	}
	for i, id := range r.IDs() {
		if other.ids[i] != id {
			return false
		}
		if !r.entries[id].Equal(other.entries[id]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes entries as a JSON object in insertion order.
func (r *Repeater) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range r.IDs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(map[string]any(r.entries[id]))
		if err != nil {
			return nil, fmt.Errorf("marshal entry %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order as entry order.
func (r *Repeater) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = Repeater{entries: map[string]Entry{}}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("repeater: expected object, got %v", tok)
	}
	out := Repeater{entries: map[string]Entry{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("repeater: expected entry id, got %v", keyTok)
		}
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("repeater entry %s: %w", id, err)
		}
		out.Set(id, Entry(entry))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}
