// Package memhost is an in-process host used by the CLI and end-to-end
// tests. It mirrors the tabletop runtime's limits: one native handler per
// element and event type, and batched field writes.
package memhost

import (
	"fmt"
	"sort"
	"sync"

	"github.com/louisbranch/sheetkit/internal/host"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// Sheet is an in-memory document instance.
type Sheet struct {
	id    int64
	kind  string
	store store.Store

	mu       sync.Mutex
	elements map[string]*Element
}

// NewSheet returns a sheet of kind backed by s.
func NewSheet(id int64, kind string, s store.Store) *Sheet {
	return &Sheet{
		id:       id,
		kind:     kind,
		store:    s,
		elements: map[string]*Element{},
	}
}

// InstanceID implements host.Sheet.
func (s *Sheet) InstanceID() int64 { return s.id }

// Kind implements host.Sheet.
func (s *Sheet) Kind() string { return s.kind }

// Store implements host.Sheet.
func (s *Sheet) Store() store.Store { return s.store }

// Element implements host.Sheet.
func (s *Sheet) Element(id string) (host.Element, bool) {
	el, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	return el, true
}

// Lookup returns the concrete element so callers can fire events on it.
func (s *Sheet) Lookup(id string) (*Element, bool) {
	return s.lookup(id)
}

func (s *Sheet) lookup(id string) (*Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[id]
	return el, ok
}

// AddElement creates or replaces a top-level element.
func (s *Sheet) AddElement(id string, value any) *Element {
	el := newElement(id, "", value)
	s.mu.Lock()
	s.elements[id] = el
	s.mu.Unlock()
	return el
}

// AddRow creates a repeater row element under repeaterID whose children are
// fields. The row itself is reachable through the repeater element's Find.
func (s *Sheet) AddRow(repeaterID, index string, fields map[string]any) (*Element, error) {
	repeater, ok := s.lookup(repeaterID)
	if !ok {
		return nil, fmt.Errorf("repeater %s not found", repeaterID)
	}
	row := newElement(index, index, nil)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row.addChild(newElement(k, index, fields[k]))
	}
	repeater.addChild(row)
	return row, nil
}

// ElementIDs returns the top-level element ids, sorted.
func (s *Sheet) ElementIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.elements))
	for id := range s.elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Element is an in-memory UI component.
type Element struct {
	id    string
	index string

	mu       sync.Mutex
	value    any
	handlers map[string]func(host.Element) error
	installs map[string]int
	children map[string]*Element
}

func newElement(id, index string, value any) *Element {
	return &Element{
		id:       id,
		index:    index,
		value:    value,
		handlers: map[string]func(host.Element) error{},
		installs: map[string]int{},
		children: map[string]*Element{},
	}
}

func (e *Element) addChild(child *Element) {
	e.mu.Lock()
	e.children[child.id] = child
	e.mu.Unlock()
}

// ID implements host.Element.
func (e *Element) ID() string { return e.id }

// Index implements host.Element.
func (e *Element) Index() string { return e.index }

// Value implements host.Element.
func (e *Element) Value() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// SetValue implements host.Element.
func (e *Element) SetValue(v any) {
	e.mu.Lock()
	e.value = v
	e.mu.Unlock()
}

// On implements host.Element. A second handler for the same event type
// replaces the first.
func (e *Element) On(eventType string, handler func(host.Element) error) {
	e.mu.Lock()
	e.handlers[eventType] = handler
	e.installs[eventType]++
	e.mu.Unlock()
}

// Off implements host.Element.
func (e *Element) Off(eventType string) {
	e.mu.Lock()
	delete(e.handlers, eventType)
	e.mu.Unlock()
}

// Find implements host.Element.
func (e *Element) Find(id string) (host.Element, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	child, ok := e.children[id]
	if !ok {
		return nil, false
	}
	return child, true
}

// Child returns the concrete child element.
func (e *Element) Child(id string) (*Element, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	child, ok := e.children[id]
	return child, ok
}

// Installs counts how many native handlers were installed for eventType.
func (e *Element) Installs(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.installs[eventType]
}

// Fire runs the native handler for eventType with e as the target. Firing a
// type with no handler does nothing.
func (e *Element) Fire(eventType string) error {
	return e.FireFrom(eventType, e)
}

// FireFrom runs the native handler with an explicit target, as when a click
// inside a repeater row bubbles to the repeater.
func (e *Element) FireFrom(eventType string, target host.Element) error {
	e.mu.Lock()
	handler := e.handlers[eventType]
	e.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(target)
}

