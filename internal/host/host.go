// Package host declares the contracts the sheet core consumes from the
// hosting tabletop runtime: documents, their UI elements, the roller, and
// roll results handed back for interception.
package host

import (
	"context"
	"slices"

	"github.com/louisbranch/sheetkit/internal/core/dice"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// Event types fired by host elements.
const (
	EventClick  = "click"
	EventUpdate = "update"
)

// Sheet is one open document instance.
type Sheet interface {
	// InstanceID is the numeric host id, stable for the document's lifetime.
	InstanceID() int64
	// Kind is the raw schema tag. It may name a kind the core does not know.
	Kind() string
	// Store persists the document's fields.
	Store() store.Store
	// Element resolves a UI element by id.
	Element(id string) (Element, bool)
}

// Element is a UI component inside a sheet.
//
// The host keeps at most one native handler per event type; a later On call
// for the same type replaces the earlier handler.
type Element interface {
	ID() string
	// Index is the repeater entry id when the element lives in a repeater row.
	Index() string
	Value() any
	SetValue(v any)
	On(eventType string, handler func(target Element) error)
	Off(eventType string)
	// Find resolves a child element, e.g. a field inside a repeater row.
	Find(id string) (Element, bool)
}

// Roller submits roll expressions for execution and display.
type Roller interface {
	SubmitRoll(ctx context.Context, sheet Sheet, expr dice.Expr, title, visibility string) error
}

// DiceResult is the host view of an executed roll.
type DiceResult struct {
	InstanceID int64
	Title      string
	Expression string
	Total      int
	Compared   bool
	Success    bool
	Margin     int
	AllTags    []string
	Visibility string
}

// ContainsTag reports whether the roll carried tag.
func (r DiceResult) ContainsTag(tag string) bool {
	return slices.Contains(r.AllTags, tag)
}

// RenderFunc asks the host to render a view for a roll result. populate
// receives the view's fields to fill in.
type RenderFunc func(viewID string, populate func(fields map[string]any))
