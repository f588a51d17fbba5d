// Package diceevents routes executed rolls to listeners selected by roll
// tags. Sheet listeners run before global ones, and a listener can stop the
// rest of the chain.
package diceevents

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/sheetkit/internal/host"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
)

// Flow tells the registry whether to keep offering the roll.
type Flow bool

const (
	Continue Flow = true
	Stop     Flow = false
)

// Callback handles a matching roll.
type Callback func(ctx context.Context, result host.DiceResult, render host.RenderFunc) (Flow, error)

type sheetListener struct {
	sheet host.Sheet
	conds Conditions
	cb    Callback
}

type globalListener struct {
	conds Conditions
	cb    Callback
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry holds dice listeners.
type Registry struct {
	mu     sync.Mutex
	sheets []sheetListener
	global []globalListener
	logger *log.Logger
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{logger: log.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Add listens to rolls made from sheet that match conds. Rolls tagged with a
// different sheet uid are ignored once the sheet has a uid.
func (r *Registry) Add(sheet host.Sheet, conds Conditions, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sheets = append(r.sheets, sheetListener{sheet: sheet, conds: conds.normalize(), cb: cb})
}

// AddGlobal listens to matching rolls from anywhere. Global listeners only
// run when no sheet listener stopped the chain.
func (r *Registry) AddGlobal(conds Conditions, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, globalListener{conds: conds.normalize(), cb: cb})
}

// Remove drops the sheet's listeners registered with equal conditions.
func (r *Registry) Remove(sheet host.Sheet, conds Conditions) {
	want := conds.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.sheets[:0]
	for _, l := range r.sheets {
		if l.sheet.InstanceID() == sheet.InstanceID() && l.conds.String() == want {
			continue
		}
		kept = append(kept, l)
	}
	r.sheets = kept
}

// RemoveGlobal drops global listeners registered with equal conditions.
func (r *Registry) RemoveGlobal(conds Conditions) {
	want := conds.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.global[:0]
	for _, l := range r.global {
		if l.conds.String() == want {
			continue
		}
		kept = append(kept, l)
	}
	r.global = kept
}

// Len returns the sheet and global listener counts.
func (r *Registry) Len() (sheets, global int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sheets), len(r.global)
}

// Intercept offers result to every matching listener in order. It stops at
// the first listener returning Stop or an error.
func (r *Registry) Intercept(ctx context.Context, result host.DiceResult, render host.RenderFunc) error {
	r.mu.Lock()
	sheets := append([]sheetListener(nil), r.sheets...)
	global := append([]globalListener(nil), r.global...)
	r.mu.Unlock()

	roller := RollerID(result.AllTags)
	for _, l := range sheets {
		uid, err := sheetUID(ctx, l.sheet)
		if err != nil {
			return err
		}
		if uid != "" && uid != roller {
			continue
		}
		if !l.conds.Match(result.AllTags) {
			continue
		}
		flow, err := l.cb(ctx, result, render)
		if err != nil {
			r.logger.Printf("dice listener %s on %s failed: %v", l.conds, uid, err)
			return fmt.Errorf("dice listener %s: %w", l.conds, err)
		}
		if flow == Stop {
			return nil
		}
	}
	for _, l := range global {
		if !l.conds.Match(result.AllTags) {
			continue
		}
		flow, err := l.cb(ctx, result, render)
		if err != nil {
			r.logger.Printf("global dice listener %s failed: %v", l.conds, err)
			return fmt.Errorf("global dice listener %s: %w", l.conds, err)
		}
		if flow == Stop {
			return nil
		}
	}
	return nil
}

// RollerID returns the first sheet uid tag, or "" when the roll carries none.
func RollerID(tags []string) string {
	for _, tag := range tags {
		if strings.HasPrefix(tag, document.IDPrefix) {
			return tag
		}
	}
	return ""
}

func sheetUID(ctx context.Context, sheet host.Sheet) (string, error) {
	s := sheet.Store()
	if s == nil {
		return "", nil
	}
	v, ok, err := s.Get(ctx, document.FieldUID)
	if err != nil {
		return "", fmt.Errorf("read uid of %d: %w", sheet.InstanceID(), err)
	}
	if !ok {
		return "", nil
	}
	uid, _ := v.(string)
	return uid, nil
}
