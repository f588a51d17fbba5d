// Package listener multiplexes sheet element events onto any number of
// callbacks while installing at most one native handler per element and
// event type.
package listener

import (
	"log"
	"strconv"
	"sync"

	"github.com/louisbranch/sheetkit/internal/host"
	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
)

// ErrMissingElement rejects a registration on an element the sheet lacks.
var ErrMissingElement = apperrors.New(apperrors.CodeMissingElement, "element not found")

type key struct {
	instance int64
	element  string
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

// WithFaultPolicy sets the policy of every emitter the registry creates.
func WithFaultPolicy(policy FaultPolicy) Option {
	return func(r *Registry) {
		r.policy = policy
	}
}

// WithDebug logs every dispatch.
func WithDebug(enabled bool) Option {
	return func(r *Registry) {
		r.debug = enabled
	}
}

// binding is the emitter of one (instance, element) pair and the handle its
// native handler was installed on.
type binding struct {
	em    *Emitter
	sheet host.Sheet
	el    host.Element
}

// Registry owns one Emitter per (sheet instance, element). When the host
// hands back a new element handle for a known pair, the native handlers are
// installed again on the new handle.
type Registry struct {
	mu       sync.Mutex
	emitters map[key]*binding
	policy   FaultPolicy
	logger   *log.Logger
	debug    bool
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		emitters: map[key]*binding{},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register attaches fn to eventType on the sheet's element. The first
// registration for an event type installs the native handler; a missing
// element fails with ErrMissingElement and leaves nothing installed.
func (r *Registry) Register(sheet host.Sheet, elementID, eventType string, fn Func, opts Options) (*Registration, error) {
	em, err := r.emitter(sheet, elementID)
	if err != nil {
		return nil, err
	}
	return em.Add(eventType, fn, opts)
}

// Listeners returns how many listeners are attached to a triple.
func (r *Registry) Listeners(instanceID int64, elementID, eventType string) int {
	r.mu.Lock()
	b, ok := r.emitters[key{instance: instanceID, element: elementID}]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return b.em.Len(eventType)
}

func (r *Registry) emitter(sheet host.Sheet, elementID string) (*Emitter, error) {
	k := key{instance: sheet.InstanceID(), element: elementID}
	current, ok := sheet.Element(elementID)
	if !ok {
		current = nil
	}

	r.mu.Lock()
	if b, ok := r.emitters[k]; ok {
		if current == nil || b.el == current {
			r.mu.Unlock()
			return b.em, nil
		}
		b.sheet, b.el = sheet, current
		r.mu.Unlock()
		if err := b.em.Rehook(); err != nil {
			return nil, err
		}
		return b.em, nil
	}
	defer r.mu.Unlock()

	b := &binding{sheet: sheet, el: current}
	name := strconv.FormatInt(k.instance, 10) + "->" + elementID
	b.em = NewEmitter(func(eventType string) error {
		r.mu.Lock()
		sheet := b.sheet
		r.mu.Unlock()
		el, ok := sheet.Element(elementID)
		if !ok {
			r.logger.Printf("could not find %s to add a listener", elementID)
			return apperrors.WithMetadata(
				apperrors.CodeMissingElement,
				"element not found: "+elementID,
				map[string]string{"element": elementID, "instance": strconv.FormatInt(k.instance, 10)},
			)
		}
		el.On(eventType, func(target host.Element) error {
			if r.debug {
				r.logger.Printf("dispatching %s:%s to %d listeners", name, eventType, b.em.Len(eventType))
			}
			return b.em.Dispatch(Event{Type: eventType, Target: target})
		})
		return nil
	}, r.policy)
	b.em.onFault = func(eventType string, err error) {
		r.logger.Printf("listener %s:%s failed: %v", name, eventType, err)
	}
	r.emitters[k] = b
	return b.em, nil
}
