package listener

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/sheetkit/internal/host"
	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
)

// ErrCallbackFault marks an error returned or panicked by a listener.
var ErrCallbackFault = apperrors.New(apperrors.CodeListenerCallbackFault, "listener callback failed")

// Event is the synthetic event handed to listeners.
type Event struct {
	Type string
	// Target is the element that fired.
	Target host.Element
}

// Func handles one event.
type Func func(Event) error

// Options tune one registration.
type Options struct {
	// Once removes the listener after its first successful call.
	Once bool
	// Signal removes the listener when it aborts.
	Signal *Signal
}

// FaultPolicy decides what a dispatch does after a listener fails.
type FaultPolicy int

const (
	// FailFast stops the dispatch at the first failing listener and returns
	// its error.
	FailFast FaultPolicy = iota
	// Isolate keeps calling later listeners and returns every failure joined.
	Isolate
)

// String returns the config spelling of the policy.
func (p FaultPolicy) String() string {
	switch p {
	case Isolate:
		return "isolate"
	default:
		return "fail-fast"
	}
}

// ParseFaultPolicy reads "fail-fast" or "isolate". Empty means FailFast.
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "isolate":
		return Isolate, nil
	default:
		return FailFast, fmt.Errorf("unknown fault policy %q", s)
	}
}

// Registration is one listener attached to an Emitter.
type Registration struct {
	emitter   *Emitter
	eventType string
	fn        Func
	once      bool
	removed   bool
	stop      func()
}

// Remove detaches the listener. Removing twice is harmless.
func (r *Registration) Remove() {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.remove(r)
}

// Active reports whether the listener is still attached.
func (r *Registration) Active() bool {
	if r == nil || r.emitter == nil {
		return false
	}
	r.emitter.mu.Lock()
	defer r.emitter.mu.Unlock()
	return !r.removed
}

// Emitter fans events out to listeners in registration order.
type Emitter struct {
	mu        sync.Mutex
	hook      func(eventType string) error
	listeners map[string][]*Registration
	policy    FaultPolicy
	onFault   func(eventType string, err error)
}

// NewEmitter returns an emitter. hook runs once per event type, on the
// first registration for that type; a hook error rejects the registration
// and the next registration retries it.
func NewEmitter(hook func(eventType string) error, policy FaultPolicy) *Emitter {
	return &Emitter{
		hook:      hook,
		listeners: map[string][]*Registration{},
		policy:    policy,
	}
}

// Add attaches fn for eventType.
func (e *Emitter) Add(eventType string, fn Func, opts Options) (*Registration, error) {
	if fn == nil {
		return nil, fmt.Errorf("listener for %s is nil", eventType)
	}
	reg := &Registration{emitter: e, eventType: eventType, fn: fn, once: opts.Once}

	e.mu.Lock()
	if _, known := e.listeners[eventType]; !known {
		if e.hook != nil {
			if err := e.hook(eventType); err != nil {
				e.mu.Unlock()
				return nil, err
			}
		}
		e.listeners[eventType] = nil
	}
	e.listeners[eventType] = append(e.listeners[eventType], reg)
	e.mu.Unlock()

	if opts.Signal != nil {
		reg.stop = opts.Signal.OnAbort(reg.Remove)
	}
	return reg, nil
}

// Rehook runs the hook again for every event type already hooked.
func (e *Emitter) Rehook() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hook == nil {
		return nil
	}
	var errs []error
	for eventType := range e.listeners {
		if err := e.hook(eventType); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of listeners attached for eventType.
func (e *Emitter) Len(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[eventType])
}

func (e *Emitter) remove(reg *Registration) {
	e.mu.Lock()
	if reg.removed {
		e.mu.Unlock()
		return
	}
	reg.removed = true
	stack := e.listeners[reg.eventType]
	for i, candidate := range stack {
		if candidate == reg {
			e.listeners[reg.eventType] = append(stack[:i:i], stack[i+1:]...)
			break
		}
	}
	stop := reg.stop
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Dispatch calls every listener attached for ev.Type, in registration
// order, over a snapshot taken at entry. Listeners removed mid-dispatch are
// skipped.
func (e *Emitter) Dispatch(ev Event) error {
	e.mu.Lock()
	stack := append([]*Registration(nil), e.listeners[ev.Type]...)
	e.mu.Unlock()

	var faults []error
	for _, reg := range stack {
		if !reg.Active() {
			continue
		}
		if err := call(reg.fn, ev); err != nil {
			fault := apperrors.WrapWithMetadata(
				apperrors.CodeListenerCallbackFault,
				"listener callback failed",
				map[string]string{"event": ev.Type},
				err,
			)
			if e.onFault != nil {
				e.onFault(ev.Type, err)
			}
			if e.policy == FailFast {
				return fault
			}
			faults = append(faults, fault)
			continue
		}
		if reg.once {
			reg.Remove()
		}
	}
	return errors.Join(faults...)
}

func call(fn Func, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ev)
}
