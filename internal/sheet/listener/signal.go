package listener

import "sync"

// Signal reports cancellation to the registrations that carry it.
type Signal struct {
	mu       sync.Mutex
	aborted  bool
	next     int
	handlers map[int]func()
	order    []int
}

// Aborted reports whether the owning controller has aborted.
func (s *Signal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// OnAbort registers fn to run synchronously when the signal aborts. If the
// signal already aborted, fn runs immediately. The returned stop func
// unregisters fn.
func (s *Signal) OnAbort(fn func()) (stop func()) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		fn()
		return func() {}
	}
	if s.handlers == nil {
		s.handlers = map[int]func(){}
	}
	id := s.next
	s.next++
	s.handlers[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

func (s *Signal) abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	var fns []func()
	for _, id := range s.order {
		if fn, ok := s.handlers[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.handlers = nil
	s.order = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// AbortController owns a Signal and aborts it once.
type AbortController struct {
	signal *Signal
}

// NewAbortController returns a controller with a fresh signal.
func NewAbortController() *AbortController {
	return &AbortController{signal: &Signal{}}
}

// Signal returns the controller's signal.
func (c *AbortController) Signal() *Signal {
	return c.signal
}

// Abort fires the signal. Later calls do nothing.
func (c *AbortController) Abort() {
	c.signal.abort()
}
