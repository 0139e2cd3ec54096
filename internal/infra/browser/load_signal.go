package browser

import "sync"

// loadSignal passes a one-shot notification from the CDP event loop to a
// waiting navigation. Events that arrive while nobody is armed are dropped.
// The zero value is ready to use.
type loadSignal struct {
	mu sync.Mutex
	ch chan struct{}
}

// arm must be called before the action that triggers the event.
func (s *loadSignal) arm() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = make(chan struct{})
	return s.ch
}

func (s *loadSignal) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
}

func (s *loadSignal) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = nil
}
