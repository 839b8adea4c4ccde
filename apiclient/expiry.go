package apiclient

import "sync"

// ExpirySignal is a process-wide broadcast fired when a call is rejected with
// HTTP 401. It carries no payload; subscribers are invoked synchronously in
// subscription order. Deduplication is the subscriber's job (the session
// controller handles the signal idempotently), not the signal's.
type ExpirySignal struct {
	mu   sync.Mutex
	subs []func()
}

func NewExpirySignal() *ExpirySignal {
	return &ExpirySignal{}
}

// Subscribe registers fn to run on every Notify.
func (s *ExpirySignal) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Notify invokes every subscriber once.
func (s *ExpirySignal) Notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
