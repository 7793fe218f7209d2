package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/kart-ledger/internal/domain/cart"
)

// session guards one ledger. The ledger itself is unsynchronized.
type session struct {
	mu       sync.Mutex
	ledger   *cart.Ledger
	lastSeen time.Time
	evicted  bool
}

// CartStore holds storefront cart sessions keyed by a generated id.
type CartStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewCartStore returns a CartStore. Sessions idle for longer than ttl are
// evicted by StartCleanup; a zero ttl keeps sessions forever.
func NewCartStore(ttl time.Duration) *CartStore {
	return &CartStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Create starts a new empty cart and returns its id.
func (s *CartStore) Create(_ context.Context) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = &session{ledger: cart.NewLedger(), lastSeen: s.now()}
	s.mu.Unlock()

	return id, nil
}

// Update runs fn with exclusive access to the cart's ledger. It returns
// cart.ErrCartNotFound for an unknown id, otherwise the error of fn.
func (s *CartStore) Update(_ context.Context, id string, fn func(l *cart.Ledger) error) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return cart.ErrCartNotFound
	}
	return s.run(sess, fn)
}

// run applies fn under the session lock. A session evicted after it was
// looked up is reported as missing.
func (s *CartStore) run(sess *session, fn func(l *cart.Ledger) error) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.evicted {
		return cart.ErrCartNotFound
	}
	sess.lastSeen = s.now()
	return fn(sess.ledger)
}

// Len returns the number of live sessions.
func (s *CartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cleanup removes sessions idle for at least ttl.
func (s *CartStore) cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if now.Sub(sess.lastSeen) >= s.ttl {
			sess.evicted = true
			delete(s.sessions, id)
			removed++
		}
		sess.mu.Unlock()
	}
	return removed
}

// StartCleanup launches a background goroutine that evicts idle sessions
// every ttl/2. It stops when ctx is cancelled.
func (s *CartStore) StartCleanup(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}
