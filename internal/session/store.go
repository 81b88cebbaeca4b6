// Package session implements the in-memory per-sender session store.
//
// A session binds a sender to an upload destination and stays active while
// the sender keeps producing persisted content within the configured TTL.
// Expired sessions are evicted lazily on the next read rather than by a
// background sweep, which bounds the map to the set of recently active
// senders at the cost of stale entries lingering until touched.
//
// Sessions are deliberately process-local and ephemeral: they do not
// survive restarts, and no cross-process coordination is attempted (the
// shared-store concern in this system is deduplication, not sessions).
package session

import (
	"sync"
	"time"

	"github.com/tbourn/go-line-uploader/internal/domain"
)

// DefaultTTL is the session freshness window applied when NewStore is
// given a non-positive duration.
const DefaultTTL = 10 * time.Minute

// Store holds the sender → session map. All methods are safe for
// concurrent use; operations on the same sender are linearizable with
// respect to each other.
type Store struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	ttl      time.Duration

	// now is a clock seam for tests.
	now func() time.Time
}

// NewStore constructs a Store with the given session TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// StartOrRefresh unconditionally (re)writes the sender's session with the
// given destination and a fresh timestamp. A code match always re-arms the
// session, including switching destination mid-conversation.
func (s *Store) StartOrRefresh(sender, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sender] = domain.Session{
		Destination:  destination,
		LastActivity: s.now(),
	}
}

// GetActive returns the sender's destination when an unexpired session
// exists. A session found expired is evicted before reporting absence.
func (s *Store) GetActive(sender string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sender]
	if !ok {
		return "", false
	}
	if s.now().Sub(sess.LastActivity) > s.ttl {
		delete(s.sessions, sender)
		return "", false
	}
	return sess.Destination, true
}

// Refresh updates the session timestamp only when a session already exists
// for the sender. It must not resurrect an evicted or absent session.
func (s *Store) Refresh(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sender]
	if !ok {
		return
	}
	sess.LastActivity = s.now()
	s.sessions[sender] = sess
}

// Len reports the number of session records currently held, including any
// expired records not yet touched by a read.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
