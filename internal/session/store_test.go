package session

import (
	"sync"
	"testing"
	"time"
)

// fixedClock returns a settable clock seam for the store.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(ttl time.Duration) (*Store, *fixedClock) {
	clk := &fixedClock{t: time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)}
	s := NewStore(ttl)
	s.now = clk.Now
	return s, clk
}

func TestNewStore_DefaultTTL(t *testing.T) {
	s := NewStore(0)
	if s.ttl != DefaultTTL {
		t.Fatalf("ttl = %v; want %v", s.ttl, DefaultTTL)
	}
}

func TestStartOrRefresh_ThenGetActive(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	s.StartOrRefresh("U1", "Group_A")
	dst, ok := s.GetActive("U1")
	if !ok || dst != "Group_A" {
		t.Fatalf("GetActive = (%q, %v); want (Group_A, true)", dst, ok)
	}
}

func TestStartOrRefresh_SwitchesDestination(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	s.StartOrRefresh("U1", "Group_A")
	s.StartOrRefresh("U1", "Group_B")
	dst, ok := s.GetActive("U1")
	if !ok || dst != "Group_B" {
		t.Fatalf("GetActive = (%q, %v); want (Group_B, true)", dst, ok)
	}
}

func TestGetActive_ExpiryEvicts(t *testing.T) {
	s, clk := newTestStore(time.Minute)

	s.StartOrRefresh("U1", "Group_A")
	clk.Advance(time.Minute + time.Second)

	if dst, ok := s.GetActive("U1"); ok {
		t.Fatalf("expected expired session, got %q", dst)
	}
	// Eviction must have removed the record entirely.
	if s.Len() != 0 {
		t.Fatalf("Len = %d after eviction; want 0", s.Len())
	}
}

func TestGetActive_ExactBoundaryStillActive(t *testing.T) {
	s, clk := newTestStore(time.Minute)

	s.StartOrRefresh("U1", "Group_A")
	clk.Advance(time.Minute) // now - last == ttl is still active

	if _, ok := s.GetActive("U1"); !ok {
		t.Fatalf("session at exact TTL boundary should remain active")
	}
}

func TestRefresh_ExtendsActiveSession(t *testing.T) {
	s, clk := newTestStore(time.Minute)

	s.StartOrRefresh("U1", "Group_A")
	clk.Advance(45 * time.Second)
	s.Refresh("U1")
	clk.Advance(45 * time.Second)

	// 90s since start but only 45s since refresh.
	if _, ok := s.GetActive("U1"); !ok {
		t.Fatalf("refreshed session should still be active")
	}
}

func TestRefresh_DoesNotResurrect(t *testing.T) {
	s, clk := newTestStore(time.Minute)

	s.StartOrRefresh("U1", "Group_A")
	clk.Advance(2 * time.Minute)

	// Read evicts, then refresh must be a no-op.
	if _, ok := s.GetActive("U1"); ok {
		t.Fatalf("expected eviction")
	}
	s.Refresh("U1")
	if _, ok := s.GetActive("U1"); ok {
		t.Fatalf("Refresh resurrected an evicted session")
	}

	// Refresh on a never-seen sender is also a no-op.
	s.Refresh("U2")
	if s.Len() != 0 {
		t.Fatalf("Refresh created a session for unknown sender")
	}
}

func TestStore_IndependentSenders(t *testing.T) {
	s, clk := newTestStore(time.Minute)

	s.StartOrRefresh("U1", "Group_A")
	clk.Advance(30 * time.Second)
	s.StartOrRefresh("U2", "Group_B")
	clk.Advance(45 * time.Second)

	// U1 is 75s old (expired); U2 is 45s old (active).
	if _, ok := s.GetActive("U1"); ok {
		t.Fatalf("U1 should be expired")
	}
	if dst, ok := s.GetActive("U2"); !ok || dst != "Group_B" {
		t.Fatalf("U2 = (%q, %v); want (Group_B, true)", dst, ok)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sender := string(rune('A' + n))
			for j := 0; j < 200; j++ {
				s.StartOrRefresh(sender, "G")
				s.GetActive(sender)
				s.Refresh(sender)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 8 {
		t.Fatalf("Len = %d; want 8", s.Len())
	}
}
