package resources

import (
	"testing"
	"time"
)

func newTestLimiter(maxPerIP, maxTotal int, idle time.Duration) (*SessionLimiter, *time.Time) {
	now := time.Unix(0, 0)
	l := &SessionLimiter{
		sessions:    make(map[string]*sessionEntry),
		maxPerIP:    maxPerIP,
		maxTotal:    maxTotal,
		idleTimeout: idle,
		now:         func() time.Time { return now },
	}
	return l, &now
}

func TestRegisterEnforcesPerIPCap(t *testing.T) {
	l, _ := newTestLimiter(2, 0, 0)

	if err := l.Register("s1", "10.0.0.1"); err != nil {
		t.Fatalf("first session: %v", err)
	}
	if err := l.Register("s2", "10.0.0.1"); err != nil {
		t.Fatalf("second session: %v", err)
	}
	if err := l.Register("s3", "10.0.0.1"); err == nil {
		t.Error("third session from the same IP must be rejected")
	}
	// A different IP is unaffected.
	if err := l.Register("s4", "10.0.0.2"); err != nil {
		t.Errorf("other IP should be admitted: %v", err)
	}
}

func TestRegisterEnforcesTotalCap(t *testing.T) {
	l, _ := newTestLimiter(0, 2, 0)

	l.Register("s1", "10.0.0.1")
	l.Register("s2", "10.0.0.2")
	if err := l.Register("s3", "10.0.0.3"); err == nil {
		t.Error("session over the global cap must be rejected")
	}

	l.Unregister("s1")
	if err := l.Register("s3", "10.0.0.3"); err != nil {
		t.Errorf("freed slot should admit a new session: %v", err)
	}
}

func TestRegisterKnownSessionRefreshes(t *testing.T) {
	l, _ := newTestLimiter(1, 0, 0)

	if err := l.Register("s1", "10.0.0.1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// Same ID again must not count against the cap.
	if err := l.Register("s1", "10.0.0.1"); err != nil {
		t.Errorf("re-register should refresh, not reject: %v", err)
	}
	if l.Active() != 1 {
		t.Errorf("expected 1 active session, got %d", l.Active())
	}
}

func TestIdleSessionsPruned(t *testing.T) {
	l, now := newTestLimiter(1, 0, 10*time.Minute)

	if err := l.Register("s1", "10.0.0.1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Still within the idle window: the slot stays claimed.
	*now = now.Add(5 * time.Minute)
	if err := l.Register("s2", "10.0.0.1"); err == nil {
		t.Fatal("cap should still hold before the idle timeout")
	}

	// Past the timeout the leaked slot is reclaimed on the next register.
	*now = now.Add(11 * time.Minute)
	if err := l.Register("s2", "10.0.0.1"); err != nil {
		t.Errorf("idle session should have been pruned: %v", err)
	}
	if l.Active() != 1 {
		t.Errorf("expected 1 active session, got %d", l.Active())
	}
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	l, now := newTestLimiter(1, 0, 10*time.Minute)

	l.Register("s1", "10.0.0.1")
	*now = now.Add(8 * time.Minute)
	l.Touch("s1")
	*now = now.Add(8 * time.Minute)

	// 16 minutes total, but only 8 since the last touch.
	if err := l.Register("s2", "10.0.0.1"); err == nil {
		t.Error("touched session must not be pruned")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	l, _ := newTestLimiter(0, 0, 0)

	l.Register("s1", "10.0.0.1")
	l.Unregister("s1")
	l.Unregister("s1")
	l.Unregister("never-registered")

	if l.Active() != 0 {
		t.Errorf("expected no active sessions, got %d", l.Active())
	}
}
