package media

import "testing"

// fakePlayable records what the registry did to it.
type fakePlayable struct {
	paused      int
	rate        float64
	notices     []string
	panicsOnUse bool
}

func (f *fakePlayable) Pause() error {
	if f.panicsOnUse {
		panic("broken widget")
	}
	f.paused++
	return nil
}

func (f *fakePlayable) SetRate(rate float64) error {
	f.rate = rate
	return nil
}

func (f *fakePlayable) NotifyStopped(reason string) {
	f.notices = append(f.notices, reason)
}

func TestPlayExclusivePausesOthersOnly(t *testing.T) {
	r := NewRegistry()
	a := &fakePlayable{}
	b := &fakePlayable{}
	r.Register("a", a)
	r.Register("b", b)

	r.PlayExclusive("a")

	if b.paused != 1 {
		t.Errorf("expected b paused once, got %d", b.paused)
	}
	if b.rate != 1.0 {
		t.Errorf("expected b rate reset to 1.0, got %v", b.rate)
	}
	if len(b.notices) != 1 {
		t.Errorf("expected b to receive a manager notice, got %v", b.notices)
	}
	if a.paused != 0 || len(a.notices) != 0 {
		t.Errorf("the requested handle must be left untouched, got pauses=%d notices=%v", a.paused, a.notices)
	}
}

func TestStopAllPausesEverything(t *testing.T) {
	r := NewRegistry()
	a := &fakePlayable{}
	b := &fakePlayable{}
	r.Register("a", a)
	r.Register("b", b)

	r.StopAll()

	if a.paused != 1 || b.paused != 1 {
		t.Errorf("expected both handles paused, got a=%d b=%d", a.paused, b.paused)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := &fakePlayable{}
	r.Register("a", a)

	r.Unregister("a")
	r.Unregister("a") // absent key is a no-op
	r.Unregister("never-registered")

	r.PlayExclusive("b")
	if a.paused != 0 {
		t.Errorf("unregistered handle must not be paused, got %d", a.paused)
	}
}

func TestRegisterUpserts(t *testing.T) {
	r := NewRegistry()
	old := &fakePlayable{}
	replacement := &fakePlayable{}
	r.Register("a", old)
	r.Register("a", replacement)

	if r.Len() != 1 {
		t.Fatalf("expected one handle, got %d", r.Len())
	}

	r.PlayExclusive("other")
	if old.paused != 0 {
		t.Error("replaced handle should no longer be reachable")
	}
	if replacement.paused != 1 {
		t.Error("replacement handle should be paused")
	}
}

// One misbehaving handle must not keep the registry from quiescing the rest.
func TestPlayExclusiveSwallowsPanics(t *testing.T) {
	r := NewRegistry()
	broken := &fakePlayable{panicsOnUse: true}
	healthy := &fakePlayable{}
	r.Register("broken", broken)
	r.Register("healthy", healthy)

	r.PlayExclusive("c")

	if healthy.paused != 1 {
		t.Errorf("healthy handle should still be paused, got %d", healthy.paused)
	}
}
