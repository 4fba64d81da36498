package typewriter

import (
	"reflect"
	"testing"
	"time"
)

// stepClock blocks every positive Sleep until the test releases it, so a
// typewriter run can be held mid-flight deterministically.
type stepClock struct {
	now  time.Time
	gate chan struct{}
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Unix(0, 0), gate: make(chan struct{})}
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.gate
}

// step releases exactly one blocked Sleep.
func (c *stepClock) step() {
	c.gate <- struct{}{}
}

// waitForLines polls until the buffer matches want or the deadline passes.
func waitForLines(t *testing.T, b *Buffer, want []string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reflect.DeepEqual(b.Lines(), want) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("buffer never reached %v, last state: %v", want, b.Lines())
}

func TestTypeWriteRevealsText(t *testing.T) {
	b := New(nil)

	completed := b.TypeWrite("hello", 0, false)
	if !completed {
		t.Error("uninterrupted run should report completion")
	}

	lines := b.Lines()
	if len(lines) != 1 || lines[0] != "hello" {
		t.Errorf("expected [hello], got %v", lines)
	}
}

func TestTypeWriteEmbeddedNewline(t *testing.T) {
	b := New(nil)

	b.TypeWrite("ab\ncd", 0, true)

	want := []string{"ab", "cd", ""}
	if got := b.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTypeWriteNewlineAfter(t *testing.T) {
	b := New(nil)

	b.TypeWrite("x", 0, false)
	if got := b.Lines(); len(got) != 1 {
		t.Errorf("newlineAfter=false should not append a trailing line, got %v", got)
	}

	b.TypeWrite("y", 0, true)
	if got := b.Lines(); len(got) != 3 || got[len(got)-1] != "" {
		t.Errorf("newlineAfter=true should append an empty trailing line, got %v", got)
	}
}

// Runs must serialize FIFO: a later call's characters never interleave with
// an earlier call's still-in-progress output.
func TestTypeWriteSerialization(t *testing.T) {
	clock := newStepClock()
	b := NewWithClock(nil, clock)

	done1 := make(chan bool, 1)
	go func() { done1 <- b.TypeWrite("AB", 10*time.Millisecond, false) }()

	// First character lands without a sleep; the run is now parked before 'B'.
	waitForLines(t, b, []string{"A"})

	done2 := make(chan bool, 1)
	go func() { done2 <- b.TypeWrite("CD", 10*time.Millisecond, false) }()

	// The second run is queued; nothing from it may appear yet.
	time.Sleep(20 * time.Millisecond)
	if got := b.Lines(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("second run leaked output while first was in flight: %v", got)
	}

	clock.step() // 'B' completes run one
	if !<-done1 {
		t.Error("first run should complete")
	}

	waitForLines(t, b, []string{"AB", "C"})
	clock.step() // 'D'
	if !<-done2 {
		t.Error("second run should complete")
	}

	want := []string{"AB", "CD"}
	if got := b.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// Clear must invalidate an in-flight run: the buffer empties and no further
// characters from that run ever land.
func TestClearInvalidatesInFlightRun(t *testing.T) {
	clock := newStepClock()
	b := NewWithClock(nil, clock)

	done := make(chan bool, 1)
	go func() { done <- b.TypeWrite("0123456789", 50*time.Millisecond, true) }()

	waitForLines(t, b, []string{"0"})
	clock.step()
	clock.step()
	waitForLines(t, b, []string{"012"})

	b.Clear()
	if got := b.Lines(); len(got) != 0 {
		t.Fatalf("buffer should be empty after clear, got %v", got)
	}

	// Wake the parked run; it must notice the stale epoch and abort.
	clock.step()
	if <-done {
		t.Error("interrupted run should not report completion")
	}

	time.Sleep(50 * time.Millisecond)
	if got := b.Lines(); len(got) != 0 {
		t.Errorf("no characters may land after clear, got %v", got)
	}
}

// A run that is queued but not yet started when Clear hits must be dropped
// entirely.
func TestClearDropsQueuedRuns(t *testing.T) {
	clock := newStepClock()
	b := NewWithClock(nil, clock)

	done1 := make(chan bool, 1)
	go func() { done1 <- b.TypeWrite("AB", 10*time.Millisecond, false) }()
	waitForLines(t, b, []string{"A"})

	done2 := make(chan bool, 1)
	go func() { done2 <- b.TypeWrite("CD", 10*time.Millisecond, false) }()

	b.Clear()
	clock.step() // wake run one

	if <-done1 {
		t.Error("first run should be invalidated")
	}
	if <-done2 {
		t.Error("queued run should be invalidated")
	}
	if got := b.Lines(); len(got) != 0 {
		t.Errorf("expected empty buffer, got %v", got)
	}
}

func TestPrintGatedByLiveness(t *testing.T) {
	b := New(nil)

	b.BeginCommandSession()
	b.Print("live")
	if got := b.Lines(); len(got) != 1 || got[0] != "live" {
		t.Fatalf("expected [live], got %v", got)
	}

	// Clear kills the active command epoch; writes from that command drop.
	b.Clear()
	b.Print("stale")
	if got := b.Lines(); len(got) != 0 {
		t.Errorf("stale print must be dropped, got %v", got)
	}

	// A new command session restores liveness.
	b.BeginCommandSession()
	b.Print("fresh")
	if got := b.Lines(); len(got) != 1 || got[0] != "fresh" {
		t.Errorf("expected [fresh], got %v", got)
	}
}

func TestIsActiveTracksEpochs(t *testing.T) {
	b := New(nil)

	b.BeginCommandSession()
	if !b.IsActive() {
		t.Error("fresh command session should be active")
	}

	b.Clear()
	if b.IsActive() {
		t.Error("clear must deactivate the running command")
	}

	b.BeginCommandSession()
	if !b.IsActive() {
		t.Error("new session after clear should be active again")
	}
}
