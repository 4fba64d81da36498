// Package typewriter implements the terminal output buffer: an ordered,
// append-only sequence of display lines with a cancelable character-by-
// character reveal.
//
// Cancellation is epoch based. The buffer carries a writer epoch (bumped by
// Clear) and an active-command epoch (stamped by BeginCommandSession). Every
// write and every command side effect checks one liveness predicate instead
// of threading cancellation handles through each async path.
package typewriter

import (
	"strings"
	"sync"
	"time"

	"github.com/folioterm/folioterm/pkg/shared"
)

// Sink receives protocol frames describing buffer mutations so a transport
// can mirror the buffer to a frontend. Must not block; the terminal layer
// backs it with a buffered channel. A nil sink is valid (headless buffer).
type Sink func(msg shared.Message)

// Buffer is the typewriter output buffer for one terminal session.
type Buffer struct {
	mu          sync.Mutex
	lines       []string
	writerEpoch uint64
	activeEpoch uint64
	queueTail   chan struct{} // done channel of the most recently queued run
	clock       Clock
	sink        Sink
	maxLines    int
}

// New returns a buffer driven by the real clock.
func New(sink Sink) *Buffer {
	return NewWithClock(sink, SystemClock())
}

// NewWithClock returns a buffer with an injected clock.
func NewWithClock(sink Sink, clock Clock) *Buffer {
	return &Buffer{
		clock:    clock,
		sink:     sink,
		maxLines: 2000,
	}
}

// SetMaxLines caps the retained line count; oldest lines are dropped first.
func (b *Buffer) SetMaxLines(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > 0 {
		b.maxLines = n
	}
}

// BeginCommandSession stamps the active-command epoch to the current writer
// epoch. Called immediately before a new input line is interpreted; it is the
// liveness baseline for everything that command run does.
func (b *Buffer) BeginCommandSession() {
	b.mu.Lock()
	b.activeEpoch = b.writerEpoch
	b.mu.Unlock()
}

// IsActive reports whether the current command run is still live, i.e. no
// Clear has happened since BeginCommandSession. Every gated write and side
// effect consults this one predicate.
func (b *Buffer) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writerEpoch == b.activeEpoch
}

// Print appends complete lines immediately, gated by command liveness. If the
// screen was cleared since the command began the write is silently dropped.
func (b *Buffer) Print(text string) {
	b.mu.Lock()
	if b.writerEpoch != b.activeEpoch {
		b.mu.Unlock()
		return
	}
	for _, line := range strings.Split(text, "\n") {
		b.appendLineLocked(line)
	}
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(shared.TextMessage(text))
	}
}

// TypeWrite reveals text one character at a time at the given interval.
// Embedded newlines open a fresh line instead of printing a literal character.
// Runs are strictly FIFO: a later call never interleaves with an earlier
// call's still-in-progress characters. Returns true if the full text was
// revealed, false if a Clear invalidated the run first.
func (b *Buffer) TypeWrite(text string, interval time.Duration, newlineAfter bool) bool {
	b.mu.Lock()
	epoch := b.writerEpoch
	prev := b.queueTail
	done := make(chan struct{})
	b.queueTail = done
	b.mu.Unlock()
	defer close(done)

	// Wait for the previous run; it finishes or aborts, never hangs.
	if prev != nil {
		<-prev
	}

	// A Clear while we were queued drops the run before any output.
	idx, ok := b.openLine(epoch)
	if !ok {
		return false
	}

	first := true
	for _, r := range text {
		if !first {
			b.clock.Sleep(interval)
		}
		first = false

		if r == '\n' {
			if idx, ok = b.openLine(epoch); !ok {
				return false
			}
			continue
		}
		if !b.appendChar(epoch, idx, r) {
			return false
		}
	}

	if newlineAfter {
		_, ok = b.openLine(epoch)
		return ok
	}
	return b.live(epoch)
}

// Clear atomically invalidates all in-flight and queued typewriter runs,
// empties the line sequence, and kills the active command epoch so pending
// side effects of the interrupted command go dead.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.writerEpoch++
	b.lines = nil
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(shared.Message{Type: shared.MessageTypeClear})
	}
}

// Lines returns a snapshot of the current line sequence.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make([]string, len(b.lines))
	copy(snapshot, b.lines)
	return snapshot
}

func (b *Buffer) live(epoch uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writerEpoch == epoch
}

// openLine appends a fresh empty line for a typewriter run and returns its
// index, the run's remembered write position. Fails if the run's epoch is
// stale.
func (b *Buffer) openLine(epoch uint64) (int, bool) {
	b.mu.Lock()
	if b.writerEpoch != epoch {
		b.mu.Unlock()
		return 0, false
	}
	b.appendLineLocked("")
	idx := len(b.lines) - 1
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(shared.Message{Type: shared.MessageTypeNewline})
	}
	return idx, true
}

// appendChar reveals one character on the run's remembered line. A concurrent
// Print may have appended lines after it; the run keeps mutating its own
// line in place. Fails if the run's epoch is stale.
func (b *Buffer) appendChar(epoch uint64, idx int, r rune) bool {
	b.mu.Lock()
	if b.writerEpoch != epoch || idx >= len(b.lines) {
		b.mu.Unlock()
		return false
	}
	b.lines[idx] += string(r)
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(shared.Message{Type: shared.MessageTypeChar, Content: string(r)})
	}
	return true
}

func (b *Buffer) appendLineLocked(line string) {
	b.lines = append(b.lines, line)
	if b.maxLines > 0 && len(b.lines) > b.maxLines {
		b.lines = b.lines[len(b.lines)-b.maxLines:]
	}
}
