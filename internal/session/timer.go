package session

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Tick is one second of countdown for the current question.
type Tick struct {
	QuestionID string
	Remaining  int
}

// Timer derives a countdown from the server-supplied absolute deadline. The
// remaining time is recomputed from the deadline on every tick, never
// decremented from a cached value, so local clock stalls cannot desync it
// from the server's notion of the deadline.
type Timer struct {
	clock   clockwork.Clock
	ticks   chan Tick
	expired chan string

	mu         sync.Mutex
	questionID string
	deadline   time.Time
	paused     bool
	fired      bool
	stop       chan struct{}
}

// NewTimer builds an unarmed timer.
func NewTimer(clock clockwork.Clock) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{
		clock:   clock,
		ticks:   make(chan Tick, 8),
		expired: make(chan string, 4),
	}
}

// Ticks delivers the recomputed remaining seconds once per second.
func (t *Timer) Ticks() <-chan Tick { return t.ticks }

// Expired fires at most once per armed question, carrying its ID.
func (t *Timer) Expired() <-chan string { return t.expired }

// Arm replaces any running countdown with one anchored to deadline. A
// deadline already in the past fires the expiry immediately; this covers a
// rejoin landing after the question closed and any missed tick.
func (t *Timer) Arm(questionID string, deadline time.Time) {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
	}
	stop := make(chan struct{})
	t.stop = stop
	t.questionID = questionID
	t.deadline = deadline
	t.paused = false
	t.fired = false
	t.mu.Unlock()

	go t.loop(questionID, deadline, stop)
}

// Stop halts the countdown without firing. Used when the question is
// superseded or the game ends.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.questionID = ""
}

// Pause suspends ticking and the expiry race. The deadline itself is
// untouched: pausing never extends time, it only mirrors the server's
// paused phase.
func (t *Timer) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// Resume re-enables ticking and immediately re-evaluates the deadline.
func (t *Timer) Resume() {
	t.mu.Lock()
	paused := t.paused
	t.paused = false
	questionID := t.questionID
	deadline := t.deadline
	armed := t.stop != nil
	t.mu.Unlock()

	if paused && armed {
		t.evaluate(questionID, deadline)
	}
}

// Remaining reports the current countdown value for display.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.questionID == "" {
		return 0
	}
	return remainingSeconds(t.deadline, t.clock.Now())
}

func (t *Timer) loop(questionID string, deadline time.Time, stop chan struct{}) {
	// Evaluate once immediately so a past deadline expires without waiting
	// for the first tick.
	if t.evaluate(questionID, deadline) {
		return
	}

	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			if t.evaluate(questionID, deadline) {
				return
			}
		case <-stop:
			return
		}
	}
}

// evaluate recomputes remaining time and reports whether the countdown is
// finished. The fired flag guarantees exactly one expiry per armed question.
func (t *Timer) evaluate(questionID string, deadline time.Time) bool {
	t.mu.Lock()
	if t.questionID != questionID {
		t.mu.Unlock()
		return true
	}
	if t.paused {
		t.mu.Unlock()
		return false
	}
	remaining := remainingSeconds(deadline, t.clock.Now())
	finished := remaining <= 0 && !t.fired
	if finished {
		t.fired = true
	}
	alreadyFired := t.fired && !finished
	t.mu.Unlock()

	if alreadyFired {
		return true
	}

	select {
	case t.ticks <- Tick{QuestionID: questionID, Remaining: remaining}:
	default:
		// Display ticks may be dropped; expiry never is.
	}
	if finished {
		t.expired <- questionID
		return true
	}
	return false
}

func remainingSeconds(deadline, now time.Time) int {
	remaining := int(math.Round(deadline.Sub(now).Seconds()))
	if remaining < 0 {
		return 0
	}
	return remaining
}
