package session_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Syxd09/code-byte-sub000/internal/session"
)

func waitTick(t *testing.T, timer *session.Timer) session.Tick {
	t.Helper()
	select {
	case tick := <-timer.Ticks():
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("no tick arrived")
		return session.Tick{}
	}
}

func waitExpiry(t *testing.T, timer *session.Timer) string {
	t.Helper()
	select {
	case id := <-timer.Expired():
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("no expiry arrived")
		return ""
	}
}

func assertNoExpiry(t *testing.T, timer *session.Timer) {
	t.Helper()
	select {
	case id := <-timer.Expired():
		t.Fatalf("unexpected expiry for %q", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerCountsDownFromDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := session.NewTimer(clock)
	defer timer.Stop()

	timer.Arm("q1", clock.Now().Add(10*time.Second))

	if tick := waitTick(t, timer); tick.Remaining != 10 {
		t.Fatalf("expected initial remaining 10, got %d", tick.Remaining)
	}
	for want := 9; want >= 7; want-- {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		tick := waitTick(t, timer)
		if tick.QuestionID != "q1" || tick.Remaining != want {
			t.Fatalf("expected remaining %d for q1, got %+v", want, tick)
		}
	}
}

func TestTimerRecomputesAfterClockStall(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := session.NewTimer(clock)
	defer timer.Stop()

	timer.Arm("q1", clock.Now().Add(10*time.Second))
	waitTick(t, timer)

	// A stalled runtime wakes up well past the deadline. The countdown must
	// land at zero and expire, never go negative or keep counting.
	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	if id := waitExpiry(t, timer); id != "q1" {
		t.Fatalf("expected expiry for q1, got %q", id)
	}
	for {
		select {
		case tick := <-timer.Ticks():
			if tick.Remaining < 0 {
				t.Fatalf("remaining went negative: %d", tick.Remaining)
			}
		default:
			return
		}
	}
}

func TestTimerExpiresAtMostOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := session.NewTimer(clock)
	defer timer.Stop()

	timer.Arm("q1", clock.Now().Add(2*time.Second))
	waitTick(t, timer)
	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)

	if id := waitExpiry(t, timer); id != "q1" {
		t.Fatalf("expected expiry for q1, got %q", id)
	}
	assertNoExpiry(t, timer)
}

func TestTimerPastDeadlineFiresImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := session.NewTimer(clock)
	defer timer.Stop()

	timer.Arm("q1", clock.Now().Add(-3*time.Second))

	if tick := waitTick(t, timer); tick.Remaining != 0 {
		t.Fatalf("expected clamped remaining 0, got %d", tick.Remaining)
	}
	if id := waitExpiry(t, timer); id != "q1" {
		t.Fatalf("expected immediate expiry for q1, got %q", id)
	}
}

func TestTimerPauseSuspendsExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := session.NewTimer(clock)
	defer timer.Stop()

	timer.Arm("q1", clock.Now().Add(5*time.Second))
	waitTick(t, timer)

	timer.Pause()
	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	assertNoExpiry(t, timer)

	// The deadline is not extended by the pause: resuming past it expires
	// right away.
	timer.Resume()
	if id := waitExpiry(t, timer); id != "q1" {
		t.Fatalf("expected expiry after resume, got %q", id)
	}
}

func TestTimerStopPreventsExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := session.NewTimer(clock)

	timer.Arm("q1", clock.Now().Add(2*time.Second))
	waitTick(t, timer)
	timer.Stop()

	clock.Advance(5 * time.Second)
	assertNoExpiry(t, timer)
}

func TestTimerArmReplacesPreviousQuestion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := session.NewTimer(clock)
	defer timer.Stop()

	timer.Arm("q1", clock.Now().Add(30*time.Second))
	waitTick(t, timer)

	timer.Arm("q2", clock.Now().Add(2*time.Second))
	if tick := waitTick(t, timer); tick.QuestionID != "q2" || tick.Remaining != 2 {
		t.Fatalf("expected fresh countdown for q2, got %+v", tick)
	}

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)
	if id := waitExpiry(t, timer); id != "q2" {
		t.Fatalf("expected expiry for q2, got %q", id)
	}
	assertNoExpiry(t, timer)
}
