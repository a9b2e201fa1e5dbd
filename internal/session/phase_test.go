package session_test

import (
	"testing"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
	"github.com/Syxd09/code-byte-sub000/internal/session"
)

var allPhases = []domain.SessionPhase{
	domain.PhaseWaiting,
	domain.PhaseActive,
	domain.PhasePaused,
	domain.PhaseEnded,
	domain.PhaseEliminated,
}

func TestNextPhaseIsTotal(t *testing.T) {
	// Every defined event from every reachable phase must produce a defined
	// phase; an unknown combination falling through to an empty phase would
	// wedge the state machine.
	for _, phase := range allPhases {
		for _, kind := range domain.EventKinds {
			next := session.NextPhase(phase, kind)
			valid := false
			for _, p := range allPhases {
				if next == p {
					valid = true
				}
			}
			if !valid {
				t.Fatalf("NextPhase(%s, %s) produced undefined phase %q", phase, kind, next)
			}
		}
	}
}

func TestEndedIsTerminal(t *testing.T) {
	for _, kind := range domain.EventKinds {
		if next := session.NextPhase(domain.PhaseEnded, kind); next != domain.PhaseEnded {
			t.Fatalf("event %s escaped the ended phase into %s", kind, next)
		}
	}
}

func TestPauseOnlyFromActive(t *testing.T) {
	if next := session.NextPhase(domain.PhaseActive, domain.EventGamePaused); next != domain.PhasePaused {
		t.Fatalf("expected active->paused, got %s", next)
	}
	for _, phase := range []domain.SessionPhase{domain.PhaseWaiting, domain.PhaseEliminated} {
		if next := session.NextPhase(phase, domain.EventGamePaused); next != phase {
			t.Fatalf("pause from %s should be ignored, got %s", phase, next)
		}
	}
}

func TestResumeOnlyFromPaused(t *testing.T) {
	if next := session.NextPhase(domain.PhasePaused, domain.EventGameResumed); next != domain.PhaseActive {
		t.Fatalf("expected paused->active, got %s", next)
	}
	if next := session.NextPhase(domain.PhaseWaiting, domain.EventGameResumed); next != domain.PhaseWaiting {
		t.Fatalf("resume from waiting should be ignored, got %s", next)
	}
}

func TestEliminatedFollowsWithoutPlaying(t *testing.T) {
	if next := session.NextPhase(domain.PhaseEliminated, domain.EventNextQuestion); next != domain.PhaseEliminated {
		t.Fatalf("a new question must not reactivate an eliminated participant, got %s", next)
	}
	if next := session.NextPhase(domain.PhaseEliminated, domain.EventGameEnded); next != domain.PhaseEnded {
		t.Fatalf("game end must reach eliminated participants, got %s", next)
	}
	if next := session.NextPhase(domain.PhaseEliminated, domain.EventReAdmitted); next != domain.PhaseWaiting {
		t.Fatalf("re-admission should return to waiting, got %s", next)
	}
	if next := session.NextPhase(domain.PhaseActive, domain.EventReAdmitted); next != domain.PhaseActive {
		t.Fatalf("re-admission of a non-eliminated participant should be ignored, got %s", next)
	}
}

func TestInformationalEventsKeepPhase(t *testing.T) {
	informational := []domain.EventKind{
		domain.EventAnswerRevealed,
		domain.EventLeaderboardUpdate,
		domain.EventCheatPenalty,
		domain.EventOrganiserWarning,
		domain.EventQuestionTimeExpired,
	}
	for _, kind := range informational {
		if next := session.NextPhase(domain.PhaseActive, kind); next != domain.PhaseActive {
			t.Fatalf("event %s should not change the phase, got %s", kind, next)
		}
	}
}
