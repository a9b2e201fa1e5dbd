package session

import "github.com/Syxd09/code-byte-sub000/internal/domain"

// NextPhase is the closed transition table of the game state machine. Every
// defined inbound event has a resulting phase from every reachable phase, so
// no push can silently desync the client from an authoritative state.
//
// Transitions are driven exclusively by server events or rejoin results;
// the client never infers a phase from the absence of an event.
func NextPhase(phase domain.SessionPhase, kind domain.EventKind) domain.SessionPhase {
	// Ended is the only terminal phase.
	if phase == domain.PhaseEnded {
		return domain.PhaseEnded
	}

	switch kind {
	case domain.EventGameStarted, domain.EventNextQuestion:
		// Eliminated participants keep following along but stay out of play.
		if phase == domain.PhaseEliminated {
			return domain.PhaseEliminated
		}
		return domain.PhaseActive
	case domain.EventGamePaused:
		if phase == domain.PhaseActive {
			return domain.PhasePaused
		}
		return phase
	case domain.EventGameResumed:
		if phase == domain.PhasePaused {
			return domain.PhaseActive
		}
		return phase
	case domain.EventGameEnded:
		// Lands from every phase, including eliminated.
		return domain.PhaseEnded
	case domain.EventEliminated:
		return domain.PhaseEliminated
	case domain.EventReAdmitted:
		if phase == domain.PhaseEliminated {
			return domain.PhaseWaiting
		}
		return phase
	case domain.EventAnswerRevealed, domain.EventLeaderboardUpdate,
		domain.EventCheatPenalty, domain.EventOrganiserWarning,
		domain.EventQuestionTimeExpired:
		// Informational for the phase machine; side effects are handled by
		// the engine.
		return phase
	default:
		return phase
	}
}
