package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind names a server-pushed event on the game stream.
type EventKind string

const (
	EventGameStarted         EventKind = "gameStarted"
	EventNextQuestion        EventKind = "nextQuestion"
	EventAnswerRevealed      EventKind = "answerRevealed"
	EventLeaderboardUpdate   EventKind = "leaderboardUpdate"
	EventGamePaused          EventKind = "gamePaused"
	EventGameResumed         EventKind = "gameResumed"
	EventGameEnded           EventKind = "gameEnded"
	EventCheatPenalty        EventKind = "cheatPenalty"
	EventOrganiserWarning    EventKind = "organiserWarning"
	EventEliminated          EventKind = "eliminated"
	EventReAdmitted          EventKind = "reAdmitted"
	EventQuestionTimeExpired EventKind = "questionTimeExpired"
)

// EventKinds lists every event the client understands, in no particular order.
// The state machine defines a transition for each of these from every phase.
var EventKinds = []EventKind{
	EventGameStarted,
	EventNextQuestion,
	EventAnswerRevealed,
	EventLeaderboardUpdate,
	EventGamePaused,
	EventGameResumed,
	EventGameEnded,
	EventCheatPenalty,
	EventOrganiserWarning,
	EventEliminated,
	EventReAdmitted,
	EventQuestionTimeExpired,
}

// ServerEvent is one decoded push from the game stream. Only the fields
// relevant to its kind are populated.
type ServerEvent struct {
	Kind         EventKind
	Question     *ActiveQuestion
	Leaderboard  []LeaderboardEntry
	Message      string
	WarningCount int
}

type eventEnvelope struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeServerEvent parses one wire frame from the event stream.
func DecodeServerEvent(raw []byte) (ServerEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ServerEvent{}, fmt.Errorf("decode event envelope: %w", err)
	}

	ev := ServerEvent{Kind: env.Type}
	switch env.Type {
	case EventGameStarted, EventNextQuestion:
		var payload struct {
			Question json.RawMessage `json:"question"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return ServerEvent{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		question, err := DecodeQuestion(payload.Question)
		if err != nil {
			return ServerEvent{}, err
		}
		ev.Question = &question
	case EventLeaderboardUpdate:
		var payload struct {
			Entries []LeaderboardEntry `json:"entries"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return ServerEvent{}, fmt.Errorf("decode leaderboard: %w", err)
		}
		ev.Leaderboard = payload.Entries
	case EventCheatPenalty:
		var payload struct {
			WarningCount int    `json:"warningCount"`
			Message      string `json:"message"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return ServerEvent{}, fmt.Errorf("decode cheat penalty: %w", err)
		}
		ev.WarningCount = payload.WarningCount
		ev.Message = payload.Message
	case EventOrganiserWarning, EventEliminated, EventReAdmitted:
		var payload struct {
			Message string `json:"message"`
		}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return ServerEvent{}, fmt.Errorf("decode %s: %w", env.Type, err)
			}
		}
		ev.Message = payload.Message
	case EventAnswerRevealed, EventGamePaused, EventGameResumed, EventGameEnded, EventQuestionTimeExpired:
		// No payload.
	default:
		return ServerEvent{}, fmt.Errorf("unknown event type %q", env.Type)
	}
	return ev, nil
}
