package domain

import "time"

// ParticipantIdentity is the client's view of itself inside one game.
// Rank and score are refreshed from leaderboard pushes.
type ParticipantIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarGlyph string `json:"avatarGlyph"`
	CurrentRank int    `json:"currentRank"`
	TotalScore  int    `json:"totalScore"`
}

// SessionCredential proves membership in a specific game instance.
// It is persisted locally and presented on every privileged request.
type SessionCredential struct {
	GameCode      string `json:"gameCode"`
	ParticipantID string `json:"participantId"`
	SessionToken  string `json:"sessionToken"`
}

// Valid reports whether the credential carries enough to attempt a rejoin.
func (c SessionCredential) Valid() bool {
	return c.SessionToken != "" && c.GameCode != ""
}

// SessionPhase is the participant-visible phase of the game.
type SessionPhase string

const (
	PhaseWaiting    SessionPhase = "waiting"
	PhaseActive     SessionPhase = "active"
	PhasePaused     SessionPhase = "paused"
	PhaseEnded      SessionPhase = "ended"
	PhaseEliminated SessionPhase = "eliminated"
)

// Terminal reports whether the phase stops all further question processing.
// Eliminated is absorbing but not terminal: a gameEnded push must still land.
func (p SessionPhase) Terminal() bool {
	return p == PhaseEnded
}

// ConnectionStatus is the degraded-connection signal surfaced to the
// presentation layer instead of crashing the state machine.
type ConnectionStatus string

const (
	ConnConnected       ConnectionStatus = "connected"
	ConnDisconnected    ConnectionStatus = "disconnected"
	ConnReconnecting    ConnectionStatus = "reconnecting"
	ConnReconnected     ConnectionStatus = "reconnected"
	ConnReconnectFailed ConnectionStatus = "reconnect_failed"
)

// RejoinSnapshot is the authoritative state returned by the resume operation.
// Exactly one of three outcomes can be read off it: Ended, a question in
// progress, or neither (game running, no current question yet).
type RejoinSnapshot struct {
	Participant     ParticipantIdentity
	Ended           bool
	Paused          bool
	CurrentQuestion *ActiveQuestion
	AnswerRevealed  bool
	AlreadyAnswered bool
}

// AnswerAttempt is what gets sent to the server for one question.
// At most one attempt per question ID ever reaches the transport layer.
type AnswerAttempt struct {
	QuestionID       string `json:"questionId"`
	RawAnswer        string `json:"answer"`
	LanguageTag      string `json:"language,omitempty"`
	HintUsed         bool   `json:"hintUsed"`
	TimeTakenSeconds int    `json:"timeTaken"`
	AutoSubmitted    bool   `json:"autoSubmit"`
}

// AnswerVerdict is the server's resolution of an attempt.
type AnswerVerdict struct {
	QuestionID   string `json:"questionId"`
	Correct      bool   `json:"isCorrect"`
	ScoreEarned  int    `json:"scoreEarned"`
	TimeBonus    int    `json:"timeBonus,omitempty"`
	PartialScore int    `json:"partialScore,omitempty"`
	Message      string `json:"message,omitempty"`
	// Synthetic verdicts are produced locally when the server reports the
	// deadline already passed; they never carry score.
	Synthetic bool `json:"-"`
}

// LeaderboardEntry is one row of a leaderboard push.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Rank          int    `json:"rank"`
	Score         int    `json:"score"`
}

// IntegrityKind classifies an integrity event.
type IntegrityKind string

const (
	IntegrityVisibilityLost    IntegrityKind = "visibility-lost"
	IntegrityFocusLost         IntegrityKind = "focus-lost"
	IntegrityShortcutBlocked   IntegrityKind = "shortcut-blocked"
	IntegrityContextMenu       IntegrityKind = "context-menu"
	IntegrityDevtoolsSuspected IntegrityKind = "devtools-suspected"
)

// IntegrityEvent is a client-observed signal of possibly dishonest behavior.
// Append-only; the server decides what, if anything, it means.
type IntegrityEvent struct {
	Kind            IntegrityKind `json:"kind"`
	Description     string        `json:"description"`
	OccurredAt      time.Time     `json:"occurredAt"`
	CumulativeCount int           `json:"cumulativeCount"`
}

// GameAnalytics is the per-participant summary fetched once the game ended.
type GameAnalytics struct {
	Participant ParticipantIdentity `json:"participant"`
	Stats       AnalyticsStats      `json:"stats"`
	Answers     []AnswerRecord      `json:"answers"`
}

// AnalyticsStats aggregates a participant's run.
type AnalyticsStats struct {
	TotalScore     int     `json:"totalScore"`
	FinalRank      int     `json:"finalRank"`
	CorrectCount   int     `json:"correctCount"`
	IncorrectCount int     `json:"incorrectCount"`
	AvgTimeSeconds float64 `json:"avgTimeSeconds"`
}

// AnswerRecord is one answered question in the analytics payload.
type AnswerRecord struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"isCorrect"`
	ScoreEarned   int    `json:"scoreEarned"`
	TimeTaken     int    `json:"timeTaken"`
	AutoSubmitted bool   `json:"autoSubmit"`
	HintUsed      bool   `json:"hintUsed"`
}
