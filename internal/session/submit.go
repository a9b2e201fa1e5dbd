package session

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// AttemptState is the resolution state of the current question's answer.
// Every attempt ends in exactly one of the committed/rejected states; there
// is no "maybe sent" state.
type AttemptState string

const (
	// AttemptIdle: nothing sent; a manual submit is possible.
	AttemptIdle AttemptState = "idle"
	// AttemptPending: one attempt is in flight.
	AttemptPending AttemptState = "pending"
	// AttemptRetryQueued: the attempt never reached the server; one retry
	// fires when connectivity returns. Manual submits are suppressed.
	AttemptRetryQueued AttemptState = "retry-queued"
	// AttemptCommittedSuccess: the server returned a verdict.
	AttemptCommittedSuccess AttemptState = "committed-success"
	// AttemptCommittedSynthetic: the server said the deadline had passed;
	// resolved locally with a synthetic "time expired" verdict.
	AttemptCommittedSynthetic AttemptState = "committed-synthetic"
	// AttemptRejectedRetryable: the single retry also failed; the participant
	// may submit again manually.
	AttemptRejectedRetryable AttemptState = "rejected-retryable"
	// AttemptRejectedTerminal: no attempt will ever be sent for this question
	// (e.g. the answer was revealed first).
	AttemptRejectedTerminal AttemptState = "rejected-terminal"
)

// SubmitAPI is the transport slice the controller needs.
type SubmitAPI interface {
	SubmitAnswer(ctx context.Context, cred domain.SessionCredential, attempt domain.AnswerAttempt) (domain.AnswerVerdict, error)
}

// SubmitResult carries a server response back into the engine loop.
type SubmitResult struct {
	QuestionID string
	Verdict    domain.AnswerVerdict
	Err        error
}

// Submitter accepts at most one committed answer per question and resolves
// the manual-vs-auto race deterministically. All methods are called from the
// engine goroutine; only the network call itself runs concurrently, and the
// committed flag is set before that call is spawned, so a racing auto-submit
// can never double-send.
type Submitter struct {
	api     SubmitAPI
	clock   clockwork.Clock
	timeout time.Duration
	results chan SubmitResult

	cred      domain.SessionCredential
	question  domain.ActiveQuestion
	armed     bool
	startedAt time.Time
	hintUsed  bool

	committed bool
	state     AttemptState
	attempt   domain.AnswerAttempt
	verdict   *domain.AnswerVerdict
	retried   bool
}

// NewSubmitter builds an unarmed submission controller.
func NewSubmitter(api SubmitAPI, clock clockwork.Clock) *Submitter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Submitter{
		api:     api,
		clock:   clock,
		timeout: 10 * time.Second,
		results: make(chan SubmitResult, 4),
		state:   AttemptIdle,
	}
}

// Results delivers server responses; the engine matches them against the
// current question and discards stale ones.
func (s *Submitter) Results() <-chan SubmitResult { return s.results }

// SetCredential points the controller at the live session.
func (s *Submitter) SetCredential(cred domain.SessionCredential) { s.cred = cred }

// Arm resets the controller for a new question.
func (s *Submitter) Arm(q domain.ActiveQuestion) {
	s.question = q
	s.armed = true
	s.startedAt = s.clock.Now()
	s.hintUsed = false
	s.committed = false
	s.state = AttemptIdle
	s.attempt = domain.AnswerAttempt{}
	s.verdict = nil
	s.retried = false
}

// MarkResolved records that the server already holds an answer for the
// current question (learned via rejoin); nothing further will be sent.
func (s *Submitter) MarkResolved() {
	s.committed = true
	s.state = AttemptCommittedSuccess
}

// MarkRevealed closes the submission window: the answer was revealed before
// any attempt committed.
func (s *Submitter) MarkRevealed() {
	if s.committed || s.state == AttemptPending {
		return
	}
	s.state = AttemptRejectedTerminal
}

// UseHint flags the hint as consumed for the current question.
func (s *Submitter) UseHint() { s.hintUsed = true }

// State exposes the resolution state for snapshots.
func (s *Submitter) State() AttemptState { return s.state }

// ArmedQuestion reports the ID of the currently armed question, if any.
func (s *Submitter) ArmedQuestion() (string, bool) {
	if !s.armed {
		return "", false
	}
	return s.question.ID, true
}

// Verdict returns the recorded verdict, if any.
func (s *Submitter) Verdict() *domain.AnswerVerdict { return s.verdict }

// Submit validates and sends one attempt. It is a no-op (error) when an
// attempt for the current question is already committed or in flight.
func (s *Submitter) Submit(raw, language string, auto bool) error {
	if !s.armed {
		return errors.New("no question armed")
	}
	if s.committed || s.state == AttemptPending {
		return domain.ErrAlreadySubmitted
	}
	if s.state == AttemptRetryQueued {
		return domain.ErrRetryPending
	}
	if s.state == AttemptRejectedTerminal {
		return domain.ErrAlreadySubmitted
	}

	elapsed := int(s.clock.Now().Sub(s.startedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	attempt := domain.AnswerAttempt{
		QuestionID:       s.question.ID,
		RawAnswer:        raw,
		LanguageTag:      language,
		HintUsed:         s.hintUsed,
		TimeTakenSeconds: elapsed,
		AutoSubmitted:    auto,
	}
	if err := domain.ValidateAttempt(s.question, attempt); err != nil {
		return err
	}

	// Committed before the network call resolves: a timer expiry racing this
	// same iteration of the loop finds the flag set and drops out.
	s.committed = true
	s.state = AttemptPending
	s.attempt = attempt
	go s.send(s.cred, attempt)
	return nil
}

// AutoSubmit synthesizes an attempt from whatever partial answer exists
// locally. Losing the race against a manual submit is silent, not an error.
func (s *Submitter) AutoSubmit(partial, language string) {
	if !s.armed || s.committed || s.state != AttemptIdle {
		return
	}
	if err := s.Submit(partial, language, true); err != nil {
		log.Warn().Err(err).Str("question_id", s.question.ID).Msg("auto-submit dropped")
	}
}

// RetryPending re-sends the queued attempt once connectivity is restored.
// Only a single retry is ever made per attempt.
func (s *Submitter) RetryPending() {
	if s.state != AttemptRetryQueued || s.retried {
		return
	}
	s.retried = true
	s.committed = true
	s.state = AttemptPending
	go s.send(s.cred, s.attempt)
}

// HandleResult folds a server response for the current question into the
// controller. The engine guarantees the result matches the armed question.
func (s *Submitter) HandleResult(res SubmitResult) {
	if !s.armed || res.QuestionID != s.question.ID {
		return
	}

	switch {
	case res.Err == nil:
		verdict := res.Verdict
		s.verdict = &verdict
		s.state = AttemptCommittedSuccess
	case errors.Is(res.Err, domain.ErrDeadlinePassed):
		// Authoritative resolution, not a failure: keep committed, record a
		// synthetic verdict, never retry.
		s.verdict = &domain.AnswerVerdict{
			QuestionID: res.QuestionID,
			Correct:    false,
			Message:    "time expired",
			Synthetic:  true,
		}
		s.state = AttemptCommittedSynthetic
	case domain.IsValidation(res.Err):
		// The participant may correct and resubmit.
		s.committed = false
		s.state = AttemptIdle
	case domain.IsTransient(res.Err):
		s.committed = false
		if s.retried {
			s.state = AttemptRejectedRetryable
		} else {
			s.state = AttemptRetryQueued
		}
	default:
		s.state = AttemptRejectedTerminal
	}
}

func (s *Submitter) send(cred domain.SessionCredential, attempt domain.AnswerAttempt) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	verdict, err := s.api.SubmitAnswer(ctx, cred, attempt)
	s.results <- SubmitResult{QuestionID: attempt.QuestionID, Verdict: verdict, Err: err}
}
