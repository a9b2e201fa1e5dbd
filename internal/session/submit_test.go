package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
	"github.com/Syxd09/code-byte-sub000/internal/session"
)

type stubSubmitAPI struct {
	mu       sync.Mutex
	attempts []domain.AnswerAttempt
	verdict  domain.AnswerVerdict
	err      error
}

func (s *stubSubmitAPI) SubmitAnswer(ctx context.Context, cred domain.SessionCredential, attempt domain.AnswerAttempt) (domain.AnswerVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return s.verdict, s.err
}

func (s *stubSubmitAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

func (s *stubSubmitAPI) attempt(i int) domain.AnswerAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[i]
}

func (s *stubSubmitAPI) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func textQuestion(id string) domain.ActiveQuestion {
	return domain.ActiveQuestion{
		ID:       id,
		Type:     domain.QuestionShortAnswer,
		Text:     "capital of France",
		Payload:  domain.TextPayload{},
		Deadline: time.Now().Add(30 * time.Second),
	}
}

func newSubmitter(api session.SubmitAPI) *session.Submitter {
	s := session.NewSubmitter(api, clockwork.NewFakeClock())
	s.SetCredential(domain.SessionCredential{GameCode: "ABC123", ParticipantID: "p1", SessionToken: "tok"})
	return s
}

func waitSubmitResult(t *testing.T, s *session.Submitter) session.SubmitResult {
	t.Helper()
	select {
	case res := <-s.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no submit result arrived")
		return session.SubmitResult{}
	}
}

func TestSubmitCommitsExactlyOnce(t *testing.T) {
	api := &stubSubmitAPI{verdict: domain.AnswerVerdict{QuestionID: "q1", Correct: true, ScoreEarned: 10}}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	if err := s.Submit("Paris", "", false); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if s.State() != session.AttemptPending {
		t.Fatalf("expected pending, got %s", s.State())
	}
	if err := s.Submit("Lyon", "", false); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	s.HandleResult(waitSubmitResult(t, s))
	if s.State() != session.AttemptCommittedSuccess {
		t.Fatalf("expected committed-success, got %s", s.State())
	}
	if v := s.Verdict(); v == nil || !v.Correct || v.ScoreEarned != 10 {
		t.Fatalf("expected recorded verdict, got %+v", v)
	}
	if api.calls() != 1 {
		t.Fatalf("expected exactly one network attempt, got %d", api.calls())
	}
}

func TestAutoSubmitLosesRaceSilently(t *testing.T) {
	api := &stubSubmitAPI{}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	if err := s.Submit("Paris", "", false); err != nil {
		t.Fatalf("manual submit failed: %v", err)
	}
	s.AutoSubmit("Par", "")

	s.HandleResult(waitSubmitResult(t, s))
	if api.calls() != 1 {
		t.Fatalf("auto-submit after manual must not send, got %d calls", api.calls())
	}
	if got := api.attempt(0); got.AutoSubmitted || got.RawAnswer != "Paris" {
		t.Fatalf("expected the manual attempt to win, got %+v", got)
	}
}

func TestManualAfterAutoIsRejected(t *testing.T) {
	api := &stubSubmitAPI{}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	s.AutoSubmit("", "")
	if err := s.Submit("Paris", "", false); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted after auto, got %v", err)
	}

	s.HandleResult(waitSubmitResult(t, s))
	if api.calls() != 1 {
		t.Fatalf("expected one attempt, got %d", api.calls())
	}
	if got := api.attempt(0); !got.AutoSubmitted || got.RawAnswer != "" {
		t.Fatalf("expected the empty auto attempt, got %+v", got)
	}
}

func TestDeadlinePassedResolvesSynthetically(t *testing.T) {
	api := &stubSubmitAPI{err: domain.ErrDeadlinePassed}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	if err := s.Submit("Paris", "", false); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	s.HandleResult(waitSubmitResult(t, s))

	if s.State() != session.AttemptCommittedSynthetic {
		t.Fatalf("expected committed-synthetic, got %s", s.State())
	}
	v := s.Verdict()
	if v == nil || !v.Synthetic || v.Correct || v.ScoreEarned != 0 {
		t.Fatalf("expected scoreless synthetic verdict, got %+v", v)
	}
	// Never retried: the server's answer was authoritative.
	s.RetryPending()
	if api.calls() != 1 {
		t.Fatalf("expected no retry, got %d calls", api.calls())
	}
}

func TestTransientFailureRetriesOnce(t *testing.T) {
	api := &stubSubmitAPI{err: &domain.TransientError{Op: "submit", Err: errors.New("connection refused")}}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	if err := s.Submit("Paris", "", false); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	s.HandleResult(waitSubmitResult(t, s))
	if s.State() != session.AttemptRetryQueued {
		t.Fatalf("expected retry-queued, got %s", s.State())
	}
	if err := s.Submit("Lyon", "", false); !errors.Is(err, domain.ErrRetryPending) {
		t.Fatalf("expected ErrRetryPending while queued, got %v", err)
	}

	s.RetryPending()
	s.HandleResult(waitSubmitResult(t, s))
	if s.State() != session.AttemptRejectedRetryable {
		t.Fatalf("expected rejected-retryable after failed retry, got %s", s.State())
	}
	if api.calls() != 2 {
		t.Fatalf("expected exactly two attempts, got %d", api.calls())
	}

	// The participant may still submit manually once the queued retry has
	// been consumed.
	api.setErr(nil)
	if err := s.Submit("Paris", "", false); err != nil {
		t.Fatalf("manual resubmit failed: %v", err)
	}
	s.HandleResult(waitSubmitResult(t, s))
	if s.State() != session.AttemptCommittedSuccess {
		t.Fatalf("expected committed-success, got %s", s.State())
	}
}

func TestServerValidationReopensSubmission(t *testing.T) {
	api := &stubSubmitAPI{err: &domain.ValidationError{Reason: "answer rejected"}}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	if err := s.Submit("Paris", "", false); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	s.HandleResult(waitSubmitResult(t, s))
	if s.State() != session.AttemptIdle {
		t.Fatalf("expected idle after validation rejection, got %s", s.State())
	}

	api.setErr(nil)
	if err := s.Submit("Lyon", "", false); err != nil {
		t.Fatalf("corrected submit failed: %v", err)
	}
}

func TestRevealClosesSubmissionWindow(t *testing.T) {
	api := &stubSubmitAPI{}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	s.MarkRevealed()
	if s.State() != session.AttemptRejectedTerminal {
		t.Fatalf("expected rejected-terminal, got %s", s.State())
	}
	if err := s.Submit("Paris", "", false); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected submission refused, got %v", err)
	}
	s.AutoSubmit("Paris", "")
	if api.calls() != 0 {
		t.Fatalf("expected no network attempts, got %d", api.calls())
	}
}

func TestLocalValidationBlocksSend(t *testing.T) {
	api := &stubSubmitAPI{}
	s := newSubmitter(api)
	s.Arm(domain.ActiveQuestion{
		ID:   "q1",
		Type: domain.QuestionMultipleChoice,
		Payload: domain.ChoicePayload{Options: []domain.ChoiceOption{
			{ID: "a", Text: "one"},
			{ID: "b", Text: "two"},
		}},
	})

	err := s.Submit("z", "", false)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if s.State() != session.AttemptIdle || api.calls() != 0 {
		t.Fatalf("invalid attempt must not commit: state=%s calls=%d", s.State(), api.calls())
	}

	if err := s.Submit("b", "", false); err != nil {
		t.Fatalf("valid option rejected: %v", err)
	}
}

func TestHintFlagRidesOnAttempt(t *testing.T) {
	api := &stubSubmitAPI{}
	s := newSubmitter(api)
	s.Arm(textQuestion("q1"))

	s.UseHint()
	if err := s.Submit("Paris", "", false); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	s.HandleResult(waitSubmitResult(t, s))
	if got := api.attempt(0); !got.HintUsed {
		t.Fatalf("expected HintUsed on the attempt, got %+v", got)
	}
}

func TestStaleResultIsIgnored(t *testing.T) {
	api := &stubSubmitAPI{}
	s := newSubmitter(api)
	s.Arm(textQuestion("q2"))

	s.HandleResult(session.SubmitResult{QuestionID: "q1", Err: errors.New("late")})
	if s.State() != session.AttemptIdle {
		t.Fatalf("stale result must not change state, got %s", s.State())
	}
}
