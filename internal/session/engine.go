package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// ErrConnectionLost is returned by Run when the connection manager exhausts
// its reconnect attempts.
var ErrConnectionLost = errors.New("connection lost and could not be re-established")

// ErrNotAcceptingAnswers means the session is not in a phase where manual
// submission is possible.
var ErrNotAcceptingAnswers = errors.New("session is not accepting answers")

// API is the full REST surface the engine consumes.
type API interface {
	RejoinAPI
	SubmitAPI
	FetchAnalytics(ctx context.Context, cred domain.SessionCredential) (domain.GameAnalytics, error)
}

// Conn is the event-stream surface the engine consumes.
type Conn interface {
	Connect(ctx context.Context) error
	Events() <-chan domain.ServerEvent
	StatusChanges() <-chan domain.ConnectionStatus
	Close() error
}

// Notifier receives participant-facing notices (penalties, warnings,
// eliminations). Injected explicitly so no component reaches for an ambient
// global hook.
type Notifier interface {
	Notify(kind, message string)
}

// NopNotifier discards all notices.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) {}

// Snapshot is the externally visible state of the session. The participant
// can always determine from it whether the current answer was accepted, is
// pending, or was never sent.
type Snapshot struct {
	Phase        domain.SessionPhase
	Connection   domain.ConnectionStatus
	Identity     domain.ParticipantIdentity
	Question     *domain.ActiveQuestion
	Remaining    int
	Revealed     bool
	AnswerState  AttemptState
	Verdict      *domain.AnswerVerdict
	Leaderboard  []domain.LeaderboardEntry
	PenaltyCount int
	Analytics    *domain.GameAnalytics
}

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdSetDraft
	cmdUseHint
)

type command struct {
	kind     commandKind
	raw      string
	language string
	reply    chan error
}

type analyticsResult struct {
	analytics domain.GameAnalytics
	err       error
}

// Engine is the participant session engine: a single goroutine consuming
// connection events, timer signals, submission results and local commands in
// arrival order, exactly the interleaving model of the original client.
type Engine struct {
	api      API
	conn     Conn
	store    CredentialStore
	notifier Notifier
	clock    clockwork.Clock
	rejoiner *Rejoiner
	timer    *Timer
	submit   *Submitter

	cred      domain.SessionCredential
	draft     string
	draftLang string

	pendingExpiry    string
	analyticsStarted bool

	commands    chan command
	analyticsCh chan analyticsResult

	mu   sync.RWMutex
	view Snapshot
}

// NewEngine wires the engine for an already-joined session.
func NewEngine(api API, conn Conn, store CredentialStore, cred domain.SessionCredential, opts ...Option) *Engine {
	e := &Engine{
		api:         api,
		conn:        conn,
		store:       store,
		notifier:    NopNotifier{},
		clock:       clockwork.NewRealClock(),
		cred:        cred,
		commands:    make(chan command, 8),
		analyticsCh: make(chan analyticsResult, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rejoiner = NewRejoiner(api, store)
	e.timer = NewTimer(e.clock)
	e.submit = NewSubmitter(api, e.clock)
	e.submit.SetCredential(cred)
	e.view = Snapshot{Phase: domain.PhaseWaiting, Connection: domain.ConnDisconnected}
	return e
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock injects a clock; tests pass a fake one.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithNotifier injects the notification service.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// Snapshot returns a copy of the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

// Phase reports the current session phase; used by the integrity monitor to
// gate enforcement.
func (e *Engine) Phase() domain.SessionPhase {
	return e.Snapshot().Phase
}

// SubmitAnswer sends the participant's answer for the current question.
func (e *Engine) SubmitAnswer(ctx context.Context, raw, language string) error {
	return e.dispatch(ctx, command{kind: cmdSubmit, raw: raw, language: language, reply: make(chan error, 1)})
}

// SetDraft records the partial answer used if the timer expires first.
func (e *Engine) SetDraft(ctx context.Context, raw, language string) error {
	return e.dispatch(ctx, command{kind: cmdSetDraft, raw: raw, language: language, reply: make(chan error, 1)})
}

// UseHint reveals the hint for the current question; the penalty flag rides
// along on the eventual attempt.
func (e *Engine) UseHint(ctx context.Context) error {
	return e.dispatch(ctx, command{kind: cmdUseHint, reply: make(chan error, 1)})
}

func (e *Engine) dispatch(ctx context.Context, cmd command) error {
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run connects, resumes authoritative state, and processes the session until
// the game ends, the connection is lost for good, or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.conn.Connect(ctx); err != nil {
		return err
	}

	snap, err := e.rejoiner.Resume(ctx, e.cred)
	if err != nil && !domain.IsTransient(err) {
		return err
	}
	if err != nil {
		// Transient rejoin failure: the push stream will still drive us, and
		// the next reconnect retries the resume.
		log.Warn().Err(err).Msg("initial rejoin failed, proceeding on push events")
	} else {
		e.applyRejoin(ctx, snap)
	}

	for {
		select {
		case <-ctx.Done():
			e.timer.Stop()
			return ctx.Err()

		case ev, ok := <-e.conn.Events():
			if !ok {
				// Stream closed; the terminal status arrives on StatusChanges.
				e.drainStatus()
				e.timer.Stop()
				return ErrConnectionLost
			}
			e.handleEvent(ctx, ev)

		case status := <-e.conn.StatusChanges():
			if done, err := e.handleStatus(ctx, status); done {
				e.timer.Stop()
				return err
			}

		case tick := <-e.timer.Ticks():
			e.update(func(v *Snapshot) {
				if v.Question != nil && v.Question.ID == tick.QuestionID {
					v.Remaining = tick.Remaining
				}
			})

		case questionID := <-e.timer.Expired():
			e.handleExpiry(questionID)

		case res := <-e.submit.Results():
			e.handleSubmitResult(res)

		case cmd := <-e.commands:
			cmd.reply <- e.handleCommand(cmd)

		case res := <-e.analyticsCh:
			if res.err != nil {
				log.Warn().Err(res.err).Msg("analytics fetch failed")
			} else {
				analytics := res.analytics
				e.update(func(v *Snapshot) { v.Analytics = &analytics })
			}
			return nil
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev domain.ServerEvent) {
	phase := e.Snapshot().Phase
	next := NextPhase(phase, ev.Kind)

	switch ev.Kind {
	case domain.EventGameStarted, domain.EventNextQuestion:
		if phase.Terminal() {
			return
		}
		e.startQuestion(ev.Question, next)

	case domain.EventAnswerRevealed:
		e.timer.Stop()
		e.submit.MarkRevealed()
		e.update(func(v *Snapshot) {
			v.Revealed = true
			v.Remaining = 0
			v.AnswerState = e.submit.State()
		})

	case domain.EventLeaderboardUpdate:
		e.applyLeaderboard(ev.Leaderboard)

	case domain.EventGamePaused:
		e.timer.Pause()
		e.setPhase(next)

	case domain.EventGameResumed:
		e.setPhase(next)
		e.timer.Resume()
		if e.pendingExpiry != "" {
			questionID := e.pendingExpiry
			e.pendingExpiry = ""
			e.handleExpiry(questionID)
		}

	case domain.EventGameEnded:
		e.timer.Stop()
		e.setPhase(next)
		e.fetchAnalytics(ctx)

	case domain.EventCheatPenalty:
		e.update(func(v *Snapshot) { v.PenaltyCount = ev.WarningCount })
		e.notifier.Notify("penalty", ev.Message)

	case domain.EventOrganiserWarning:
		e.notifier.Notify("warning", ev.Message)

	case domain.EventEliminated:
		e.timer.Stop()
		e.setPhase(next)
		e.notifier.Notify("eliminated", ev.Message)

	case domain.EventReAdmitted:
		e.setPhase(next)
		e.notifier.Notify("re-admitted", ev.Message)

	case domain.EventQuestionTimeExpired:
		// Server-side expiry races the local timer; the committed flag makes
		// whichever lands first the only one that submits.
		snapshot := e.Snapshot()
		if snapshot.Question != nil {
			e.handleExpiry(snapshot.Question.ID)
		}

	default:
		e.setPhase(next)
	}
}

// startQuestion installs a freshly pushed question: state machine first, then
// the timer re-anchors, then submission re-arms.
func (e *Engine) startQuestion(question *domain.ActiveQuestion, next domain.SessionPhase) {
	if question == nil {
		return
	}
	e.draft = ""
	e.draftLang = ""
	e.pendingExpiry = ""

	if next == domain.PhaseEliminated {
		// Follow along without arming submission or the countdown.
		e.timer.Stop()
		e.update(func(v *Snapshot) {
			v.Phase = next
			v.Question = question
			v.Revealed = false
			v.Remaining = 0
			v.Verdict = nil
		})
		return
	}

	e.submit.Arm(*question)
	e.timer.Arm(question.ID, question.Deadline)
	e.update(func(v *Snapshot) {
		v.Phase = next
		v.Question = question
		v.Revealed = false
		v.Remaining = remainingSeconds(question.Deadline, e.clock.Now())
		v.AnswerState = e.submit.State()
		v.Verdict = nil
	})
}

func (e *Engine) handleStatus(ctx context.Context, status domain.ConnectionStatus) (bool, error) {
	e.update(func(v *Snapshot) { v.Connection = status })

	switch status {
	case domain.ConnReconnectFailed:
		return true, ErrConnectionLost
	case domain.ConnReconnected:
		// Re-synchronize phase, question and timer from the authoritative
		// snapshot instead of trusting anything local.
		snap, err := e.rejoiner.Resume(ctx, e.cred)
		switch {
		case errors.Is(err, domain.ErrCredentialRejected):
			return true, err
		case err != nil:
			log.Warn().Err(err).Msg("rejoin after reconnect failed")
		default:
			e.applyRejoin(ctx, snap)
		}
		e.submit.RetryPending()
	}
	return false, nil
}

// applyRejoin reconciles local state to the authoritative resume snapshot.
func (e *Engine) applyRejoin(ctx context.Context, snap domain.RejoinSnapshot) {
	e.update(func(v *Snapshot) { v.Identity = snap.Participant })
	e.submit.SetCredential(e.cred)

	switch {
	case snap.Ended:
		e.timer.Stop()
		e.setPhase(domain.PhaseEnded)
		e.fetchAnalytics(ctx)

	case snap.CurrentQuestion != nil:
		question := snap.CurrentQuestion
		phase := domain.PhaseActive
		if snap.Paused {
			phase = domain.PhasePaused
		}
		if snap.AnswerRevealed || snap.AlreadyAnswered {
			// Do not start a timer for a settled question.
			e.timer.Stop()
			e.submit.Arm(*question)
			e.submit.MarkResolved()
			e.update(func(v *Snapshot) {
				v.Phase = phase
				v.Question = question
				v.Revealed = snap.AnswerRevealed
				v.Remaining = 0
				v.AnswerState = e.submit.State()
			})
			return
		}
		if armedID, ok := e.submit.ArmedQuestion(); ok && armedID == question.ID {
			// The same unanswered question survived the disconnect: keep the
			// attempt state and the local draft so a queued retry is not
			// wiped out, and only re-anchor the countdown to the
			// authoritative deadline.
			e.timer.Arm(question.ID, question.Deadline)
			e.update(func(v *Snapshot) {
				v.Phase = phase
				v.Question = question
				v.Revealed = false
				v.Remaining = remainingSeconds(question.Deadline, e.clock.Now())
				v.AnswerState = e.submit.State()
			})
		} else {
			// Remaining time derives from the absolute deadline, clamped at
			// zero; a deadline already in the past fires the expiry path
			// immediately instead of showing a negative countdown.
			e.startQuestion(question, phase)
		}
		if snap.Paused {
			e.timer.Pause()
		}

	default:
		// Game in progress, no current question: a transient condition
		// resolved by the next push event.
		e.setPhase(domain.PhaseWaiting)
	}
}

func (e *Engine) handleExpiry(questionID string) {
	snapshot := e.Snapshot()
	if snapshot.Question == nil || snapshot.Question.ID != questionID {
		return
	}
	if snapshot.Revealed {
		return
	}
	if snapshot.Phase == domain.PhasePaused {
		// The deadline ran out in the same instant the pause landed: hold the
		// expiry until the game resumes instead of dropping it.
		e.pendingExpiry = questionID
		return
	}
	if snapshot.Phase != domain.PhaseActive {
		return
	}
	e.update(func(v *Snapshot) { v.Remaining = 0 })
	e.submit.AutoSubmit(e.draft, e.draftLang)
	e.update(func(v *Snapshot) { v.AnswerState = e.submit.State() })
}

func (e *Engine) handleSubmitResult(res SubmitResult) {
	snapshot := e.Snapshot()
	if snapshot.Question == nil || snapshot.Question.ID != res.QuestionID {
		// The game moved on; a late response for a superseded question is
		// discarded, never replayed.
		log.Debug().Str("question_id", res.QuestionID).Msg("discarding stale submit response")
		return
	}
	if res.Err != nil && errors.Is(res.Err, domain.ErrCredentialRejected) {
		log.Error().Msg("credential rejected on submit")
	}
	e.submit.HandleResult(res)
	e.update(func(v *Snapshot) {
		v.AnswerState = e.submit.State()
		v.Verdict = e.submit.Verdict()
	})
}

func (e *Engine) handleCommand(cmd command) error {
	snapshot := e.Snapshot()
	switch cmd.kind {
	case cmdSubmit:
		if snapshot.Phase != domain.PhaseActive {
			return ErrNotAcceptingAnswers
		}
		err := e.submit.Submit(cmd.raw, cmd.language, false)
		e.update(func(v *Snapshot) { v.AnswerState = e.submit.State() })
		return err
	case cmdSetDraft:
		e.draft = cmd.raw
		e.draftLang = cmd.language
		return nil
	case cmdUseHint:
		if snapshot.Question == nil || snapshot.Question.HintText == "" {
			return errors.New("no hint available")
		}
		e.submit.UseHint()
		return nil
	default:
		return errors.New("unknown command")
	}
}

// fetchAnalytics runs at most once per session; a second ended trigger (a
// rejoin that found the game over followed by the push event) is a no-op.
func (e *Engine) fetchAnalytics(ctx context.Context) {
	if e.analyticsStarted {
		return
	}
	e.analyticsStarted = true
	cred := e.cred
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		analytics, err := e.api.FetchAnalytics(callCtx, cred)
		e.analyticsCh <- analyticsResult{analytics: analytics, err: err}
	}()
}

func (e *Engine) setPhase(phase domain.SessionPhase) {
	e.update(func(v *Snapshot) { v.Phase = phase })
}

func (e *Engine) applyLeaderboard(entries []domain.LeaderboardEntry) {
	e.update(func(v *Snapshot) {
		v.Leaderboard = entries
		for _, entry := range entries {
			if entry.ParticipantID == v.Identity.ID {
				v.Identity.CurrentRank = entry.Rank
				v.Identity.TotalScore = entry.Score
			}
		}
	})
}

func (e *Engine) update(mutate func(*Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(&e.view)
}

func (e *Engine) drainStatus() {
	for {
		select {
		case status := <-e.conn.StatusChanges():
			e.update(func(v *Snapshot) { v.Connection = status })
		default:
			return
		}
	}
}
