package integrity

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// SignalKind names a raw browser-level signal delivered by the SignalSource.
type SignalKind string

const (
	SignalVisibilityHidden  SignalKind = "visibility-hidden"
	SignalVisibilityVisible SignalKind = "visibility-visible"
	SignalFocusLost         SignalKind = "focus-lost"
	SignalFocusGained       SignalKind = "focus-gained"
	SignalShortcut          SignalKind = "shortcut"
	SignalContextMenu       SignalKind = "context-menu"
)

// Signal is one raw observation from the environment.
type Signal struct {
	Kind SignalKind
	// Shortcut is the key combination for SignalShortcut (e.g. "ctrl+c").
	Shortcut string
	// InAnswerInput is true when focus is inside a designated answer-input
	// region; editing shortcuts are legitimate there.
	InAnswerInput bool
}

// WindowMetrics are the outer/inner window dimensions used by the
// developer-tools heuristic.
type WindowMetrics struct {
	OuterWidth  int
	OuterHeight int
	InnerWidth  int
	InnerHeight int
}

// SignalSource abstracts the environment delivering browser-level signals,
// so the monitor itself stays headless and testable.
type SignalSource interface {
	Signals() <-chan Signal
	Metrics() WindowMetrics
}

// Reporter ships integrity events to the server. The monitor never decides
// penalties; it only observes and reports.
type Reporter interface {
	ReportCheat(ev domain.IntegrityEvent)
}

// Config tunes the monitor's thresholds.
type Config struct {
	// HiddenThreshold: visibility loss shorter than this is not reported.
	HiddenThreshold time.Duration
	// BlurThreshold: focus loss shorter than this is not reported. Lower
	// than the visibility threshold since focus can move without the tab
	// being hidden (multi-monitor).
	BlurThreshold time.Duration
	// DevtoolsInterval is the polling cadence of the dimension heuristic.
	DevtoolsInterval time.Duration
	// DevtoolsDelta is the outer-vs-inner dimension gap suggesting an open
	// devtools pane.
	DevtoolsDelta int
}

func (c *Config) applyDefaults() {
	if c.HiddenThreshold <= 0 {
		c.HiddenThreshold = 5 * time.Second
	}
	if c.BlurThreshold <= 0 {
		c.BlurThreshold = 3 * time.Second
	}
	if c.DevtoolsInterval <= 0 {
		c.DevtoolsInterval = 5 * time.Second
	}
	if c.DevtoolsDelta <= 0 {
		c.DevtoolsDelta = 160
	}
}

// Suppresses reports whether the presentation layer should block the signal's
// default action. Context-menu invocations are always suppressed; editing
// shortcuts are allowed inside answer inputs.
func Suppresses(sig Signal) bool {
	switch sig.Kind {
	case SignalContextMenu:
		return true
	case SignalShortcut:
		return !sig.InAnswerInput
	default:
		return false
	}
}

// Monitor observes behavioral signals during the active phase and reports
// discrete integrity events. Purely observational: it never blocks gameplay.
type Monitor struct {
	cfg      Config
	source   SignalSource
	reporter Reporter
	clock    clockwork.Clock
	phase    func() domain.SessionPhase

	mu           sync.Mutex
	running      bool
	stop         chan struct{}
	hiddenAt     time.Time
	blurredAt    time.Time
	devtoolsOpen bool
	count        int
}

// NewMonitor wires the monitor; phase gates enforcement (only the active
// phase is observed).
func NewMonitor(cfg Config, source SignalSource, reporter Reporter, phase func() domain.SessionPhase, clock clockwork.Clock) *Monitor {
	cfg.applyDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		cfg:      cfg,
		source:   source,
		reporter: reporter,
		clock:    clock,
		phase:    phase,
	}
}

// Start attaches the observers. Idempotent.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	go m.loop(m.stop)
}

// Stop detaches the observers. Idempotent. The cumulative counter survives
// a stop/start cycle so repeat offenses stay distinguishable.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
	m.hiddenAt = time.Time{}
	m.blurredAt = time.Time{}
}

// Count returns the number of events reported so far.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Monitor) loop(stop chan struct{}) {
	ticker := m.clock.NewTicker(m.cfg.DevtoolsInterval)
	defer ticker.Stop()

	for {
		select {
		case sig, ok := <-m.source.Signals():
			if !ok {
				return
			}
			m.handleSignal(sig)
		case <-ticker.Chan():
			m.pollDevtools()
		case <-stop:
			return
		}
	}
}

func (m *Monitor) handleSignal(sig Signal) {
	if !m.enforcing() {
		return
	}
	now := m.clock.Now()

	switch sig.Kind {
	case SignalVisibilityHidden:
		m.mu.Lock()
		m.hiddenAt = now
		m.mu.Unlock()

	case SignalVisibilityVisible:
		m.mu.Lock()
		hiddenAt := m.hiddenAt
		m.hiddenAt = time.Time{}
		m.mu.Unlock()
		if hiddenAt.IsZero() {
			return
		}
		// Sub-threshold blips (accidental alt-tabs) are not reported.
		if elapsed := now.Sub(hiddenAt); elapsed > m.cfg.HiddenThreshold {
			m.report(domain.IntegrityVisibilityLost,
				fmt.Sprintf("tab hidden for %.1fs", elapsed.Seconds()))
		}

	case SignalFocusLost:
		m.mu.Lock()
		m.blurredAt = now
		m.mu.Unlock()

	case SignalFocusGained:
		m.mu.Lock()
		blurredAt := m.blurredAt
		m.blurredAt = time.Time{}
		m.mu.Unlock()
		if blurredAt.IsZero() {
			return
		}
		if elapsed := now.Sub(blurredAt); elapsed > m.cfg.BlurThreshold {
			m.report(domain.IntegrityFocusLost,
				fmt.Sprintf("window unfocused for %.1fs", elapsed.Seconds()))
		}

	case SignalShortcut:
		if sig.InAnswerInput {
			return
		}
		m.report(domain.IntegrityShortcutBlocked, "blocked shortcut "+sig.Shortcut)

	case SignalContextMenu:
		m.report(domain.IntegrityContextMenu, "context menu invocation suppressed")
	}
}

// pollDevtools compares outer and inner window dimensions; a report fires on
// the closed-to-open edge only, never on every poll.
func (m *Monitor) pollDevtools() {
	if !m.enforcing() {
		return
	}
	metrics := m.source.Metrics()
	open := metrics.OuterWidth-metrics.InnerWidth > m.cfg.DevtoolsDelta ||
		metrics.OuterHeight-metrics.InnerHeight > m.cfg.DevtoolsDelta

	m.mu.Lock()
	edge := open && !m.devtoolsOpen
	m.devtoolsOpen = open
	m.mu.Unlock()

	if edge {
		m.report(domain.IntegrityDevtoolsSuspected, "window dimension gap suggests open developer tools")
	}
}

func (m *Monitor) enforcing() bool {
	return m.phase == nil || m.phase() == domain.PhaseActive
}

func (m *Monitor) report(kind domain.IntegrityKind, description string) {
	m.mu.Lock()
	m.count++
	count := m.count
	m.mu.Unlock()

	ev := domain.IntegrityEvent{
		Kind:            kind,
		Description:     description,
		OccurredAt:      m.clock.Now(),
		CumulativeCount: count,
	}
	log.Debug().Str("kind", string(kind)).Int("count", count).Msg("integrity event reported")
	m.reporter.ReportCheat(ev)
}
