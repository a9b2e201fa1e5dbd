package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// CloseServerRestart is the close code the server uses when it drops clients
// on purpose (deploy, room rebalance). It triggers an immediate redial
// instead of backoff.
const CloseServerRestart = 4001

// ErrReconnectFailed is returned by Run once the attempt cap is exhausted.
var ErrReconnectFailed = errors.New("reconnect attempts exhausted")

// Config tunes the connection manager.
type Config struct {
	URL         string
	BackoffBase time.Duration // delay is BackoffBase * attempt number
	MaxAttempts int
}

func (c *Config) applyDefaults() {
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

// JoinRoom is the handshake announcing this client inside the game room.
// It is re-sent after every reconnect: connection identity is not stable
// across reconnects, so the server-side room membership must be restored.
type JoinRoom struct {
	GameCode      string `json:"gameCode"`
	ParticipantID string `json:"participantId"`
	Role          string `json:"role"`
}

type clientFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client owns one bidirectional event-stream connection to the server.
// All inbound events are delivered on a single channel in arrival order, so
// subscribers survive reconnects without re-registering anything.
type Client struct {
	id     string
	cfg    Config
	clock  clockwork.Clock
	dialer *websocket.Dialer
	join   JoinRoom

	events chan domain.ServerEvent
	status chan domain.ConnectionStatus
	send   chan clientFrame

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	closed  bool
}

// NewClient builds a connection manager; Connect must be called to go live.
func NewClient(cfg Config, join JoinRoom, clock clockwork.Clock) *Client {
	cfg.applyDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		id:     uuid.NewString(),
		cfg:    cfg,
		clock:  clock,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		join:   join,
		events: make(chan domain.ServerEvent, 64),
		status: make(chan domain.ConnectionStatus, 16),
		send:   make(chan clientFrame, 64),
	}
}

// Events is the single ordered stream of decoded server pushes.
func (c *Client) Events() <-chan domain.ServerEvent { return c.events }

// StatusChanges reports connection-status transitions.
func (c *Client) StatusChanges() <-chan domain.ConnectionStatus { return c.status }

// Connect establishes the connection and starts the manager loop. Idempotent:
// a second call on a live client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("connection manager closed")
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}
	c.setConn(conn)
	c.emitStatus(domain.ConnConnected)

	go c.run(ctx, conn)
	return nil
}

// Close is the explicit local disconnect. No reconnect is attempted.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

// ReportCheat queues an integrity event for the server. Reports queued while
// disconnected are flushed after the next successful reconnect.
func (c *Client) ReportCheat(ev domain.IntegrityEvent) {
	frame := clientFrame{Type: "cheatDetected", Payload: ev}
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("cheat report queue full, dropping report")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(clientFrame{Type: "joinGameRoom", Payload: c.join}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join game room: %w", err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// run owns the connection until the context ends, Close is called, or the
// reconnect cap is exhausted.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.events)

	for {
		serverInitiated := c.pump(ctx, conn)
		if ctx.Err() != nil || c.isClosed() {
			return
		}
		c.emitStatus(domain.ConnDisconnected)

		next, err := c.reconnect(ctx, serverInitiated)
		if err != nil {
			c.emitStatus(domain.ConnReconnectFailed)
			log.Error().Err(err).Str("connection_id", c.id).Msg("giving up on reconnect")
			return
		}
		conn = next
		c.setConn(conn)
		c.emitStatus(domain.ConnReconnected)
	}
}

// pump reads inbound frames and writes queued outbound frames until the
// connection dies. It reports whether the disconnect was server-initiated.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) (serverInitiated bool) {
	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case frame := <-c.send:
				if err := conn.WriteJSON(frame); err != nil {
					log.Warn().Err(err).Str("connection_id", c.id).Msg("ws write failed")
					return
				}
			case <-readerDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			close(readerDone)
			<-writerDone
			conn.Close()
			return websocket.IsCloseError(err, CloseServerRestart)
		}
		event, decodeErr := domain.DecodeServerEvent(raw)
		if decodeErr != nil {
			log.Warn().Err(decodeErr).Str("connection_id", c.id).Msg("dropping undecodable event")
			continue
		}
		select {
		case c.events <- event:
		case <-ctx.Done():
			close(readerDone)
			<-writerDone
			conn.Close()
			return false
		}
	}
}

// reconnect redials with linear backoff (base * attempt) up to the attempt
// cap. A server-initiated disconnect skips the first delay entirely.
func (c *Client) reconnect(ctx context.Context, immediate bool) (*websocket.Conn, error) {
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.emitStatus(domain.ConnReconnecting)
		if !(immediate && attempt == 1) {
			delay := c.cfg.BackoffBase * time.Duration(attempt)
			select {
			case <-c.clock.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if c.isClosed() {
			return nil, errors.New("closed during reconnect")
		}
		conn, err := c.dial(ctx)
		if err == nil {
			log.Info().Str("connection_id", c.id).Int("attempt", attempt).Msg("reconnected")
			return conn, nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("max", c.cfg.MaxAttempts).Msg("reconnect attempt failed")
	}
	return nil, ErrReconnectFailed
}

func (c *Client) emitStatus(s domain.ConnectionStatus) {
	select {
	case c.status <- s:
	default:
		// Status channel full; drop the oldest so the latest signal lands.
		select {
		case <-c.status:
		default:
		}
		c.status <- s
	}
}
