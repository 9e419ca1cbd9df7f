// Package stream implements the long-lived bidirectional coaching connection:
// a state-machine session over WebSocket with automatic exponential-backoff
// reconnection, plus the sampling controller that throttles real-time
// analysis frames.
//
// One [Session] value belongs to one coaching session. It is constructed at
// session start, owned by whichever component manages the session lifecycle,
// and disposed at session end; there is no package-level instance.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// State is the connection lifecycle state of a [Session]. Transitions are
// serialised; external components observe but never mutate it.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
	StateError      State = "error"
)

var (
	// ErrMissingTarget is returned by Connect for an empty target.
	ErrMissingTarget = errors.New("missing connection target")

	// ErrConnectionLost is the terminal failure surfaced once the retry
	// ceiling is reached.
	ErrConnectionLost = errors.New("connection lost")
)

// Handlers is the observer registration contract for a session. All handlers
// are optional and are invoked sequentially in event order; they must not
// block for long.
type Handlers struct {
	// OnMessage receives every inbound wire message plus the synthetic
	// open/close/error markers, in arrival order.
	OnMessage func(Message)

	// OnState receives every state transition.
	OnState func(State)

	// OnTerminal receives the final error when reconnection gives up.
	OnTerminal func(error)
}

// Config configures a [Session].
type Config struct {
	// Dialer establishes transports. Defaults to [WSDialer].
	Dialer Dialer

	// Handlers are the session observers.
	Handlers Handlers

	// MaxRetries caps reconnection attempts per outage. Defaults to 5.
	MaxRetries int

	// BaseDelay is the first backoff step. Defaults to 500 ms.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff. Defaults to 30 s.
	MaxDelay time.Duration

	// DisableReconnect turns off automatic reconnection entirely.
	DisableReconnect bool

	// Rand supplies reconnect jitter. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Session owns one long-lived bidirectional connection. It frames control
// messages, classifies inbound traffic, and recovers from unplanned closes
// with capped exponential backoff until MaxRetries is exhausted.
//
// All methods are safe for concurrent use.
type Session struct {
	dialer      Dialer
	handlers    Handlers
	maxDelay    time.Duration
	noReconnect bool
	rng         *rand.Rand

	mu          sync.Mutex
	state       State
	target      string
	conn        Conn
	retry       RetryState
	intentional bool
	retryTimer  *time.Timer
	gen         int
	ctx         context.Context

	// writeMu serialises wire writes so outbound order matches caller order.
	writeMu sync.Mutex
}

// New creates an idle session. Call [Session.Connect] to establish the
// transport.
func New(cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = WSDialer{}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Session{
		dialer:      cfg.Dialer,
		handlers:    cfg.Handlers,
		maxDelay:    cfg.MaxDelay,
		noReconnect: cfg.DisableReconnect,
		rng:         cfg.Rand,
		state:       StateIdle,
		retry: RetryState{
			BaseDelay:  cfg.BaseDelay,
			MaxRetries: cfg.MaxRetries,
		},
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Retry returns a read-only copy of the current retry state.
func (s *Session) Retry() RetryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry
}

// Connect establishes the transport to target. Valid from idle, closed, or
// error. An empty target fails synchronously with [ErrMissingTarget] and
// leaves the state unchanged. On establishment the session transitions to
// open, resets the retry counter, and emits the session-start control message.
//
// ctx bounds the dial and remains the session's lifetime context for
// subsequent reads, writes, and reconnects.
func (s *Session) Connect(ctx context.Context, target string) error {
	if target == "" {
		return ErrMissingTarget
	}

	s.mu.Lock()
	switch s.state {
	case StateIdle, StateClosed, StateError:
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("stream: connect while %s", st)
	}
	s.target = target
	s.ctx = ctx
	s.intentional = false
	s.state = StateConnecting
	s.mu.Unlock()
	s.emitState(StateConnecting)

	return s.dial(ctx)
}

// dial performs one transport establishment attempt and finishes the
// connecting → open (or → error) transition.
func (s *Session) dial(ctx context.Context) error {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx, target)
	if err != nil {
		s.handleDialError(fmt.Errorf("stream: dial %s: %w", target, err))
		return err
	}

	s.mu.Lock()
	if s.intentional {
		// Disconnect raced the dial; discard the fresh transport.
		s.state = StateClosed
		s.mu.Unlock()
		_ = conn.Close(StatusNormalClosure, "session end")
		s.emitState(StateClosed)
		return nil
	}
	s.conn = conn
	s.gen++
	gen := s.gen
	s.retry.Attempt = 0
	s.state = StateOpen
	s.mu.Unlock()

	s.emitState(StateOpen)
	s.emit(Message{Kind: KindOpen})

	// Session-start goes on the wire immediately; a write failure here will
	// surface through the read loop as a transport close.
	if data, err := json.Marshal(StartMessage()); err == nil {
		s.writeMu.Lock()
		_ = conn.Write(ctx, MessageText, data)
		s.writeMu.Unlock()
	}

	go s.readLoop(gen, conn)
	return nil
}

// handleDialError is the connecting → error transition.
func (s *Session) handleDialError(err error) {
	s.mu.Lock()
	if s.intentional {
		s.state = StateClosed
		s.mu.Unlock()
		s.emitState(StateClosed)
		return
	}
	s.state = StateError
	s.mu.Unlock()

	s.emitState(StateError)
	s.emit(Message{Kind: KindError, Err: err})
	s.scheduleReconnect()
}

// readLoop forwards inbound messages until the transport fails. gen guards
// against a stale loop observing a newer connection's state.
func (s *Session) readLoop(gen int, conn Conn) {
	for {
		typ, data, err := conn.Read(s.ctx)
		if err != nil {
			s.handleTransportClose(gen, err)
			return
		}
		s.emit(classifyInbound(typ, data))
	}
}

// handleTransportClose is the → closed transition for both planned and
// unplanned closes.
func (s *Session) handleTransportClose(gen int, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	planned := s.intentional || s.state == StateClosing
	s.state = StateClosed
	s.mu.Unlock()

	code, reason := closeInfo(err)
	s.emitState(StateClosed)
	s.emit(Message{Kind: KindClose, Code: code, Reason: reason})

	if planned {
		return
	}
	slog.Warn("stream: unplanned close", "code", code, "reason", reason, "err", err)
	s.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer or surfaces terminal failure once
// the ceiling is reached.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.noReconnect || s.intentional {
		s.mu.Unlock()
		return
	}
	if s.retry.Exhausted() {
		retries := s.retry.MaxRetries
		s.mu.Unlock()
		slog.Error("stream: giving up after max retries", "max_retries", retries)
		if s.handlers.OnTerminal != nil {
			s.handlers.OnTerminal(fmt.Errorf("%w after %d attempts", ErrConnectionLost, retries))
		}
		return
	}

	delay := BackoffDelay(s.retry.Attempt, s.retry.BaseDelay, s.maxDelay) +
		jitter(s.rng, s.retry.BaseDelay)
	attempt := s.retry.Attempt
	s.retry.Attempt++
	s.retryTimer = time.AfterFunc(delay, s.redial)
	s.mu.Unlock()

	slog.Info("stream: reconnect scheduled",
		"attempt", attempt,
		"delay", delay,
	)
}

// redial re-enters connecting when the retry timer fires.
func (s *Session) redial() {
	s.mu.Lock()
	if s.intentional {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	ctx := s.ctx
	s.mu.Unlock()

	s.emitState(StateConnecting)
	_ = s.dial(ctx)
}

// Disconnect ends the session intentionally: it cancels any pending
// reconnect, sends the session-end control message best-effort, and requests
// a normal transport close. Reconnection is permanently disabled for this
// session value. Safe to call multiple times.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.intentional = true

	var conn Conn
	switch s.state {
	case StateOpen, StateConnecting, StateClosing:
		s.state = StateClosing
		conn = s.conn
	default:
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.emitState(StateClosing)

	if conn == nil {
		// No live transport (mid-retry or mid-dial); close out directly.
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		s.emitState(StateClosed)
		return
	}

	// Best-effort end message; a failure to send it is swallowed.
	if data, err := json.Marshal(EndMessage()); err == nil {
		s.writeMu.Lock()
		_ = conn.Write(ctx, MessageText, data)
		s.writeMu.Unlock()
	}
	_ = conn.Close(StatusNormalClosure, "session end")
}

// SendText sends a text payload. Returns false, producing no wire traffic,
// when the session is not open.
func (s *Session) SendText(payload string) bool {
	return s.send(MessageText, []byte(payload))
}

// SendJSON marshals v and sends it as a text message. Returns false when the
// session is not open or v cannot be marshalled.
func (s *Session) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return s.send(MessageText, data)
}

// SendBinary sends a binary payload. Returns false when the session is not
// open.
func (s *Session) SendBinary(data []byte) bool {
	return s.send(MessageBinary, data)
}

// send performs the open-state check and the write under writeMu so that
// wire order matches caller order. Sends never queue: a session that is
// closed or reconnecting drops the payload.
func (s *Session) send(typ MessageType, data []byte) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	ctx := s.ctx
	s.mu.Unlock()

	if !open || conn == nil {
		return false
	}
	return conn.Write(ctx, typ, data) == nil
}

func (s *Session) emit(msg Message) {
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(msg)
	}
}

func (s *Session) emitState(st State) {
	if s.handlers.OnState != nil {
		s.handlers.OnState(st)
	}
}
