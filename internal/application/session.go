package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"grovepi-bridge/internal/domain"
)

type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnected    SessionState = "connected"
)

// DefaultReconnectInterval is the pause before every reconnect attempt.
const DefaultReconnectInterval = 5 * time.Second

// Session owns the transport connection and its reconnect loop. It is the
// Outbound sink handed to the dispatcher.
type Session struct {
	dialer   Dialer
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	conn    Conn
	state   SessionState
	retries int
}

type SessionOption func(*Session)

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(s *Session) {
		s.sleep = sleep
	}
}

func WithObserver(observer Observer) SessionOption {
	return func(s *Session) {
		s.observer = observer
	}
}

func NewSession(dialer Dialer, interval time.Duration, logger *slog.Logger, opts ...SessionOption) *Session {
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	s := &Session{
		dialer:   dialer,
		interval: interval,
		sleep:    sleepContext,
		observer: NoopObserver{},
		logger:   logger.With("transport", dialer.Name()),
		state:    StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Retries is the number of reconnect attempts since the last successful connect.
func (s *Session) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// Connect dials the transport and announces READY. Both must succeed for the
// session to count as connected.
func (s *Session) Connect(ctx context.Context) error {
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.dialer.Name(), err)
	}

	err = conn.Broadcast(ctx, domain.EventReady)
	s.observer.Broadcast("event", err)
	if err != nil {
		conn.Close()
		return fmt.Errorf("announcing ready: %w", err)
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.state = StateConnected
	s.retries = 0
	s.mu.Unlock()

	s.observer.SessionConnected(true)
	return nil
}

// Reconnect retries Connect until it succeeds or ctx is done, sleeping the
// fixed interval before every attempt. It never gives up on its own.
func (s *Session) Reconnect(ctx context.Context) error {
	for {
		s.logger.Warn("transport connection error, retrying", "interval", s.interval, "attempt", s.Retries()+1)

		if err := s.sleep(ctx, s.interval); err != nil {
			return err
		}

		s.mu.Lock()
		s.retries++
		s.mu.Unlock()
		s.observer.ReconnectAttempt()

		if err := s.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("transport not available", "error", err)
			continue
		}

		s.logger.Info("connected to transport")
		return nil
	}
}

// ReceiveNext blocks until the next broadcast arrives and returns its text.
// Sensor-update echoes and other frame types are consumed silently.
func (s *Session) ReceiveNext(ctx context.Context) (string, error) {
	conn, err := s.current()
	if err != nil {
		return "", err
	}

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.dropOnConnectionError(conn, err)
			return "", err
		}

		if msg.Type != domain.MessageBroadcast {
			s.logger.Debug("skipping frame", "type", msg.Type)
			continue
		}

		return msg.Broadcast, nil
	}
}

func (s *Session) BroadcastEvent(ctx context.Context, name string) error {
	conn, err := s.current()
	if err != nil {
		s.observer.Broadcast("event", err)
		return err
	}

	err = conn.Broadcast(ctx, name)
	s.observer.Broadcast("event", err)
	if err != nil {
		s.dropOnConnectionError(conn, err)
		return fmt.Errorf("broadcasting %q: %w", name, err)
	}
	return nil
}

func (s *Session) BroadcastValues(ctx context.Context, values domain.Values) error {
	conn, err := s.current()
	if err != nil {
		s.observer.Broadcast("values", err)
		return err
	}

	err = conn.SensorUpdate(ctx, values)
	s.observer.Broadcast("values", err)
	if err != nil {
		s.dropOnConnectionError(conn, err)
		return fmt.Errorf("sending sensor update: %w", err)
	}
	return nil
}

// Close releases the current connection, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.state = StateDisconnected
	return err
}

func (s *Session) current() (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, domain.ErrNotConnected
	}
	return s.conn, nil
}

func (s *Session) dropOnConnectionError(conn Conn, err error) {
	if !domain.IsConnectionError(err) {
		return
	}

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	conn.Close()
	s.observer.SessionConnected(false)
	s.logger.Warn("transport connection lost", "error", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
