package scratch

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"grovepi-bridge/internal/application"
	"grovepi-bridge/internal/domain"
)

const (
	DefaultAddr        = "127.0.0.1:42001"
	DefaultDialTimeout = 5 * time.Second
)

// Dialer connects to the Scratch 1.4 remote sensor server.
type Dialer struct {
	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

func NewDialer(addr string, timeout time.Duration, logger *slog.Logger) *Dialer {
	if addr == "" {
		addr = DefaultAddr
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &Dialer{
		addr:    addr,
		timeout: timeout,
		logger:  logger.With("component", "scratch"),
	}
}

func (d *Dialer) Name() string {
	return "scratch"
}

func (d *Dialer) Dial(ctx context.Context) (application.Conn, error) {
	nd := net.Dialer{Timeout: d.timeout}
	c, err := nd.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", d.addr, err)
	}
	d.logger.Debug("connected", "addr", d.addr)
	return NewConn(c, d.logger), nil
}

// Conn is one remote sensor connection. A reader goroutine decodes frames
// into a channel so Receive can be cancelled.
type Conn struct {
	conn   net.Conn
	logger *slog.Logger

	frames   chan domain.Message
	readDone chan struct{}
	readErr  error

	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn takes ownership of c and starts reading from it.
func NewConn(c net.Conn, logger *slog.Logger) *Conn {
	conn := &Conn{
		conn:     c,
		logger:   logger,
		frames:   make(chan domain.Message, 16),
		readDone: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	go conn.readLoop()
	return conn
}

func (c *Conn) readLoop() {
	defer close(c.readDone)

	r := bufio.NewReader(c.conn)
	for {
		body, err := ReadFrame(r)
		if err != nil {
			c.readErr = c.linkError(err)
			return
		}

		msg, err := ParseMessage(body)
		if err != nil {
			c.logger.Debug("skipping malformed frame", "body", body, "error", err)
			continue
		}

		select {
		case c.frames <- msg:
		case <-c.closed:
			c.readErr = domain.ErrNotConnected
			return
		}
	}
}

func (c *Conn) Receive(ctx context.Context) (domain.Message, error) {
	select {
	case <-c.closed:
		return domain.Message{}, domain.ErrNotConnected
	default:
	}

	select {
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case msg := <-c.frames:
		return msg, nil
	case <-c.readDone:
		// Frames queued before the link failed are still delivered.
		select {
		case msg := <-c.frames:
			return msg, nil
		default:
			return domain.Message{}, c.readErr
		}
	}
}

func (c *Conn) Broadcast(ctx context.Context, name string) error {
	return c.write(ctx, EncodeBroadcast(name))
}

func (c *Conn) SensorUpdate(ctx context.Context, values domain.Values) error {
	return c.write(ctx, EncodeSensorUpdate(values))
}

func (c *Conn) write(ctx context.Context, body string) error {
	select {
	case <-c.closed:
		return domain.ErrNotConnected
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// A zero deadline clears any earlier one.
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return c.linkError(err)
	}

	if _, err := c.conn.Write(AppendFrame(nil, body)); err != nil {
		return c.linkError(err)
	}
	return nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) linkError(err error) error {
	select {
	case <-c.closed:
		return domain.ErrNotConnected
	default:
	}
	return fmt.Errorf("%w: %v", domain.ErrConnectionDropped, err)
}
