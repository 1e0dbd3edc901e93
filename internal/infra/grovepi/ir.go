package grovepi

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
)

const DefaultLircSocket = "/var/run/lirc/lircd"

const irQueueSize = 32

// IRReceiver listens to lircd broadcasts and queues button names. The socket
// is opened on the first read, like the lirc client library does.
type IRReceiver struct {
	socket string
	logger *slog.Logger

	mu    sync.Mutex
	conn  net.Conn
	codes chan string
}

func NewIRReceiver(socket string, logger *slog.Logger) *IRReceiver {
	if socket == "" {
		socket = DefaultLircSocket
	}
	return &IRReceiver{
		socket: socket,
		logger: logger.With("component", "lirc"),
		codes:  make(chan string, irQueueSize),
	}
}

// NextCode pops one queued button name without blocking.
func (r *IRReceiver) NextCode(ctx context.Context) (string, bool, error) {
	if err := r.ensureConnected(ctx); err != nil {
		return "", false, err
	}

	select {
	case code := <-r.codes:
		return code, true, nil
	default:
		return "", false, nil
	}
}

func (r *IRReceiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (r *IRReceiver) ensureConnected(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", r.socket)
	if err != nil {
		return fmt.Errorf("connecting to lircd at %s: %w", r.socket, err)
	}
	r.conn = conn
	go r.readLoop(conn)
	return nil
}

// readLoop parses "<code> <repeat> <button> <remote>" lines. Key repeats are
// dropped so a held button yields one code.
func (r *IRReceiver) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 || fields[1] != "00" {
			continue
		}
		select {
		case r.codes <- fields[2]:
		default:
			r.logger.Debug("ir queue full, dropping code", "code", fields[2])
		}
	}

	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()
	conn.Close()

	if err := scanner.Err(); err != nil {
		r.logger.Warn("lircd connection lost", "error", err)
	}
}
