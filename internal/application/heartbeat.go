package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultHeartbeatInterval is the idle period of the heartbeat loop.
const DefaultHeartbeatInterval = 200 * time.Millisecond

// Liveness is the process-wide running flag. The bridge sets it on the first
// START and clears it only at shutdown.
type Liveness struct {
	running atomic.Bool
}

func (l *Liveness) Set()          { l.running.Store(true) }
func (l *Liveness) Clear()        { l.running.Store(false) }
func (l *Liveness) Running() bool { return l.running.Load() }

// Heartbeat is a background placeholder task for future keepalive logic. It
// runs at most once per process and does nothing but idle while the liveness
// flag is set.
type Heartbeat struct {
	interval time.Duration
	live     *Liveness
	logger   *slog.Logger

	once sync.Once
	done chan struct{}
}

func NewHeartbeat(interval time.Duration, live *Liveness, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		interval: interval,
		live:     live,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the task on the first call and reports whether it did.
func (h *Heartbeat) Start(ctx context.Context) bool {
	started := false
	h.once.Do(func() {
		started = true
		go h.run(ctx)
	})
	return started
}

// Done is closed once the task has exited.
func (h *Heartbeat) Done() <-chan struct{} {
	return h.done
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)

	h.logger.Debug("heartbeat started", "interval", h.interval)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for h.live.Running() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	h.logger.Debug("heartbeat stopped")
}
