package application

import (
	"context"
	"fmt"
	"log/slog"

	"grovepi-bridge/internal/domain"
)

// Bridge is the process loop: receive one message, classify it, dispatch it.
// It owns the liveness flag.
type Bridge struct {
	session    *Session
	router     *Router
	dispatcher *Dispatcher
	heartbeat  *Heartbeat
	live       *Liveness
	observer   Observer
	logger     *slog.Logger
}

func NewBridge(
	session *Session,
	router *Router,
	dispatcher *Dispatcher,
	heartbeat *Heartbeat,
	live *Liveness,
	observer Observer,
	logger *slog.Logger,
) *Bridge {
	return &Bridge{
		session:    session,
		router:     router,
		dispatcher: dispatcher,
		heartbeat:  heartbeat,
		live:       live,
		observer:   observer,
		logger:     logger,
	}
}

// Run processes messages until ctx is cancelled, which is the only clean way
// out. Transport failures go through the reconnect loop; any other error is
// logged and the next message is read.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.session.Connect(ctx); err != nil {
		b.logger.Warn("transport not available at startup", "error", err)
	} else {
		b.logger.Info("connected to transport")
	}
	defer b.session.Close()

	for {
		select {
		case <-ctx.Done():
			b.live.Clear()
			b.logger.Info("disconnected from transport")
			return nil
		default:
			if err := b.processOneMessage(ctx); err != nil {
				b.handleError(ctx, err)
			}
		}
	}
}

func (b *Bridge) processOneMessage(ctx context.Context) error {
	msg, err := b.session.ReceiveNext(ctx)
	if err != nil {
		return fmt.Errorf("receiving message: %w", err)
	}

	b.logger.Debug("received", "message", msg)

	cmd := b.router.Classify(msg)
	b.observer.MessageClassified(cmd.Kind)

	switch cmd.Kind {
	case domain.KindSetup:
		b.logger.Info("setting up sensors done")
		return nil

	case domain.KindStart:
		b.live.Set()
		if b.heartbeat.Start(ctx) {
			b.logger.Debug("heartbeat launched")
		}
		b.logger.Info("service started")
		return nil

	case domain.KindUnrecognized:
		b.logger.Debug("ignoring", "message", msg)
		return nil
	}

	if err := b.dispatcher.Dispatch(ctx, cmd); err != nil {
		return fmt.Errorf("handling %q: %w", msg, err)
	}
	return nil
}

func (b *Bridge) handleError(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil:
		// Interrupted; the loop exits on its next check.
	case domain.IsConnectionError(err):
		b.logger.Warn("transport connection error", "error", err)
		if err := b.session.Reconnect(ctx); err != nil && ctx.Err() == nil {
			b.logger.Error("reconnecting", "error", err)
		}
	default:
		b.logger.Error("processing message", "error", err)
	}
}
