package application

import (
	"context"

	"grovepi-bridge/internal/domain"
)

// Dialer opens a connection to the remote runtime.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	Name() string
}

// Conn is one live transport connection. Receive blocks until a frame arrives
// or ctx is done. Implementations report a lost link with
// domain.ErrConnectionDropped and use after Close with domain.ErrNotConnected.
type Conn interface {
	Receive(ctx context.Context) (domain.Message, error)
	Broadcast(ctx context.Context, name string) error
	SensorUpdate(ctx context.Context, values domain.Values) error
	Close() error
}

// Outbound is the write side the dispatcher reports through.
type Outbound interface {
	BroadcastEvent(ctx context.Context, name string) error
	BroadcastValues(ctx context.Context, values domain.Values) error
}
