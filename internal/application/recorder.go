package application

import (
	"context"

	"grovepi-bridge/internal/domain"
)

// ValueRecorder keeps a copy of every value update sent to the remote side.
type ValueRecorder interface {
	Record(ctx context.Context, values domain.Values) error
}

type NoopRecorder struct{}

func (n *NoopRecorder) Record(_ context.Context, _ domain.Values) error {
	return nil
}
