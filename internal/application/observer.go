package application

import "grovepi-bridge/internal/domain"

// Observer receives bridge events for metrics.
type Observer interface {
	MessageClassified(kind domain.Kind)
	Dispatched(kind domain.Kind, err error)
	Broadcast(kind string, err error)
	ReconnectAttempt()
	SessionConnected(connected bool)
}

type NoopObserver struct{}

func (NoopObserver) MessageClassified(domain.Kind) {}
func (NoopObserver) Dispatched(domain.Kind, error) {}
func (NoopObserver) Broadcast(string, error)       {}
func (NoopObserver) ReconnectAttempt()             {}
func (NoopObserver) SessionConnected(bool)         {}
