package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("transport not connected")
	ErrConnectionDropped = errors.New("transport connection dropped")
)

// IsConnectionError reports whether err means the transport is gone and the
// session has to reconnect.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionDropped)
}

// ParseError is returned when a recognized prefix carries a malformed parameter.
type ParseError struct {
	Message string
	Field   string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing %s of %q: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("parsing %s of %q", e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
