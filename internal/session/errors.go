package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionActive    = errors.New("session already active")
	ErrNoSession        = errors.New("no active session")
	ErrNotHost          = errors.New("recording is host-only")
	ErrServer           = errors.New("signaling server error")
	ErrTransportClosed  = errors.New("signaling transport closed")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
	ErrNoVideoSender    = errors.New("no video sender")
)

// OpError annotates a failure with the operation that produced it and,
// where relevant, the peer it concerns.
type OpError struct {
	Op      string
	Err     error
	Details string
}

func (e *OpError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

func wrapError(op string, err error, details string) *OpError {
	return &OpError{Op: op, Err: err, Details: details}
}
