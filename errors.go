package socketmode

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrClosed            = errors.New("socketmode: client closed")
	ErrNotOpen           = errors.New("socketmode: connection not open")
	ErrConnectInProgress = errors.New("socketmode: connect already in progress")
	ErrNoOpener          = errors.New("socketmode: no connection opener held")
	ErrInvalidUTF8       = errors.New("socketmode: message is not valid UTF-8")
	ErrNotObject         = errors.New("socketmode: message is not a JSON object")

	errTransportClosed = errors.New("socketmode: transport closed")
)

// ConnectionError represents a connection-level error.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("socketmode: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("socketmode: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError represents an error while preparing an outbound message.
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("socketmode: send %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// APIError is returned when the remote API answers with ok=false.
type APIError struct {
	Method string
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("socketmode: %s: error from slack: %s", e.Method, e.Reason)
}
