package listener

import (
	"context"
	"net/http"
)

// State is the lifecycle state of one listener.
//
//	Unstarted -> Binding -> Listening -> Closing -> Closed
//
// Failed is terminal, reachable from Binding (bind error) or Listening
// (unexpected runtime fault).
type State int32

const (
	StateUnstarted State = iota
	StateBinding
	StateListening
	StateClosing
	StateClosed
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateBinding:
		return "binding"
	case StateListening:
		return "listening"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Listener is a bound network endpoint accepting connections for one
// transport.
type Listener interface {
	// Start binds the address and begins accepting connections.
	Start(ctx context.Context) error
	// Stop gracefully shuts down: stop accepting, drain in-flight
	// requests, release the port.
	Stop(ctx context.Context) error
	// Addr returns the listener address.
	Addr() string
	// State returns the current lifecycle state.
	State() State
	// Errors delivers runtime serve faults after a successful Start.
	Errors() <-chan error
}

// Handler processes incoming requests.
type Handler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
