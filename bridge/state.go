package bridge

import (
	"context"
	"sync"
	"sync/atomic"
)

// State represents the lifecycle stage of a session.
type State uint32

// Session states. A session starts Idle, performs the Hello handshake, then
// runs its sub-protocols (Sending, Receiving, or Listening between files)
// until it reaches Closed. Closed is terminal.
const (
	IdleState State = iota
	HandshakeState
	SendingState
	ReceivingState
	ListeningState
	ClosedState
)

// IsClosed returns true if the state is the terminal Closed state.
func (s State) IsClosed() bool { return s == ClosedState }

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case IdleState:
		return "idle"
	case HandshakeState:
		return "handshake"
	case SendingState:
		return "sending"
	case ReceivingState:
		return "receiving"
	case ListeningState:
		return "listening"
	case ClosedState:
		return "closed"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked when the session state changes.
//
// Handlers are invoked synchronously on the transition path and must not
// block.
type StateChangeHandler func(prev State, next State)

// stateMgr manages session state transitions and change notification.
//
// In Both mode the send and receive sub-protocols both drive transitions;
// the manager records the most recent one. Once Closed, no further
// transitions are accepted.
type stateMgr struct {
	state    atomic.Uint32
	mu       sync.Mutex
	handlers []StateChangeHandler
	changed  chan struct{}
}

func newStateMgr() *stateMgr {
	return &stateMgr{changed: make(chan struct{})}
}

// State returns the current session state.
func (m *stateMgr) State() State {
	return State(m.state.Load())
}

// AddHandler registers one or more state change handlers.
func (m *stateMgr) AddHandler(handlers ...StateChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, handlers...)
}

// Set transitions to the given state, returning false if the transition was
// rejected (already in that state, or the session is Closed).
func (m *stateMgr) Set(next State) bool {
	m.mu.Lock()

	prev := State(m.state.Load())
	if prev == next || prev == ClosedState {
		m.mu.Unlock()

		return false
	}

	m.state.Store(uint32(next))

	// Wake all WaitState callers; they re-check under the new state.
	close(m.changed)
	m.changed = make(chan struct{})

	handlers := make([]StateChangeHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		h(prev, next)
	}

	return true
}

// WaitState blocks until the session reaches the given state or the context
// is done.
func (m *stateMgr) WaitState(ctx context.Context, want State) error {
	for {
		m.mu.Lock()
		cur := State(m.state.Load())
		ch := m.changed
		m.mu.Unlock()

		if cur == want {
			return nil
		}
		if cur == ClosedState {
			return ErrSessionClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
