package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", IdleState.String())
	require.Equal(t, "handshake", HandshakeState.String())
	require.Equal(t, "sending", SendingState.String())
	require.Equal(t, "receiving", ReceivingState.String())
	require.Equal(t, "listening", ListeningState.String())
	require.Equal(t, "closed", ClosedState.String())
	require.Equal(t, "unknown", State(99).String())
}

func TestStateMgrTransitions(t *testing.T) {
	m := newStateMgr()
	require.Equal(t, IdleState, m.State())

	require.True(t, m.Set(HandshakeState))
	require.Equal(t, HandshakeState, m.State())

	require.False(t, m.Set(HandshakeState), "same-state transition is rejected")

	require.True(t, m.Set(ClosedState))
	require.False(t, m.Set(ListeningState), "closed is terminal")
	require.Equal(t, ClosedState, m.State())
}

func TestStateMgrHandlers(t *testing.T) {
	m := newStateMgr()

	var mu sync.Mutex
	type transition struct{ prev, next State }
	var seen []transition

	m.AddHandler(func(prev, next State) {
		mu.Lock()
		seen = append(seen, transition{prev, next})
		mu.Unlock()
	})

	m.Set(HandshakeState)
	m.Set(SendingState)
	m.Set(SendingState) // rejected, no notification
	m.Set(ClosedState)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []transition{
		{IdleState, HandshakeState},
		{HandshakeState, SendingState},
		{SendingState, ClosedState},
	}, seen)
}

func TestStateMgrWaitState(t *testing.T) {
	m := newStateMgr()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- m.WaitState(ctx, ListeningState)
	}()

	m.Set(HandshakeState)
	m.Set(ListeningState)

	require.NoError(t, <-done)
}

func TestStateMgrWaitStateClosed(t *testing.T) {
	m := newStateMgr()

	done := make(chan error, 1)
	go func() {
		done <- m.WaitState(context.Background(), ListeningState)
	}()

	m.Set(ClosedState)

	require.ErrorIs(t, <-done, ErrSessionClosed)
}

func TestStateMgrWaitStateContext(t *testing.T) {
	m := newStateMgr()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, m.WaitState(ctx, ListeningState), context.Canceled)
}
