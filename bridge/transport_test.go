package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
	"github.com/stretchr/testify/require"
)

func startTransport(t *testing.T, ch Channel, opts ...SessionOption) *transport {
	t.Helper()

	cfg := testConfig(t, ModeBoth, opts...)
	tr := newTransport(ch, cfg, testLogger(), &SessionMetrics{})

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for tr.readLoopIteration(ctx) {
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = ch.Close()
	})

	return tr
}

func TestTransportSendAndConfirmAck(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch)

	go func() {
		for ch.writeCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		ch.inject(frame.NewAck(7))
	}()

	f := &frame.Frame{Type: frame.TypeData, Seq: 7, Payload: []byte("abcd")}
	require.NoError(t, tr.sendAndConfirm(context.Background(), f))

	require.Equal(t, uint64(1), tr.metrics.FrameSendCount.Load())
	require.Equal(t, uint64(0), tr.metrics.FrameRetryCount.Load())
	require.Equal(t, 1, ch.writeCount())
}

func TestTransportNakTriggersIdenticalRetransmit(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch)

	go func() {
		for ch.writeCount() < 1 {
			time.Sleep(time.Millisecond)
		}
		ch.inject(frame.NewNak(6))

		for ch.writeCount() < 2 {
			time.Sleep(time.Millisecond)
		}
		ch.inject(frame.NewAck(7))
	}()

	f := &frame.Frame{Type: frame.TypeData, Seq: 7, Payload: []byte("abcd")}
	require.NoError(t, tr.sendAndConfirm(context.Background(), f))

	require.Equal(t, uint64(1), tr.metrics.FrameRetryCount.Load())

	ch.mu.Lock()
	defer ch.mu.Unlock()
	require.Len(t, ch.writes, 2)
	require.Equal(t, ch.writes[0], ch.writes[1], "retransmission must be byte-identical")
}

func TestTransportRetriesExhausted(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch,
		WithAckTimeout(MinAckTimeout), WithRetryLimit(2))

	f := &frame.Frame{Type: frame.TypeData, Seq: 1, Payload: []byte("abcd")}
	err := tr.sendAndConfirm(context.Background(), f)

	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, 3, ch.writeCount(), "initial attempt plus two retries")
	require.Equal(t, uint64(3), tr.metrics.FrameRetryCount.Load())

	// exhaustion is fatal to the frame, not the channel
	select {
	case <-tr.closed:
		t.Fatal("transport must stay alive after retry exhaustion")
	default:
	}
}

func TestTransportCorruptInputNaksLastAccepted(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch)
	tr.setLastAccepted(5)

	corrupt := (&frame.Frame{Type: frame.TypeData, Seq: 9, Payload: []byte("abcd")}).Pack()
	corrupt[len(corrupt)-1] ^= 0xFF
	ch.injectRaw(corrupt)

	ch.waitWrites(t, 1)

	frames := ch.writtenFrames(t)
	require.Len(t, frames, 1)
	require.Equal(t, frame.TypeNak, frames[0].Type)
	require.Equal(t, uint32(5), frames[0].Seq)
	require.Equal(t, uint64(1), tr.metrics.FrameErrCount.Load())
}

func TestTransportRecvFrameDelivers(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch)

	ch.inject(&frame.Frame{Type: frame.TypeFileEnd, Seq: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f, err := tr.recvFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, frame.TypeFileEnd, f.Type)
	require.Equal(t, uint32(3), f.Seq)
}

func TestTransportAckNotDeliveredToReceiver(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch)

	ch.inject(frame.NewAck(1))
	ch.inject(&frame.Frame{Type: frame.TypeHello, Seq: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f, err := tr.recvFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, frame.TypeHello, f.Type, "acks are routed to waiters, not the receive queue")
}

func TestTransportRecvFrameContextCancelled(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.recvFrame(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTransportChannelFailureAborts(t *testing.T) {
	ch := newFakeChannel()
	tr := startTransport(t, ch)

	require.NoError(t, ch.Close())

	f := &frame.Frame{Type: frame.TypeData, Seq: 1, Payload: []byte("abcd")}
	err := tr.sendAndConfirm(context.Background(), f)
	require.ErrorIs(t, err, ErrChannelClosed)

	_, err = tr.recvFrame(context.Background())
	require.ErrorIs(t, err, ErrChannelClosed)
}
