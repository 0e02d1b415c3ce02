package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/internal/pool"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/logger"
)

// readBufSize is the size of the read loop's scratch buffer. Serial devices
// deliver bytes in small bursts; one buffer per transport is reused across
// reads.
const readBufSize = 512

// recvQueueSize is the capacity of the receive dispatch channel between the
// read loop and the receiver sub-protocol.
const recvQueueSize = 16

// transport owns the byte channel for a session: a single read loop is the
// sole reader, and all writes funnel through one mutex, consistent with the
// half-duplex link shared by both sub-protocols in Both mode.
//
// Inbound frames are dispatched by type: Ack/Nak to the waiter registered
// for that sequence number, everything else to the receive channel consumed
// by the receiver sub-protocol.
type transport struct {
	ch      Channel
	cfg     *SessionConfig
	logger  logger.Logger
	metrics *SessionMetrics

	// writeMu serializes all writes to the shared channel.
	writeMu sync.Mutex

	deframer *frame.Deframer
	readBuf  []byte

	// ackWaiters maps an in-flight frame's sequence number to the channel
	// its sender is blocked on. Naks are fanned out to all waiters because
	// they carry the last-good sequence, not the rejected one.
	ackWaiters *xsync.MapOf[uint32, chan *frame.Frame]

	recvChan chan *frame.Frame

	// lastAccepted mirrors the receiver sub-protocol's last accepted
	// sequence so the read loop can Nak corrupt input with it.
	lastAccepted atomic.Uint32

	// closed signals channel failure; closeErr holds the cause.
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newTransport(ch Channel, cfg *SessionConfig, l logger.Logger, metrics *SessionMetrics) *transport {
	return &transport{
		ch:         ch,
		cfg:        cfg,
		logger:     l,
		metrics:    metrics,
		deframer:   frame.NewDeframer(),
		readBuf:    make([]byte, readBufSize),
		ackWaiters: xsync.NewMapOf[uint32, chan *frame.Frame](),
		recvChan:   make(chan *frame.Frame, recvQueueSize),
		closed:     make(chan struct{}),
	}
}

// fail records the first channel-level error and signals session shutdown.
func (t *transport) fail(err error) {
	t.closeOnce.Do(func() {
		t.closeErr = fmt.Errorf("%w: %w", ErrChannelClosed, err)
		close(t.closed)
	})
}

// failErr returns the channel-level error after closed is signalled.
func (t *transport) failErr() error {
	select {
	case <-t.closed:
		return t.closeErr
	default:
		return nil
	}
}

// setLastAccepted is called by the receiver sub-protocol after accepting a
// frame, so corrupt-input Naks reference the right sequence.
func (t *transport) setLastAccepted(seq uint32) {
	t.lastAccepted.Store(seq)
}

// --- Read loop ---

// readLoopIteration performs one iteration of the read loop: a blocking
// channel read, then deframing and dispatch of every complete frame in the
// buffer. Returns false when the channel has failed.
func (t *transport) readLoopIteration(ctx context.Context) bool {
	n, err := t.ch.Read(t.readBuf)
	if n > 0 {
		t.deframer.Feed(t.readBuf[:n])
		t.drainDeframer(ctx)
	}

	if err != nil {
		select {
		case <-ctx.Done():
			// Channel closed as part of session shutdown.
		default:
			t.logger.Error("bridge: channel read failed", "error", err)
		}
		t.fail(err)

		return false
	}

	return true
}

// drainDeframer decodes and dispatches every complete frame currently
// buffered. A corrupt frame is never accepted: the remote is Nak'd with the
// last known-good sequence and the deframer has already resynchronized.
func (t *transport) drainDeframer(ctx context.Context) {
	for {
		f, err := t.deframer.Next()
		if err != nil {
			if errors.Is(err, frame.ErrIncomplete) {
				return
			}

			t.metrics.incFrameErrCount()
			t.logger.Debug("bridge: discarded corrupt input", "error", err)

			if nakErr := t.writeFrame(frame.NewNak(t.lastAccepted.Load()).Pack()); nakErr != nil {
				t.fail(nakErr)

				return
			}

			continue
		}

		t.metrics.incFrameRecvCount()
		t.dispatch(ctx, f)
	}
}

// dispatch routes a decoded frame to the sub-protocol awaiting it.
func (t *transport) dispatch(ctx context.Context, f *frame.Frame) {
	switch f.Type {
	case frame.TypeAck:
		ch, ok := t.ackWaiters.Load(f.Seq)
		if !ok {
			// Late or duplicate Ack after its waiter gave up; harmless.
			t.logger.Debug("bridge: ack with no waiter", "seq", f.Seq)

			return
		}

		select {
		case ch <- f:
		default:
		}

	case frame.TypeNak:
		// A Nak carries the remote's last-good sequence, not the rejected
		// one. At most one frame is in flight per direction, so fan out.
		delivered := false

		t.ackWaiters.Range(func(_ uint32, ch chan *frame.Frame) bool {
			select {
			case ch <- f:
				delivered = true
			default:
			}

			return true
		})

		if !delivered {
			t.logger.Debug("bridge: nak with no waiter", "lastGoodSeq", f.Seq)
		}

	default:
		select {
		case t.recvChan <- f:
		case <-ctx.Done():
		default:
			// No receiver sub-protocol is consuming (send-only mode) or it
			// has stalled; drop rather than block the read loop. The remote
			// retransmits.
			t.logger.Debug("bridge: dropped inbound frame, receive queue full",
				"type", f.Type.String(), "seq", f.Seq)
		}
	}
}

// recvFrame returns the next inbound non-acknowledgement frame for the
// receiver sub-protocol.
func (t *transport) recvFrame(ctx context.Context) (*frame.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, t.closeErr
	case f := <-t.recvChan:
		return f, nil
	}
}

// --- Write path ---

// writeFrame writes all of wire to the channel under the write lock.
// Frame boundaries are never interleaved between sub-protocols.
func (t *transport) writeFrame(wire []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for written := 0; written < len(wire); {
		n, err := t.ch.Write(wire[written:])
		written += n

		if err != nil {
			return err
		}
	}

	return nil
}

// sendControl sends an unconfirmed control frame (Ack or Nak).
func (t *transport) sendControl(f *frame.Frame) error {
	if err := t.writeFrame(f.Pack()); err != nil {
		t.fail(err)

		return t.closeErr
	}

	return nil
}

// --- Retry controller ---

// sendResult classifies the outcome of a single send attempt so the retry
// loop can decide whether to retry or abort.
type sendResult int

const (
	sendOK    sendResult = iota // frame sent and Ack'd
	sendRetry                   // retryable failure (ack timeout, Nak)
	sendAbort                   // non-retryable failure (channel error, context cancelled)
)

// sendAndConfirm transmits a frame and blocks until it is confirmed or has
// failed permanently.
//
// Each attempt writes the identical frame bytes, so the receiver can
// deduplicate retransmissions by sequence number. On Nak or ack timeout the
// frame is retransmitted up to the configured retry limit; exhaustion
// returns ErrRetriesExhausted, which is fatal to the current file task but
// not the session. Channel errors and context cancellation abort
// immediately.
func (t *transport) sendAndConfirm(ctx context.Context, f *frame.Frame) error {
	// Pack once: retransmissions are byte-identical.
	wire := f.Pack()

	retry := 0

	for retry <= t.cfg.retryLimit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := t.sendAttempt(ctx, f.Seq, wire)

		switch result {
		case sendOK:
			t.metrics.incFrameSendCount()

			return nil

		case sendRetry:
			retry++
			t.metrics.incFrameRetryCount()
			t.logger.Debug("bridge: frame retry",
				"type", f.Type.String(),
				"seq", f.Seq,
				"retry", retry,
				"maxRetry", t.cfg.retryLimit,
				"error", err,
			)

			continue

		case sendAbort:
			return err
		}
	}

	return fmt.Errorf("%w: %s seq %d after %d retries",
		ErrRetriesExhausted, f.Type.String(), f.Seq, t.cfg.retryLimit)
}

// sendAttempt performs one transmission of the frame bytes and waits for
// the acknowledgement within the ack timeout.
func (t *transport) sendAttempt(ctx context.Context, seq uint32, wire []byte) (sendResult, error) {
	ackChan := make(chan *frame.Frame, 1)
	t.ackWaiters.Store(seq, ackChan)

	defer t.ackWaiters.Delete(seq)

	if err := t.writeFrame(wire); err != nil {
		t.fail(err)

		return sendAbort, t.closeErr
	}

	timer := pool.GetTimer(t.cfg.ackTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return sendAbort, ctx.Err()

	case <-t.closed:
		return sendAbort, t.closeErr

	case <-timer.C:
		return sendRetry, ErrAckTimeout

	case resp := <-ackChan:
		if resp.Type == frame.TypeAck {
			return sendOK, nil
		}

		return sendRetry, fmt.Errorf("%w: remote last good seq %d", ErrNakReceived, resp.Seq)
	}
}
