package bridge

import "errors"

// Sentinel errors for the transfer protocol.
var (
	// Transport errors, handled inside the retry controller.

	// ErrAckTimeout indicates no Ack/Nak arrived within the ack timeout.
	// Recoverable via retransmission up to the retry limit.
	ErrAckTimeout = errors.New("bridge: timeout waiting for acknowledgement")

	// ErrNakReceived indicates the remote rejected the frame.
	// Recoverable via retransmission up to the retry limit.
	ErrNakReceived = errors.New("bridge: nak received")

	// ErrRetriesExhausted indicates a frame failed after the maximum number
	// of retransmissions. Fatal to the current file task only; the session
	// continues with the next queued file.
	ErrRetriesExhausted = errors.New("bridge: retries exhausted")

	// Session errors.

	// ErrChannelClosed indicates the byte channel failed or was closed.
	// Fatal to the whole session.
	ErrChannelClosed = errors.New("bridge: channel closed")

	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("bridge: session closed")

	// ErrInvalidMode indicates an unrecognized session mode.
	ErrInvalidMode = errors.New("bridge: invalid session mode")

	// ErrModeMismatch indicates an operation the session mode does not
	// allow, e.g. queueing files on a receive-only session.
	ErrModeMismatch = errors.New("bridge: operation not allowed in this mode")

	// ErrUnexpectedFrame indicates a frame type the receiver cannot handle
	// in its current state.
	ErrUnexpectedFrame = errors.New("bridge: unexpected frame")
)
