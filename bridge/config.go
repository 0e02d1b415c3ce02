package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/logger"
)

// Mode selects which sub-protocols a session runs.
type Mode uint8

const (
	// ModeSend transfers queued files to the remote end.
	ModeSend Mode = iota + 1
	// ModeRecv listens for incoming files.
	ModeRecv
	// ModeBoth runs the send and receive sub-protocols over one shared channel.
	ModeBoth
)

// CanSend reports whether the mode includes the sender sub-protocol.
func (m Mode) CanSend() bool { return m == ModeSend || m == ModeBoth }

// CanRecv reports whether the mode includes the receiver sub-protocol.
func (m Mode) CanRecv() bool { return m == ModeRecv || m == ModeBoth }

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSend:
		return "send"
	case ModeRecv:
		return "recv"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as accepted on the command line.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "send":
		return ModeSend, nil
	case "recv":
		return ModeRecv, nil
	case "both":
		return ModeBoth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Default configuration values.
const (
	DefaultBaudRate   = 115200
	DefaultChunkSize  = 4096
	DefaultRetryLimit = 3

	DefaultSendQueueSize = 16

	// ackTimeoutMargin is the fixed slack added to the baud-derived ack
	// timeout to absorb device buffering latency.
	ackTimeoutMargin = 150 * time.Millisecond
)

// Configuration range limits.
const (
	MinAckTimeout = 200 * time.Millisecond
	MaxAckTimeout = 30 * time.Second

	MaxRetryLimit = 31
)

// SessionConfig holds all configuration for a transfer session.
//
// Baud rate and chunk size are session-wide constants agreed out-of-band:
// the operator sets identical values on both ends. Neither is renegotiated
// mid-transfer.
type SessionConfig struct {
	mode Mode

	// baudRate is the serial line speed. The engine does not program the
	// device (the host opened it already); the value sizes the ack timeout.
	baudRate int

	chunkSize  int
	retryLimit int

	// ackTimeout bounds the wait for an Ack/Nak after sending a frame.
	// Zero means derive from baud rate and chunk size at construction.
	ackTimeout time.Duration

	// outputDir is where the receiver materializes incoming files.
	outputDir string

	// persistentListen keeps the receiver listening after SessionEnd.
	persistentListen bool

	sendQueueSize int

	progressFn ProgressFunc
	logger     logger.Logger
}

// NewSessionConfig creates a session configuration for the given mode.
//
// opts are functional options applied in order; see With* functions.
func NewSessionConfig(mode Mode, opts ...SessionOption) (*SessionConfig, error) {
	if mode < ModeSend || mode > ModeBoth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}

	cfg := &SessionConfig{
		mode:             mode,
		baudRate:         DefaultBaudRate,
		chunkSize:        DefaultChunkSize,
		retryLimit:       DefaultRetryLimit,
		outputDir:        ".",
		persistentListen: true,
		sendQueueSize:    DefaultSendQueueSize,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.ackTimeout == 0 {
		cfg.ackTimeout = deriveAckTimeout(cfg.baudRate, cfg.chunkSize)
	}

	return cfg, nil
}

// deriveAckTimeout computes the ack wait from the line speed: the time to
// clock a full data frame plus its acknowledgement at 10 bits per byte
// (8N1), with headroom for retransmission jitter, clamped to the allowed
// range. Slower links get longer timeouts.
func deriveAckTimeout(baudRate, chunkSize int) time.Duration {
	frameOverhead := frame.MaxWireSize - frame.MaxPayloadSize
	wireBytes := chunkSize + 2*frameOverhead // data frame + ack frame
	bits := wireBytes * 10

	d := 4*time.Duration(bits)*time.Second/time.Duration(baudRate) + ackTimeoutMargin

	if d < MinAckTimeout {
		return MinAckTimeout
	}
	if d > MaxAckTimeout {
		return MaxAckTimeout
	}

	return d
}

// --- Getters ---

// Mode returns the session mode.
func (cfg *SessionConfig) Mode() Mode { return cfg.mode }

// BaudRate returns the configured serial line speed.
func (cfg *SessionConfig) BaudRate() int { return cfg.baudRate }

// ChunkSize returns the session-wide chunk size.
func (cfg *SessionConfig) ChunkSize() int { return cfg.chunkSize }

// RetryLimit returns the maximum number of retransmissions per frame.
func (cfg *SessionConfig) RetryLimit() int { return cfg.retryLimit }

// AckTimeout returns the per-frame acknowledgement timeout.
func (cfg *SessionConfig) AckTimeout() time.Duration { return cfg.ackTimeout }

// OutputDir returns the receiver's output directory.
func (cfg *SessionConfig) OutputDir() string { return cfg.outputDir }

// PersistentListen returns whether the receiver keeps listening after a
// remote SessionEnd.
func (cfg *SessionConfig) PersistentListen() bool { return cfg.persistentListen }

// GetLogger returns the configured logger.
func (cfg *SessionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- SessionOption ---

// SessionOption is a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc func(*SessionConfig) error

func (f sessionOptFunc) apply(cfg *SessionConfig) error { return f(cfg) }

// WithBaudRate sets the serial line speed used to derive the ack timeout.
func WithBaudRate(baud int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if baud <= 0 {
			return fmt.Errorf("bridge: baud rate %d must be positive", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithChunkSize sets the session-wide chunk size.
// Must be in [1, frame.MaxPayloadSize].
func WithChunkSize(size int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if size < 1 || size > frame.MaxPayloadSize {
			return fmt.Errorf("bridge: chunk size %d out of range [1, %d]", size, frame.MaxPayloadSize)
		}
		cfg.chunkSize = size

		return nil
	})
}

// WithRetryLimit sets the maximum number of retransmissions per frame.
func WithRetryLimit(n int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("bridge: retry limit %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithAckTimeout overrides the baud-derived acknowledgement timeout.
func WithAckTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinAckTimeout || d > MaxAckTimeout {
			return fmt.Errorf("bridge: ack timeout %v out of range [%v, %v]", d, MinAckTimeout, MaxAckTimeout)
		}
		cfg.ackTimeout = d

		return nil
	})
}

// WithOutputDir sets the directory incoming files are written to.
func WithOutputDir(dir string) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if dir == "" {
			return errors.New("bridge: output directory must not be empty")
		}
		cfg.outputDir = dir

		return nil
	})
}

// WithPersistentListen controls whether the receiver returns to listening
// after the remote ends its session. Enabled by default; tests and one-shot
// receives disable it.
func WithPersistentListen(enabled bool) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.persistentListen = enabled

		return nil
	})
}

// WithSendQueueSize sets the capacity of the pending file queue.
func WithSendQueueSize(size int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if size < 1 {
			return errors.New("bridge: send queue size must be >= 1")
		}
		cfg.sendQueueSize = size

		return nil
	})
}

// WithProgressFunc registers a callback invoked once per confirmed chunk.
// The callback must not block; it is called from the transfer path.
func WithProgressFunc(fn ProgressFunc) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.progressFn = fn

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if l == nil {
			return errors.New("bridge: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
