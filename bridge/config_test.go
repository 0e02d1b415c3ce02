package bridge

import (
	"testing"
	"time"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
	"github.com/stretchr/testify/require"
)

func TestNewSessionConfigDefaults(t *testing.T) {
	cfg, err := NewSessionConfig(ModeBoth)
	require.NoError(t, err)

	require.Equal(t, ModeBoth, cfg.Mode())
	require.Equal(t, DefaultBaudRate, cfg.BaudRate())
	require.Equal(t, DefaultChunkSize, cfg.ChunkSize())
	require.Equal(t, DefaultRetryLimit, cfg.RetryLimit())
	require.Equal(t, ".", cfg.OutputDir())
	require.True(t, cfg.PersistentListen())
	require.NotNil(t, cfg.GetLogger())
}

func TestNewSessionConfigInvalidMode(t *testing.T) {
	_, err := NewSessionConfig(Mode(0))
	require.ErrorIs(t, err, ErrInvalidMode)

	_, err = NewSessionConfig(Mode(42))
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"send", ModeSend, true},
		{"recv", ModeRecv, true},
		{"both", ModeBoth, true},
		{"duplex", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		m, err := ParseMode(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
			require.Equal(t, tt.want, m)
		} else {
			require.ErrorIs(t, err, ErrInvalidMode, tt.in)
		}
	}
}

func TestModeCapabilities(t *testing.T) {
	require.True(t, ModeSend.CanSend())
	require.False(t, ModeSend.CanRecv())
	require.False(t, ModeRecv.CanSend())
	require.True(t, ModeRecv.CanRecv())
	require.True(t, ModeBoth.CanSend())
	require.True(t, ModeBoth.CanRecv())
}

func TestConfigOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  SessionOption
	}{
		{"zero baud", WithBaudRate(0)},
		{"negative baud", WithBaudRate(-9600)},
		{"zero chunk", WithChunkSize(0)},
		{"chunk over frame payload", WithChunkSize(frame.MaxPayloadSize + 1)},
		{"negative retry", WithRetryLimit(-1)},
		{"retry over limit", WithRetryLimit(MaxRetryLimit + 1)},
		{"ack timeout too small", WithAckTimeout(time.Millisecond)},
		{"ack timeout too large", WithAckTimeout(time.Minute)},
		{"empty output dir", WithOutputDir("")},
		{"zero queue", WithSendQueueSize(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSessionConfig(ModeBoth, tt.opt)
			require.Error(t, err)
		})
	}
}

func TestConfigDerivedAckTimeout(t *testing.T) {
	cfg, err := NewSessionConfig(ModeBoth)
	require.NoError(t, err)

	d := cfg.AckTimeout()
	require.GreaterOrEqual(t, d, MinAckTimeout)
	require.LessOrEqual(t, d, MaxAckTimeout)

	slow, err := NewSessionConfig(ModeBoth, WithBaudRate(1200))
	require.NoError(t, err)
	require.Greater(t, slow.AckTimeout(), d, "a slower line waits longer for acks")
}

func TestConfigExplicitAckTimeoutWins(t *testing.T) {
	cfg, err := NewSessionConfig(ModeBoth, WithAckTimeout(500*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, cfg.AckTimeout())
}

func TestDeriveAckTimeoutClamped(t *testing.T) {
	require.Equal(t, MinAckTimeout, deriveAckTimeout(10_000_000, 16))
	require.Equal(t, MaxAckTimeout, deriveAckTimeout(75, frame.MaxPayloadSize))
}
