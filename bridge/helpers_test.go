package bridge

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/logger"
	"github.com/stretchr/testify/require"
)

// fakeChannel is a scriptable in-memory channel: writes are recorded for
// inspection and reads deliver whatever the test injects.
type fakeChannel struct {
	mu     sync.Mutex
	writes [][]byte

	readCh chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		readCh: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeChannel) Read(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, io.EOF
	case b := <-c.readCh:
		// test frames always fit the transport read buffer
		return copy(p, b), nil
	}
}

func (c *fakeChannel) Write(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.mu.Unlock()

	return len(p), nil
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.closed) })

	return nil
}

func (c *fakeChannel) inject(f *frame.Frame) {
	c.readCh <- f.Pack()
}

func (c *fakeChannel) injectRaw(b []byte) {
	c.readCh <- append([]byte(nil), b...)
}

func (c *fakeChannel) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.writes)
}

// writtenFrames decodes every frame written so far.
func (c *fakeChannel) writtenFrames(t *testing.T) []*frame.Frame {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	d := frame.NewDeframer()
	for _, w := range c.writes {
		d.Feed(w)
	}

	var frames []*frame.Frame

	for {
		f, err := d.Next()
		if err != nil {
			require.ErrorIs(t, err, frame.ErrIncomplete)

			break
		}

		frames = append(frames, f)
	}

	return frames
}

// waitWrites polls until at least n writes were recorded.
func (c *fakeChannel) waitWrites(t *testing.T, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for c.writeCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d writes, got %d", n, c.writeCount())
		}

		time.Sleep(time.Millisecond)
	}
}

// flakyChannel wraps a channel and silently swallows writes the drop rule
// selects. The transport writes exactly one frame per call, so the rule sees
// whole frames.
type flakyChannel struct {
	Channel

	mu   sync.Mutex
	drop func(f *frame.Frame) bool
}

func (c *flakyChannel) Write(p []byte) (int, error) {
	f := decodeOneFrame(p)

	c.mu.Lock()
	dropped := f != nil && c.drop(f)
	c.mu.Unlock()

	if dropped {
		return len(p), nil
	}

	return c.Channel.Write(p)
}

func decodeOneFrame(wire []byte) *frame.Frame {
	d := frame.NewDeframer()
	d.Feed(wire)

	f, err := d.Next()
	if err != nil {
		return nil
	}

	return f
}

// dropEveryNthDataOnce drops every n-th Data frame, each sequence at most
// once, so retransmissions get through.
func dropEveryNthDataOnce(n int) func(f *frame.Frame) bool {
	count := 0
	dropped := make(map[uint32]bool)

	return func(f *frame.Frame) bool {
		if f.Type != frame.TypeData {
			return false
		}

		count++
		if count%n == 0 && !dropped[f.Seq] {
			dropped[f.Seq] = true

			return true
		}

		return false
	}
}

func testLogger() logger.Logger {
	return logger.NewSlog(logger.ErrorLevel, false)
}

func testConfig(t *testing.T, mode Mode, opts ...SessionOption) *SessionConfig {
	t.Helper()

	base := []SessionOption{
		WithChunkSize(4),
		WithAckTimeout(MinAckTimeout),
		WithRetryLimit(3),
		WithLogger(testLogger()),
	}

	cfg, err := NewSessionConfig(mode, append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}
