package bridge

import "io"

// Channel is the byte channel the protocol engine runs over: an opened
// serial device, or an in-memory pipe in tests.
//
// The channel guarantees in-order byte delivery and nothing else — bytes
// may be dropped, corrupted, or stall silently. Read blocks until at least
// one byte is available or the channel fails; Close must unblock a pending
// Read. The engine borrows the channel for the session's lifetime; opening
// and enumeration belong to the host process.
type Channel interface {
	io.Reader
	io.Writer
	io.Closer
}
