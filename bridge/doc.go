// Package bridge implements the session protocol engine for reliable
// multi-file transfer over a raw half-duplex serial byte link.
//
// The engine layers reliability on a channel that only guarantees in-order
// byte delivery: frames (package frame) carry a CRC32 checksum, every
// data-bearing frame is individually acknowledged, and a bounded retry
// controller retransmits on Nak or timeout. Files are split into chunks
// (package chunk) and reassembled at byte offsets on the receiving side.
//
// # Session lifecycle
//
// A Session is created around a Channel with a SessionConfig, opened, and
// then drives one or both sub-protocols depending on its mode:
//
//   - ModeSend: queued files are sent in order (Hello, then per file
//     FileMeta, Data frames, FileEnd, and finally SessionEnd), each frame
//     confirmed before the next.
//   - ModeRecv: a persistent listener accepts files indefinitely, returning
//     to its listening state after each completed file until stopped.
//   - ModeBoth: both sub-protocols share the channel; frame types
//     disambiguate direction and a write lock serializes wire access.
//
// A file task that exhausts its retries is abandoned without ending the
// session; only a channel-level failure (device gone, read/write error)
// closes the session.
//
// # Concurrency model
//
// One read loop is the sole reader of the channel. It deframes incoming
// bytes and dispatches: Ack/Nak frames to the retry controller waiting on
// that sequence, everything else to the receiver sub-protocol. All writes
// are serialized by a single mutex, consistent with the half-duplex link.
package bridge
