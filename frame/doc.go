// Package frame implements the wire framing for the serial file-transfer
// protocol.
//
// The underlying byte channel has no message boundaries and no error
// detection, so every frame is self-describing and checksummed:
//
//	[Type(1)][Seq(4)][PayloadLen(2)][Payload(0–4096)][CRC32(4)]
//
// All multi-byte fields are big-endian. The CRC32 (IEEE polynomial) covers
// the header and payload; a frame is never accepted before its checksum is
// verified.
//
// # Frame Types
//
//   - Hello (0x01) — session handshake
//   - FileMeta (0x02) — file name and size, sent before the first Data frame
//   - Data (0x03) — one chunk of file content
//   - Ack (0x04) / Nak (0x05) — positive/negative acknowledgement; the
//     Seq field carries the sequence being confirmed or rejected
//   - FileEnd (0x06) — end of one file's chunks
//   - SessionEnd (0x07) — sender has drained its queue
//
// Sequence numbers increase monotonically per direction and wrap modulo 2^32.
//
// The Deframer turns the incoming byte stream back into frames. It reports
// ErrIncomplete as a backpressure signal (read more bytes) and resynchronizes
// on corrupt input by discarding bytes up to the next plausible frame
// boundary.
package frame
