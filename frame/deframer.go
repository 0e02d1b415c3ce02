package frame

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Deframer is a stateful streaming decoder that turns a byte stream into
// frames.
//
// The read loop feeds raw bytes in with Feed and drains decoded frames with
// Next. Next returns ErrIncomplete when the buffered bytes do not yet hold a
// complete frame; this is a backpressure signal, not a failure.
//
// On corrupt input the deframer resynchronizes before returning:
//
//   - An implausible header (unknown type byte or oversized payload length)
//     discards bytes up to the next plausible frame boundary, i.e. the next
//     byte that could start a frame.
//   - A checksum mismatch discards the entire frame window; the header was
//     plausible, so the next boundary is right after it.
//
// The caller reacts to a corruption error by sending a Nak so the remote
// retransmits.
//
// Deframer is NOT goroutine-safe. The single read loop is its only user,
// consistent with the single-reader channel ownership model.
type Deframer struct {
	buf []byte
}

// NewDeframer creates an empty Deframer.
func NewDeframer() *Deframer {
	return &Deframer{buf: make([]byte, 0, MaxWireSize)}
}

// Feed appends raw bytes read from the channel to the decode buffer.
func (d *Deframer) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of undecoded bytes held by the deframer.
func (d *Deframer) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Deframer) Reset() {
	d.buf = d.buf[:0]
}

// Next decodes and consumes exactly one frame from the buffered bytes.
//
// It returns ErrIncomplete when more bytes are needed, or a corruption error
// (ErrInvalidFrameType, ErrPayloadTooLarge, ErrCorruptFrame) after
// resynchronizing past the corrupt bytes. A nil error returns the decoded
// frame with its checksum already verified.
func (d *Deframer) Next() (*Frame, error) {
	if len(d.buf) == 0 {
		return nil, ErrIncomplete
	}

	// Validate the type byte before anything else; an implausible type means
	// we are mid-stream after corruption and must resync.
	t := Type(d.buf[0])
	if !t.Valid() {
		bad := d.buf[0]
		d.resync()

		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidFrameType, bad)
	}

	if len(d.buf) < headerSize {
		return nil, ErrIncomplete
	}

	payloadLen := int(binary.BigEndian.Uint16(d.buf[5:7]))
	if payloadLen > MaxPayloadSize {
		d.resync()

		return nil, fmt.Errorf("%w: got %d, max %d", ErrPayloadTooLarge, payloadLen, MaxPayloadSize)
	}

	wireLen := headerSize + payloadLen + checksumSize
	if len(d.buf) < wireLen {
		return nil, ErrIncomplete
	}

	body := d.buf[:headerSize+payloadLen]
	wireSum := binary.BigEndian.Uint32(d.buf[headerSize+payloadLen : wireLen])
	calcSum := crc32.ChecksumIEEE(body)

	if wireSum != calcSum {
		// Header was plausible; drop the whole frame window.
		d.consume(wireLen)

		return nil, fmt.Errorf("%w: wire=0x%08X, computed=0x%08X", ErrCorruptFrame, wireSum, calcSum)
	}

	f := &Frame{
		Type: t,
		Seq:  binary.BigEndian.Uint32(d.buf[1:5]),
	}
	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		copy(f.Payload, d.buf[headerSize:headerSize+payloadLen])
	}

	d.consume(wireLen)

	return f, nil
}

// consume drops the first n buffered bytes.
func (d *Deframer) consume(n int) {
	remaining := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:remaining]
}

// resync discards bytes up to the next plausible frame boundary: the next
// byte holding a valid frame type. If none is found the buffer is emptied.
func (d *Deframer) resync() {
	for i := 1; i < len(d.buf); i++ {
		if Type(d.buf[i]).Valid() {
			d.consume(i)

			return
		}
	}

	d.buf = d.buf[:0]
}
