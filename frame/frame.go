package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// MaxPayloadSize is the maximum number of payload bytes in a single frame.
// It matches the session chunk size ceiling; Data frames carry exactly one
// chunk.
const MaxPayloadSize = 4096

// headerSize is the fixed size of the frame header: Type(1) + Seq(4) + PayloadLen(2).
const headerSize = 7

// checksumSize is the size of the trailing CRC32 in bytes.
const checksumSize = 4

// MaxWireSize is the largest possible encoded frame.
const MaxWireSize = headerSize + MaxPayloadSize + checksumSize

// Sentinel errors for frame decoding.
var (
	// ErrIncomplete indicates that more bytes are needed to decode a frame.
	// It is a backpressure signal, not a failure.
	ErrIncomplete = errors.New("frame: incomplete frame, need more bytes")

	// ErrCorruptFrame indicates a checksum mismatch.
	ErrCorruptFrame = errors.New("frame: checksum mismatch")

	// ErrInvalidFrameType indicates an unrecognized frame type byte.
	ErrInvalidFrameType = errors.New("frame: invalid frame type")

	// ErrPayloadTooLarge indicates a payload length field exceeding MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("frame: payload length exceeds maximum")

	// ErrInvalidFileMeta indicates a malformed FileMeta payload.
	ErrInvalidFileMeta = errors.New("frame: invalid file metadata payload")
)

// Type identifies the kind of protocol frame.
type Type byte

// Frame types. Values outside this range are implausible on the wire and
// trigger deframer resynchronization.
const (
	TypeHello      Type = 0x01
	TypeFileMeta   Type = 0x02
	TypeData       Type = 0x03
	TypeAck        Type = 0x04
	TypeNak        Type = 0x05
	TypeFileEnd    Type = 0x06
	TypeSessionEnd Type = 0x07
)

// Valid reports whether t is a recognized frame type.
func (t Type) Valid() bool {
	return t >= TypeHello && t <= TypeSessionEnd
}

// String returns the string representation of the frame type.
func (t Type) String() string {
	switch t {
	case TypeHello:
		return "HELLO"
	case TypeFileMeta:
		return "FILE_META"
	case TypeData:
		return "DATA"
	case TypeAck:
		return "ACK"
	case TypeNak:
		return "NAK"
	case TypeFileEnd:
		return "FILE_END"
	case TypeSessionEnd:
		return "SESSION_END"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
	}
}

// Frame represents a single protocol frame.
type Frame struct {
	Type    Type
	Seq     uint32
	Payload []byte
}

// NewAck creates an Ack frame confirming the given sequence number.
func NewAck(seq uint32) *Frame {
	return &Frame{Type: TypeAck, Seq: seq}
}

// NewNak creates a Nak frame rejecting everything after the given sequence
// number. Seq is the last known-good sequence on the receiving side.
func NewNak(seq uint32) *Frame {
	return &Frame{Type: TypeNak, Seq: seq}
}

// WireSize returns the encoded size of the frame in bytes.
func (f *Frame) WireSize() int {
	return headerSize + len(f.Payload) + checksumSize
}

// Checksum computes the CRC32 (IEEE) over the frame header and payload.
func (f *Frame) Checksum() uint32 {
	var hdr [headerSize]byte
	f.packHeader(hdr[:])

	sum := crc32.ChecksumIEEE(hdr[:])

	return crc32.Update(sum, crc32.IEEETable, f.Payload)
}

func (f *Frame) packHeader(buf []byte) {
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[1:5], f.Seq)
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(f.Payload))) //nolint:gosec // length is bounded by MaxPayloadSize
}

// Pack serializes the frame to its wire format:
//
//	[Type(1)][Seq(4)][PayloadLen(2)][Payload][CRC32(4)]
//
// Pack panics if the payload exceeds MaxPayloadSize; payload sizing is the
// caller's invariant (chunks never exceed the session chunk size).
func (f *Frame) Pack() []byte {
	if len(f.Payload) > MaxPayloadSize {
		panic("frame: payload exceeds MaxPayloadSize")
	}

	wireLen := f.WireSize()
	buf := make([]byte, wireLen)

	f.packHeader(buf[:headerSize])
	copy(buf[headerSize:], f.Payload)

	sum := crc32.ChecksumIEEE(buf[:headerSize+len(f.Payload)])
	binary.BigEndian.PutUint32(buf[wireLen-checksumSize:], sum)

	return buf
}
