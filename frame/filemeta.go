package frame

import (
	"encoding/binary"
	"fmt"
)

// maxFileNameLen is the maximum encoded file name length; the name length
// field is a single byte.
const maxFileNameLen = 255

// fileSizeLen is the size of the encoded file size field.
const fileSizeLen = 8

// FileMeta describes one file entering the session. It is carried as the
// payload of a FileMeta frame, sent before the file's first Data frame.
type FileMeta struct {
	// Name is the base file name. It never carries directory components;
	// the receiver joins it to its configured output directory.
	Name string

	// Size is the total file size in bytes.
	Size uint64
}

// ChunkCount returns the number of chunks the file splits into for the given
// chunk size: ceil(Size / chunkSize). A zero-byte file has zero chunks.
func (m *FileMeta) ChunkCount(chunkSize int) uint64 {
	if chunkSize <= 0 {
		return 0
	}

	cs := uint64(chunkSize)

	return (m.Size + cs - 1) / cs
}

// Encode serializes the metadata to its payload format:
//
//	[NameLen(1)][Name][Size(8)]
func (m *FileMeta) Encode() ([]byte, error) {
	if len(m.Name) == 0 {
		return nil, fmt.Errorf("%w: empty file name", ErrInvalidFileMeta)
	}
	if len(m.Name) > maxFileNameLen {
		return nil, fmt.Errorf("%w: file name exceeds %d bytes", ErrInvalidFileMeta, maxFileNameLen)
	}

	buf := make([]byte, 1+len(m.Name)+fileSizeLen)
	buf[0] = byte(len(m.Name))
	copy(buf[1:], m.Name)
	binary.BigEndian.PutUint64(buf[1+len(m.Name):], m.Size)

	return buf, nil
}

// DecodeFileMeta parses a FileMeta payload produced by Encode.
func DecodeFileMeta(p []byte) (*FileMeta, error) {
	if len(p) < 1 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidFileMeta)
	}

	nameLen := int(p[0])
	if nameLen == 0 {
		return nil, fmt.Errorf("%w: empty file name", ErrInvalidFileMeta)
	}

	want := 1 + nameLen + fileSizeLen
	if len(p) != want {
		return nil, fmt.Errorf("%w: payload length %d, want %d", ErrInvalidFileMeta, len(p), want)
	}

	return &FileMeta{
		Name: string(p[1 : 1+nameLen]),
		Size: binary.BigEndian.Uint64(p[1+nameLen:]),
	}, nil
}
