// Package chunk implements the chunk engine: splitting a source file into
// bounded-size chunks for sending, and reassembling received chunks into a
// destination file at their byte offsets.
//
// Chunk size is a session-wide constant negotiated once; every chunk of a
// file is exactly chunkSize bytes except the last, which holds the
// remainder. Chunks are identified by a 0-based, strictly increasing index;
// chunk index i covers byte offset i*chunkSize.
package chunk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultSize is the default session chunk size in bytes.
const DefaultSize = 4096

var (
	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk: chunk size must be positive")

	// ErrChunkTooLarge indicates a chunk exceeding the session chunk size.
	ErrChunkTooLarge = errors.New("chunk: chunk exceeds session chunk size")

	// ErrIndexOutOfRange indicates a chunk index at or beyond the chunk count.
	ErrIndexOutOfRange = errors.New("chunk: index out of range")
)

// Reader produces a file's chunks in strictly increasing index order.
//
// Chunks are read on demand from sequential disk offsets; the whole file is
// never held in memory. ChunkAt allows restarting from any index, which the
// sender uses for retransmission without disturbing the cursor.
type Reader struct {
	f         *os.File
	name      string
	size      uint64
	chunkSize int
	next      uint64
}

// NewReader opens the source file at path for chunked reading.
func NewReader(path string, chunkSize int) (*Reader, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: open source file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("chunk: stat source file: %w", err)
	}

	return &Reader{
		f:         f,
		name:      filepath.Base(path),
		size:      uint64(info.Size()), //nolint:gosec // regular file sizes are non-negative
		chunkSize: chunkSize,
	}, nil
}

// Name returns the base name of the source file.
func (r *Reader) Name() string { return r.name }

// Size returns the source file size in bytes.
func (r *Reader) Size() uint64 { return r.size }

// Count returns the number of chunks: ceil(size / chunkSize).
// A zero-byte file has zero chunks.
func (r *Reader) Count() uint64 {
	cs := uint64(r.chunkSize)

	return (r.size + cs - 1) / cs
}

// ChunkAt reads and returns the chunk at the given index. The last chunk may
// be shorter than the session chunk size.
func (r *Reader) ChunkAt(index uint64) ([]byte, error) {
	if index >= r.Count() {
		return nil, fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, r.Count())
	}

	offset := index * uint64(r.chunkSize)
	length := uint64(r.chunkSize)
	if offset+length > r.size {
		length = r.size - offset
	}

	buf := make([]byte, length)
	if _, err := r.f.ReadAt(buf, int64(offset)); err != nil { //nolint:gosec // offset < size <= MaxInt64
		return nil, fmt.Errorf("chunk: read chunk %d: %w", index, err)
	}

	return buf, nil
}

// Next returns the next chunk in index order along with its index.
// It returns io.EOF after the last chunk.
func (r *Reader) Next() ([]byte, uint64, error) {
	if r.next >= r.Count() {
		return nil, 0, io.EOF
	}

	index := r.next

	data, err := r.ChunkAt(index)
	if err != nil {
		return nil, 0, err
	}

	r.next++

	return data, index, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Writer reassembles received chunks into a destination file.
//
// The destination is created (truncating any pre-existing file of the same
// name) inside the output directory when the Writer is constructed, which is
// the point the receiver has accepted the file's metadata. A zero-byte file
// is therefore materialized even though it has no chunks.
type Writer struct {
	f         *os.File
	path      string
	chunkSize int
	written   uint64
}

// NewWriter creates the destination file for an incoming transfer.
//
// name is reduced to its base name so a malicious sender cannot escape the
// output directory. The directory is created if it does not exist.
func NewWriter(dir, name string, chunkSize int) (*Writer, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunk: create output directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: create destination file: %w", err)
	}

	return &Writer{f: f, path: path, chunkSize: chunkSize}, nil
}

// Path returns the destination file path.
func (w *Writer) Path() string { return w.path }

// BytesWritten returns the total number of chunk bytes written so far.
func (w *Writer) BytesWritten() uint64 { return w.written }

// WriteChunk writes data at the byte offset implied by the chunk index
// (index * chunkSize). Writing the same index twice overwrites the same
// offset with identical bytes, so duplicate delivery is harmless; callers
// still deduplicate to keep accounting exact.
func (w *Writer) WriteChunk(index uint64, data []byte) error {
	if len(data) > w.chunkSize {
		return fmt.Errorf("%w: got %d bytes, chunk size %d", ErrChunkTooLarge, len(data), w.chunkSize)
	}

	offset := index * uint64(w.chunkSize)
	if _, err := w.f.WriteAt(data, int64(offset)); err != nil { //nolint:gosec // bounded by file size
		return fmt.Errorf("chunk: write chunk %d: %w", index, err)
	}

	w.written += uint64(len(data))

	return nil
}

// Close flushes and closes the destination file.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()

		return fmt.Errorf("chunk: sync destination file: %w", err)
	}

	return w.f.Close()
}
