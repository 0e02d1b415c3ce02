package chunk

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTempFile creates a file with the given content in a test temp dir.
func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)

	return buf
}

func TestReader_Count(t *testing.T) {
	cases := []struct {
		size      int
		chunkSize int
		want      uint64
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{10, 4, 3},
		{8192, 4096, 2},
	}

	for _, tc := range cases {
		path := writeTempFile(t, "f.bin", make([]byte, tc.size))

		r, err := NewReader(path, tc.chunkSize)
		require.NoError(t, err)

		assert.Equal(t, tc.want, r.Count(), "size=%d chunk=%d", tc.size, tc.chunkSize)
		assert.Equal(t, uint64(tc.size), r.Size())
		require.NoError(t, r.Close())
	}
}

func TestReader_NextCoversFileExactly(t *testing.T) {
	content := randomBytes(t, 10)
	path := writeTempFile(t, "a.bin", content)

	r, err := NewReader(path, 4)
	require.NoError(t, err)
	defer r.Close()

	var reassembled []byte
	var lastIndex uint64

	for {
		data, index, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		if len(reassembled) > 0 {
			require.Equal(t, lastIndex+1, index, "indices must be strictly increasing")
		}
		lastIndex = index
		reassembled = append(reassembled, data...)
	}

	assert.Equal(t, content, reassembled)
	assert.Equal(t, uint64(2), lastIndex)
}

func TestReader_LastChunkLength(t *testing.T) {
	// size=10, chunk=4: chunks of 4, 4, 2. Last chunk = size mod chunkSize.
	path := writeTempFile(t, "a.bin", randomBytes(t, 10))

	r, err := NewReader(path, 4)
	require.NoError(t, err)
	defer r.Close()

	last, err := r.ChunkAt(2)
	require.NoError(t, err)
	assert.Len(t, last, 2)

	// Divisible size: last chunk is a full chunk.
	path = writeTempFile(t, "b.bin", randomBytes(t, 8))

	r2, err := NewReader(path, 4)
	require.NoError(t, err)
	defer r2.Close()

	last, err = r2.ChunkAt(1)
	require.NoError(t, err)
	assert.Len(t, last, 4)
}

func TestReader_ChunkAtRestartable(t *testing.T) {
	content := randomBytes(t, 100)
	path := writeTempFile(t, "a.bin", content)

	r, err := NewReader(path, 16)
	require.NoError(t, err)
	defer r.Close()

	// Reading the same index twice returns identical bytes regardless of the
	// Next cursor; retransmission depends on this.
	first, err := r.ChunkAt(3)
	require.NoError(t, err)

	_, _, err = r.Next()
	require.NoError(t, err)

	second, err := r.ChunkAt(3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, content[48:64], second)
}

func TestReader_ZeroByteFile(t *testing.T) {
	path := writeTempFile(t, "empty.bin", nil)

	r, err := NewReader(path, 4096)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint64(0), r.Count())

	_, _, err = r.Next()
	assert.Equal(t, io.EOF, err)

	_, err = r.ChunkAt(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestReader_InvalidChunkSize(t *testing.T) {
	path := writeTempFile(t, "a.bin", []byte{1})

	_, err := NewReader(path, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestReader_MissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope.bin"), 4096)
	assert.Error(t, err)
}

func TestWriter_Reassembly(t *testing.T) {
	content := randomBytes(t, 10)
	outdir := t.TempDir()

	w, err := NewWriter(outdir, "out.bin", 4)
	require.NoError(t, err)

	require.NoError(t, w.WriteChunk(0, content[0:4]))
	require.NoError(t, w.WriteChunk(1, content[4:8]))
	require.NoError(t, w.WriteChunk(2, content[8:10]))
	assert.Equal(t, uint64(10), w.BytesWritten())
	require.NoError(t, w.Close())

	got, err := os.ReadFile(filepath.Join(outdir, "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestWriter_TruncatesExisting(t *testing.T) {
	outdir := t.TempDir()
	existing := filepath.Join(outdir, "out.bin")
	require.NoError(t, os.WriteFile(existing, make([]byte, 1000), 0o644))

	w, err := NewWriter(outdir, "out.bin", 4)
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk(0, []byte{1, 2, 3}))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestWriter_ZeroByteFile(t *testing.T) {
	outdir := t.TempDir()

	w, err := NewWriter(outdir, "empty.bin", 4096)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := os.Stat(filepath.Join(outdir, "empty.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestWriter_SanitizesName(t *testing.T) {
	outdir := t.TempDir()

	w, err := NewWriter(outdir, "../../evil.bin", 4)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, filepath.Join(outdir, "evil.bin"), w.Path())
}

func TestWriter_RejectsOversizedChunk(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "out.bin", 4)
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteChunk(0, make([]byte, 5))
	assert.ErrorIs(t, err, ErrChunkTooLarge)
}

func TestWriter_DuplicateIndexIdempotent(t *testing.T) {
	content := randomBytes(t, 8)
	outdir := t.TempDir()

	w, err := NewWriter(outdir, "out.bin", 4)
	require.NoError(t, err)

	require.NoError(t, w.WriteChunk(0, content[0:4]))
	require.NoError(t, w.WriteChunk(0, content[0:4])) // duplicate delivery
	require.NoError(t, w.WriteChunk(1, content[4:8]))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(filepath.Join(outdir, "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, got, "re-writing an index must not corrupt content")
}

func TestWriter_CreatesOutputDir(t *testing.T) {
	outdir := filepath.Join(t.TempDir(), "nested", "dir")

	w, err := NewWriter(outdir, "out.bin", 4)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(filepath.Join(outdir, "out.bin"))
	assert.NoError(t, err)
}

// Reassembly law: split then reassemble reproduces the file byte for byte.
func TestSplitReassembleRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 3, 4, 5, 4096, 4097, 10000}

	for _, size := range sizes {
		content := randomBytes(t, size)
		src := writeTempFile(t, "src.bin", content)
		outdir := t.TempDir()

		r, err := NewReader(src, 4096)
		require.NoError(t, err)

		w, err := NewWriter(outdir, "dst.bin", 4096)
		require.NoError(t, err)

		for {
			data, index, err := r.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			require.NoError(t, w.WriteChunk(index, data))
		}

		require.NoError(t, r.Close())
		require.NoError(t, w.Close())

		got, err := os.ReadFile(filepath.Join(outdir, "dst.bin"))
		require.NoError(t, err)
		require.Equal(t, content, got, "size=%d", size)
	}
}
