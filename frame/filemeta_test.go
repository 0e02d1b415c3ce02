package frame

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMeta_EncodeDecode(t *testing.T) {
	meta := &FileMeta{Name: "a.bin", Size: 1048576}

	payload, err := meta.Encode()
	require.NoError(t, err)
	require.Len(t, payload, 1+5+8)
	assert.Equal(t, byte(5), payload[0])

	got, err := DecodeFileMeta(payload)
	require.NoError(t, err)
	assert.Equal(t, meta.Name, got.Name)
	assert.Equal(t, meta.Size, got.Size)
}

func TestFileMeta_EncodeEmptyName(t *testing.T) {
	meta := &FileMeta{Name: "", Size: 1}

	_, err := meta.Encode()
	assert.ErrorIs(t, err, ErrInvalidFileMeta)
}

func TestFileMeta_EncodeNameTooLong(t *testing.T) {
	meta := &FileMeta{Name: strings.Repeat("x", 256), Size: 1}

	_, err := meta.Encode()
	assert.ErrorIs(t, err, ErrInvalidFileMeta)
}

func TestFileMeta_DecodeMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"zero name length", []byte{0x00}},
		{"truncated name", []byte{0x05, 'a', 'b'}},
		{"truncated size", []byte{0x01, 'a', 0, 0, 0}},
		{"trailing bytes", append([]byte{0x01, 'a'}, make([]byte, 9)...)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFileMeta(tc.payload)
			assert.ErrorIs(t, err, ErrInvalidFileMeta)
		})
	}
}

func TestFileMeta_ChunkCount(t *testing.T) {
	cases := []struct {
		size      uint64
		chunkSize int
		want      uint64
	}{
		{0, 4096, 0},
		{1, 4096, 1},
		{4096, 4096, 1},
		{4097, 4096, 2},
		{10, 4, 3},
		{12, 4, 3},
	}

	for _, tc := range cases {
		meta := &FileMeta{Name: "f", Size: tc.size}
		assert.Equal(t, tc.want, meta.ChunkCount(tc.chunkSize),
			"size=%d chunk=%d", tc.size, tc.chunkSize)
	}
}
