package resp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderWholeFrames(t *testing.T) {
	d := NewDecoder()
	vs, err := d.Feed([]byte("+OK\r\n-ERR bad\r\n:42\r\n$3\r\nfoo\r\n$-1\r\n*2\r\n$1\r\na\r\n$1\r\nb\r\n"))
	require.NoError(t, err)
	require.Len(t, vs, 6)

	assert.Equal(t, SimpleValue("OK"), vs[0])
	assert.Equal(t, ErrorValue("ERR bad"), vs[1])
	assert.Equal(t, IntegerValue(42), vs[2])
	assert.Equal(t, BulkString("foo"), vs[3])
	assert.Equal(t, NullBulk, vs[4])

	ss, ok := vs[5].Strings()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ss)
}

// TestDecoderArbitraryChunking asserts property 1 from spec.md §8: feeding
// the same byte sequence in any chunking yields the same completed frames.
func TestDecoderArbitraryChunking(t *testing.T) {
	full := []byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n*1\r\n$4\r\nPING\r\n")

	for chunkSize := 1; chunkSize <= len(full); chunkSize++ {
		d := NewDecoder()
		var got []Value
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			vs, err := d.Feed(full[i:end])
			require.NoError(t, err, "chunkSize=%d", chunkSize)
			got = append(got, vs...)
		}

		require.Len(t, got, 2, "chunkSize=%d", chunkSize)
		ss0, _ := got[0].Strings()
		assert.Equal(t, []string{"SET", "k", "v"}, ss0, "chunkSize=%d", chunkSize)
		ss1, _ := got[1].Strings()
		assert.Equal(t, []string{"PING"}, ss1, "chunkSize=%d", chunkSize)
	}
}

func TestDecoderFileTransferBulkHasNoTrailingBoundary(t *testing.T) {
	d := NewDecoder()
	rdb := append([]byte("REDIS0011"), 0xFF, 0xFF)
	payload := []byte("$" + strconv.Itoa(len(rdb)) + "\r\n")
	payload = append(payload, rdb...)
	// immediately followed by the next top-level frame, no CRLF in between
	payload = append(payload, []byte("*1\r\n$4\r\nPING\r\n")...)

	vs, err := d.Feed(payload)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, rdb, vs[0].Bulk)
	ss, _ := vs[1].Strings()
	assert.Equal(t, []string{"PING"}, ss)
}

func TestDecoderProtocolError(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed([]byte("!nope\r\n"))
	assert.ErrorIs(t, err, ErrProtocol)
}
