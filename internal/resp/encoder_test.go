package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{
		SimpleValue("PONG"),
		ErrorValue("ERR boom"),
		IntegerValue(-17),
		BulkString("hello world"),
		NullBulk,
		ArrayValue(BulkString("a"), IntegerValue(1), ArrayValue(BulkString("nested"))),
	}

	for _, v := range values {
		encoded := Encode(v)
		d := NewDecoder()
		got, err := d.Feed(encoded)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, v, got[0])
	}
}

func TestEncodeArrayPassthrough(t *testing.T) {
	elems := [][]byte{EncodeSimple("OK"), EncodeInteger(2)}
	got := EncodeArrayPassthrough(elems)
	assert.Equal(t, "*2\r\n+OK\r\n:2\r\n", string(got))
}

func TestEncodeRawBulkHasNoTrailingCRLF(t *testing.T) {
	got := EncodeRawBulk([]byte("REDISxyz"))
	assert.Equal(t, "$8\r\nREDISxyz", string(got))
}
