package resp

import "strconv"

// Encode renders a Value back to its wire form. It is the symmetric
// counterpart to Decoder.Feed: decode(encode(v)) == v for every Value this
// package can produce (spec.md §8 property 2).
func Encode(v Value) []byte {
	switch v.Kind {
	case Simple:
		return EncodeSimple(v.Str)
	case Error:
		return EncodeError(v.Str)
	case Integer:
		return EncodeInteger(v.Int)
	case Bulk:
		if v.BulkNull {
			return EncodeNullBulk()
		}
		return EncodeBulk(v.Bulk)
	case Array:
		return EncodeArray(v.Array)
	default:
		panic("resp: invalid Value Kind")
	}
}

// EncodeSimple encodes a simple string: "+<s>\r\n".
func EncodeSimple(s string) []byte {
	buf := make([]byte, 0, len(s)+3)
	buf = append(buf, '+')
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

// EncodeError encodes an error: "-<s>\r\n".
func EncodeError(s string) []byte {
	buf := make([]byte, 0, len(s)+3)
	buf = append(buf, '-')
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

// EncodeInteger encodes an integer: ":<n>\r\n".
func EncodeInteger(n int64) []byte {
	s := strconv.FormatInt(n, 10)
	buf := make([]byte, 0, len(s)+3)
	buf = append(buf, ':')
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

// EncodeBulk encodes a bulk string: "$<len>\r\n<bytes>\r\n". A nil b encodes
// as an empty bulk string, not a null one; use EncodeNullBulk for that.
func EncodeBulk(b []byte) []byte {
	lenStr := strconv.Itoa(len(b))
	buf := make([]byte, 0, 1+len(lenStr)+2+len(b)+2)
	buf = append(buf, '$')
	buf = append(buf, lenStr...)
	buf = append(buf, '\r', '\n')
	buf = append(buf, b...)
	return append(buf, '\r', '\n')
}

// EncodeNullBulk encodes the null bulk: "$-1\r\n".
func EncodeNullBulk() []byte {
	return []byte("$-1\r\n")
}

// EncodeRawBulk encodes a bulk header followed by the raw payload with NO
// trailing boundary: "$<len>\r\n<bytes>". This is used only for the
// FULLRESYNC persistence-file transfer (spec.md §4.1, §4.3 PSYNC), which is
// the one frame in this protocol that omits the closing CRLF.
func EncodeRawBulk(b []byte) []byte {
	lenStr := strconv.Itoa(len(b))
	buf := make([]byte, 0, 1+len(lenStr)+2+len(b))
	buf = append(buf, '$')
	buf = append(buf, lenStr...)
	buf = append(buf, '\r', '\n')
	return append(buf, b...)
}

// EncodeArray encodes an array of logical Values, recursively encoding each
// element.
func EncodeArray(vs []Value) []byte {
	bufs := make([][]byte, len(vs))
	for i, v := range vs {
		bufs[i] = Encode(v)
	}
	return EncodeArrayPassthrough(bufs)
}

// EncodeArrayPassthrough builds an array frame from already-encoded element
// buffers without re-encoding them, the pass-through mode spec.md §4.1
// describes. EXEC replies use this to wrap each queued command's captured
// reply bytes verbatim.
func EncodeArrayPassthrough(elems [][]byte) []byte {
	countStr := strconv.Itoa(len(elems))
	size := 1 + len(countStr) + 2
	for _, e := range elems {
		size += len(e)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, '*')
	buf = append(buf, countStr...)
	buf = append(buf, '\r', '\n')
	for _, e := range elems {
		buf = append(buf, e...)
	}
	return buf
}

// EncodeStringArray is a convenience wrapper around EncodeArray for a slice
// of plain strings, encoded as bulk strings.
func EncodeStringArray(ss []string) []byte {
	return Encode(StringArray(ss))
}
