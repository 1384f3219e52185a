// Package resp implements the subset of the Redis RESP wire protocol this
// server speaks: simple strings, errors, integers, bulk strings (including
// the null bulk and the boundary-less "file transfer" bulk used by
// FULLRESYNC), and arrays. It is grounded on the wire description in
// spec.md §4.1 and on the RESP decoders surveyed in the retrieval pack
// (mediocre-go-lib's mdb/mredis uses radix/v3's resp2 package as a client-side
// decoder; darshilgit-learning-redis and flonle-diy-redis each hand-roll a
// server-side decoder for this exact subset).
package resp

import "fmt"

// Kind identifies which RESP frame type a Value holds.
type Kind int

// The five frame kinds this server's Codec understands.
const (
	Simple Kind = iota
	Error
	Integer
	Bulk
	Array
)

// Value is the single intermediate representation shared by the Decoder and
// Encoder: every decoded frame becomes a Value, and every Value can be
// re-encoded back to its wire form.
type Value struct {
	Kind Kind

	// Str holds the payload for Simple and Error.
	Str string

	// Int holds the payload for Integer.
	Int int64

	// Bulk holds the payload for Bulk. A nil Bulk with BulkNull set to true
	// represents the null bulk ($-1\r\n); a nil Bulk with BulkNull false is
	// an empty bulk string ($0\r\n\r\n).
	Bulk     []byte
	BulkNull bool

	// Array holds the elements for Array.
	Array []Value
}

// SimpleValue constructs a Simple Value.
func SimpleValue(s string) Value { return Value{Kind: Simple, Str: s} }

// ErrorValue constructs an Error Value.
func ErrorValue(s string) Value { return Value{Kind: Error, Str: s} }

// IntegerValue constructs an Integer Value.
func IntegerValue(n int64) Value { return Value{Kind: Integer, Int: n} }

// BulkValue constructs a Bulk Value from a byte payload.
func BulkValue(b []byte) Value { return Value{Kind: Bulk, Bulk: b} }

// BulkString is a convenience wrapper around BulkValue for string payloads.
func BulkString(s string) Value { return BulkValue([]byte(s)) }

// NullBulk is the Value representing $-1\r\n.
var NullBulk = Value{Kind: Bulk, BulkNull: true}

// ArrayValue constructs an Array Value from its elements.
func ArrayValue(vs ...Value) Value { return Value{Kind: Array, Array: vs} }

// StringArray constructs an Array of Bulk Values from plain strings, the
// shape almost every command request and most command replies take.
func StringArray(ss []string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = BulkString(s)
	}
	return ArrayValue(vs...)
}

// Strings returns the elements of an Array Value as plain strings, as long
// as every element is a non-null Bulk. This is the shape a decoded client
// request always takes.
func (v Value) Strings() ([]string, bool) {
	if v.Kind != Array {
		return nil, false
	}
	out := make([]string, len(v.Array))
	for i, el := range v.Array {
		if el.Kind != Bulk || el.BulkNull {
			return nil, false
		}
		out[i] = string(el.Bulk)
	}
	return out, true
}

func (v Value) String() string {
	switch v.Kind {
	case Simple:
		return "+" + v.Str
	case Error:
		return "-" + v.Str
	case Integer:
		return fmt.Sprintf(":%d", v.Int)
	case Bulk:
		if v.BulkNull {
			return "$-1"
		}
		return "$" + string(v.Bulk)
	case Array:
		return fmt.Sprintf("*%d", len(v.Array))
	default:
		return "<invalid>"
	}
}
