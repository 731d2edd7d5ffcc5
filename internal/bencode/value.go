// Package bencode implements the encoding used by torrent metainfo files
// and HTTP tracker replies: a self-describing format with four value
// kinds (integer, byte string, list, dictionary).
//
// Decode preserves a dictionary's on-the-wire key order; Encode always
// emits dictionary keys in ascending lexicographic order of their raw
// bytes, which makes it the canonicalizer used to compute info-hashes.
package bencode

import "bytes"

// Kind identifies which of the four bencode productions a Value holds.
type Kind int

const (
	Integer Kind = iota
	String
	List
	Dict
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case String:
		return "string"
	case List:
		return "list"
	case Dict:
		return "dict"
	default:
		return "unknown"
	}
}

// DictEntry is one key/value pair of a Dict value, in decode order.
type DictEntry struct {
	Key   []byte
	Value Value
}

// Value is a decoded bencode value. The zero Value is an integer 0.
type Value struct {
	kind Kind
	i    int64
	s    []byte
	list []Value
	dict []DictEntry
}

// NewInt returns an integer Value.
func NewInt(v int64) Value { return Value{kind: Integer, i: v} }

// NewString returns a byte-string Value. b is not copied.
func NewString(b []byte) Value { return Value{kind: String, s: b} }

// NewList returns a list Value. items is not copied.
func NewList(items []Value) Value { return Value{kind: List, list: items} }

// NewDict returns a dictionary Value from entries given in the order they
// should be stored (decode order, or construction order for hand-built
// values). Encode sorts independently of this order.
func NewDict(entries []DictEntry) Value { return Value{kind: Dict, dict: entries} }

func (v Value) Kind() Kind { return v.kind }

// Int returns the integer payload. Valid only when Kind() == Integer.
func (v Value) Int() int64 { return v.i }

// Bytes returns the byte-string payload. Valid only when Kind() == String.
func (v Value) Bytes() []byte { return v.s }

// Str is a convenience accessor equivalent to string(v.Bytes()).
func (v Value) Str() string { return string(v.s) }

// List returns the list payload. Valid only when Kind() == List.
func (v Value) List() []Value { return v.list }

// Entries returns the dictionary payload in decode/construction order.
// Valid only when Kind() == Dict.
func (v Value) Entries() []DictEntry { return v.dict }

// Get looks up a key in a Dict value by raw bytes. The second return
// value is false if the value is not a Dict or the key is absent. When a
// malformed feed has duplicate keys, the first occurrence wins, matching
// how a decoder that inserts into an ordered slice in arrival order would
// be read by something that stops at the first match.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Dict {
		return Value{}, false
	}
	k := []byte(key)
	for _, e := range v.dict {
		if bytes.Equal(e.Key, k) {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether two values are structurally identical. Dict
// comparison is order-insensitive (decode order is not semantic).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Integer:
		return a.i == b.i
	case String:
		return bytes.Equal(a.s, b.s)
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case Dict:
		if len(a.dict) != len(b.dict) {
			return false
		}
		am := make(map[string]Value, len(a.dict))
		for _, e := range a.dict {
			am[string(e.Key)] = e.Value
		}
		for _, e := range b.dict {
			av, ok := am[string(e.Key)]
			if !ok || !Equal(av, e.Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
