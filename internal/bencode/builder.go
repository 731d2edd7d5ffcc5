package bencode

// DictBuilder assembles a Dict value one key at a time, preserving
// insertion order the way a decoder would. Encode still sorts the
// entries; the builder exists so hand-constructed values (e.g. a
// tracker's bencoded failure reply) read the same way a decoded one
// would when iterated with Entries().
type DictBuilder struct {
	entries []DictEntry
}

func (b *DictBuilder) Set(key string, v Value) *DictBuilder {
	b.entries = append(b.entries, DictEntry{Key: []byte(key), Value: v})
	return b
}

func (b *DictBuilder) Build() Value {
	return NewDict(b.entries)
}

// NewStringFromString is a convenience for NewString([]byte(s)).
func NewStringFromString(s string) Value { return NewString([]byte(s)) }
