package bencode

import (
	"bytes"
	"io"
	"sort"
	"strconv"
)

// Encode writes the canonical encoding of v: dictionary keys are always
// emitted in ascending lexicographic order of their raw bytes, regardless
// of the order Entries() returns. Encoding the same Value twice always
// produces byte-identical output, which is what makes this function
// usable as an info-hash canonicalizer.
func Encode(w io.Writer, v Value) error {
	switch v.kind {
	case Integer:
		_, err := io.WriteString(w, "i"+strconv.FormatInt(v.i, 10)+"e")
		return err
	case String:
		if _, err := io.WriteString(w, strconv.Itoa(len(v.s))+":"); err != nil {
			return err
		}
		_, err := w.Write(v.s)
		return err
	case List:
		if _, err := io.WriteString(w, "l"); err != nil {
			return err
		}
		for _, item := range v.list {
			if err := Encode(w, item); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "e")
		return err
	case Dict:
		if _, err := io.WriteString(w, "d"); err != nil {
			return err
		}
		entries := append([]DictEntry(nil), v.dict...)
		sort.Slice(entries, func(i, j int) bool {
			return bytes.Compare(entries[i].Key, entries[j].Key) < 0
		})
		for _, e := range entries {
			if _, err := io.WriteString(w, strconv.Itoa(len(e.Key))+":"); err != nil {
				return err
			}
			if _, err := w.Write(e.Key); err != nil {
				return err
			}
			if err := Encode(w, e.Value); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "e")
		return err
	default:
		return ErrNotEncodable
	}
}

// EncodeBytes returns the canonical encoding of v as a byte slice.
func EncodeBytes(v Value) []byte {
	var buf bytes.Buffer
	// Encode on a well-formed Value constructed via the New* helpers
	// cannot fail; callers relying on arbitrary tags should check the
	// error from Encode directly.
	_ = Encode(&buf, v)
	return buf.Bytes()
}
