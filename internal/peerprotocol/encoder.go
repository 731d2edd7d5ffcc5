package peerprotocol

import (
	"encoding/binary"
	"io"
)

// Write encodes m as a length-prefixed frame and writes it to w. A
// KeepAliveMessage is the zero-length frame (length==0, no id, no
// payload).
func Write(w io.Writer, m Message) error {
	if _, ok := m.(KeepAliveMessage); ok {
		_, err := w.Write([]byte{0, 0, 0, 0})
		return err
	}
	payload := m.payload()
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(m.ID())
	copy(buf[5:], payload)
	_, err := w.Write(buf)
	return err
}

// Marshal is Write into a fresh byte slice, used by tests and callers
// that need the encoded bytes directly rather than streaming them.
func Marshal(m Message) []byte {
	if _, ok := m.(KeepAliveMessage); ok {
		return []byte{0, 0, 0, 0}
	}
	payload := m.payload()
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(m.ID())
	copy(buf[5:], payload)
	return buf
}
