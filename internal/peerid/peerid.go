// Package peerid generates the 20-byte peer-id a client announces itself
// with: an Azureus-style "-XX####-" prefix followed by random bytes.
package peerid

import (
	uuid "github.com/satori/go.uuid"
)

// New returns a 20-byte peer-id with the given 2-letter client code and
// 4-character version, e.g. New("bT", "0010") -> "-bT0010-" + 12 random
// bytes. The random tail is the first 12 bytes of a version-4 UUID, the
// same source of randomness the teacher uses for per-torrent identifiers
// elsewhere in the session layer.
func New(client, version string) [20]byte {
	var id [20]byte
	prefix := "-" + client + version + "-"
	copy(id[:], prefix)
	u := uuid.Must(uuid.NewV4())
	copy(id[len(prefix):], u[:20-len(prefix)])
	return id
}
