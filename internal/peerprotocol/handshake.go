package peerprotocol

import (
	"errors"
	"fmt"
	"io"
)

// Protocol is the ASCII literal identifying BitTorrent v1's wire
// protocol, sent verbatim in every Handshake.
const Protocol = "BitTorrent protocol"

// HandshakeLen is the fixed handshake size: 1 + 19 + 8 + 20 + 20.
const HandshakeLen = 1 + len(Protocol) + 8 + 20 + 20

// Extension bits observed in the 8 reserved bytes.
const (
	ExtensionBitDHT      = 0x01 // reserved[7] bit 0, BEP 5
	ExtensionBitFast     = 1 << 2
	ExtensionBitExtended = 0x10 // reserved[5] bit 4, BEP 10
)

// ErrUnsupportedProtocol is returned when a handshake's pstrlen/pstr do
// not match the literal "BitTorrent protocol".
var ErrUnsupportedProtocol = errors.New("peerprotocol: unsupported protocol identifier")

// HandshakeError wraps a rejected handshake: wrong protocol name,
// info-hash mismatch, or peer-id mismatch. Any HandshakeError means the
// connection must be torn down.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string { return e.Err.Error() }
func (e *HandshakeError) Unwrap() error { return e.Err }

// ErrInfoHashMismatch and ErrPeerIDMismatch are the two post-protocol
// handshake validation failures (§4.7).
var (
	ErrInfoHashMismatch = errors.New("peerprotocol: info hash mismatch")
	ErrPeerIDMismatch   = errors.New("peerprotocol: peer id mismatch")
)

// Handshake is the 68-byte fixed-format message that starts every PWP
// connection.
type Handshake struct {
	Reserved [8]byte
	InfoHash [20]byte
	PeerID   [20]byte
}

// NewHandshake builds a Handshake for infoHash/peerID with the given
// reserved extension bits already set.
func NewHandshake(infoHash, peerID [20]byte, reserved [8]byte) Handshake {
	return Handshake{Reserved: reserved, InfoHash: infoHash, PeerID: peerID}
}

// Marshal encodes the handshake to its 68-byte wire form.
func (h Handshake) Marshal() []byte {
	b := make([]byte, HandshakeLen)
	b[0] = byte(len(Protocol))
	copy(b[1:], Protocol)
	copy(b[1+len(Protocol):], h.Reserved[:])
	copy(b[1+len(Protocol)+8:], h.InfoHash[:])
	copy(b[1+len(Protocol)+8+20:], h.PeerID[:])
	return b
}

// ReadHandshake reads exactly HandshakeLen bytes from r and validates the
// protocol identifier. It does not validate info-hash/peer-id; that
// comparison needs caller context and is done by peerconn's dial/accept
// handshake.
func ReadHandshake(r io.Reader) (Handshake, error) {
	buf := make([]byte, HandshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Handshake{}, err
	}
	return ParseHandshake(buf)
}

// ParseHandshake validates and decodes a 68-byte handshake buffer.
func ParseHandshake(buf []byte) (Handshake, error) {
	if len(buf) != HandshakeLen {
		return Handshake{}, &HandshakeError{Err: fmt.Errorf("%w: short handshake", ErrUnsupportedProtocol)}
	}
	pstrlen := int(buf[0])
	if pstrlen != len(Protocol) || string(buf[1:1+len(Protocol)]) != Protocol {
		return Handshake{}, &HandshakeError{Err: ErrUnsupportedProtocol}
	}
	var h Handshake
	copy(h.Reserved[:], buf[1+len(Protocol):1+len(Protocol)+8])
	copy(h.InfoHash[:], buf[1+len(Protocol)+8:1+len(Protocol)+8+20])
	copy(h.PeerID[:], buf[1+len(Protocol)+8+20:])
	return h, nil
}
