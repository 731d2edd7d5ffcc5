// Package peerprotocol implements the Peer Wire Protocol (BEP-3): the
// fixed-format Handshake and the length-prefixed framed messages that
// follow it. The Decoder tolerates partial reads across TCP recv
// boundaries, consuming exactly as many bytes as a complete frame needs
// and leaving the rest for the next Feed.
package peerprotocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MessageID identifies a framed message's wire id.
type MessageID byte

const (
	Choke MessageID = iota
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	Piece
	Cancel
	Port
)

func (id MessageID) String() string {
	switch id {
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not_interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Cancel:
		return "cancel"
	case Port:
		return "port"
	default:
		return fmt.Sprintf("unknown(%d)", byte(id))
	}
}

// ErrFrameTruncated means the buffer does not yet contain a complete
// frame; it is not a protocol error, just "try again after more bytes
// arrive".
var ErrFrameTruncated = errors.New("peerprotocol: frame truncated")

// UnknownMessageError is returned for an id outside the defined set. The
// frame has already been skipped in the decode buffer by the time this
// error is returned, so the connection can stay open.
type UnknownMessageError struct {
	ID MessageID
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("peerprotocol: unknown message id %d", byte(e.ID))
}

// Message is any of the 10 framed message kinds, or KeepAliveMessage,
// which has no wire id and is encoded by Write/Marshal and returned by
// Decoder.Next as a zero-length frame.
type Message interface {
	ID() MessageID
	payload() []byte
}

// KeepAliveMessage is the zero-length frame; it has no id byte of its
// own, but implements Message so Decoder.Next can return it uniformly.
type KeepAliveMessage struct{}

func (KeepAliveMessage) ID() MessageID  { return 0xFF }
func (KeepAliveMessage) payload() []byte { return nil }

type ChokeMessage struct{}

func (ChokeMessage) ID() MessageID  { return Choke }
func (ChokeMessage) payload() []byte { return nil }

type UnchokeMessage struct{}

func (UnchokeMessage) ID() MessageID  { return Unchoke }
func (UnchokeMessage) payload() []byte { return nil }

type InterestedMessage struct{}

func (InterestedMessage) ID() MessageID  { return Interested }
func (InterestedMessage) payload() []byte { return nil }

type NotInterestedMessage struct{}

func (NotInterestedMessage) ID() MessageID  { return NotInterested }
func (NotInterestedMessage) payload() []byte { return nil }

type HaveMessage struct {
	Index uint32
}

func (m HaveMessage) ID() MessageID { return Have }
func (m HaveMessage) payload() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, m.Index)
	return b
}

type BitfieldMessage struct {
	Data []byte
}

func (m BitfieldMessage) ID() MessageID   { return Bitfield }
func (m BitfieldMessage) payload() []byte { return m.Data }

type RequestMessage struct {
	Index, Begin, Length uint32
}

func (m RequestMessage) ID() MessageID { return Request }
func (m RequestMessage) payload() []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	binary.BigEndian.PutUint32(b[8:12], m.Length)
	return b
}

type PieceMessage struct {
	Index, Begin uint32
	Block        []byte
}

func (m PieceMessage) ID() MessageID { return Piece }
func (m PieceMessage) payload() []byte {
	b := make([]byte, 8+len(m.Block))
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	copy(b[8:], m.Block)
	return b
}

type CancelMessage struct {
	Index, Begin, Length uint32
}

func (m CancelMessage) ID() MessageID { return Cancel }
func (m CancelMessage) payload() []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	binary.BigEndian.PutUint32(b[8:12], m.Length)
	return b
}

type PortMessage struct {
	Port uint16
}

func (m PortMessage) ID() MessageID { return Port }
func (m PortMessage) payload() []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, m.Port)
	return b
}
