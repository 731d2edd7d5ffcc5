package peer

import "errors"

// ErrNotHandshaked is returned when a caller tries to exchange steady
// state messages before the handshake has completed.
var ErrNotHandshaked = errors.New("peer: not handshaked yet")

// ErrBitfieldAlreadySent/ErrBitfieldAlreadyReceived enforce the
// at-most-once rule on the bitfield message in each direction.
var (
	ErrBitfieldAlreadySent     = errors.New("peer: bitfield already sent")
	ErrBitfieldAlreadyReceived = errors.New("peer: bitfield already received")
)

// ErrBitfieldLength is returned when a peer's bitfield payload is not
// exactly ceil(piecesAmount/8) bytes.
var ErrBitfieldLength = errors.New("peer: bitfield length mismatch")

// ErrHaveIndexOutOfRange is returned for a Have message naming a piece
// index beyond the torrent's piece count.
var ErrHaveIndexOutOfRange = errors.New("peer: have index out of range")

// ErrDestroyed is returned by any operation attempted on a peer whose
// session has already ended.
var ErrDestroyed = errors.New("peer: session destroyed")
