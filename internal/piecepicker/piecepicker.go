// Package piecepicker names the request-strategy boundary (rarest-first,
// endgame, whatever a caller wants) the torrent driver would consult
// before issuing Request messages. Per this module's scope, the picking
// strategy itself is an external collaborator: no implementation lives
// here, only the interface C8 programs against.
package piecepicker

import "github.com/shammishailaj/gorain/internal/bitfield"

// Picker decides which piece to request next given a peer's advertised
// bitfield and our own. A caller wanting to actually download piece data
// supplies an implementation; the driver never assumes one exists.
type Picker interface {
	// Next returns the index of the next piece to request from a peer
	// advertising peerHave, given our own ownedPieces, or ok=false if
	// nothing suitable is currently available.
	Next(ownedPieces, peerHave *bitfield.Bitfield) (index uint32, ok bool)
	// HandleHave is called whenever a peer's Have/Bitfield extends its
	// advertised set, so rarity accounting can be kept current.
	HandleHave(peerHave *bitfield.Bitfield, index uint32)
	// HandleDisconnect removes a peer's contribution to rarity counts.
	HandleDisconnect(peerHave *bitfield.Bitfield)
}
