package session

import (
	"bytes"
	"math/rand"
	"sort"

	"github.com/shammishailaj/gorain/internal/peer"
)

// peerStub pairs a peer-id with its session, the unit tickUnchoke and
// tickOptimisticUnchoke rank and select over.
type peerStub struct {
	id [20]byte
	pe *peer.Peer
}

func sortPeerStubs(stubs []*peerStub) {
	sort.Slice(stubs, func(i, j int) bool {
		return bytes.Compare(stubs[i].id[:], stubs[j].id[:]) < 0
	})
}

// tickUnchoke re-derives the regular (non-optimistic) unchoke set: the
// configured number of interested peers get unchoked, everyone else
// that isn't currently optimistically unchoked gets choked. With no
// piece-transfer accounting wired in (storage/piecepicker are external
// collaborators this library never implements), peers are ranked by
// peer-id rather than the teacher's upload/download-rate comparison,
// which keeps the selection deterministic without requiring byte
// counters this driver has no way to produce on its own.
func (t *Torrent) tickUnchoke() {
	candidates := make([]*peerStub, 0, len(t.peers))
	for id, pe := range t.peers {
		if !pe.PeerInterested {
			continue
		}
		if _, optimistic := t.optimisticUnchoked[id]; optimistic {
			continue
		}
		candidates = append(candidates, &peerStub{id: id, pe: pe})
	}
	sortPeerStubs(candidates)

	keep := make(map[[20]byte]struct{}, t.config.UnchokedPeers)
	for i, c := range candidates {
		if i >= t.config.UnchokedPeers {
			break
		}
		keep[c.id] = struct{}{}
	}

	for id, pe := range t.peers {
		_, isOptimistic := t.optimisticUnchoked[id]
		_, shouldUnchoke := keep[id]
		switch {
		case shouldUnchoke || isOptimistic:
			if pe.AmChoking {
				_ = pe.SendUnchoke()
			}
		default:
			if !pe.AmChoking {
				_ = pe.SendChoke()
			}
		}
	}
}

// tickOptimisticUnchoke rotates the optimistic-unchoke set: the
// previous pick is choked if it is currently unchoked (the next
// tickUnchoke may unchoke it again on rank), and a fresh random sample
// of interested, still-choked peers takes its place.
func (t *Torrent) tickOptimisticUnchoke() {
	for id := range t.optimisticUnchoked {
		delete(t.optimisticUnchoked, id)
		pe, ok := t.peers[id]
		if !ok {
			continue
		}
		if !pe.AmChoking {
			_ = pe.SendChoke()
		}
	}

	var pool []*peerStub
	for id, pe := range t.peers {
		if !pe.PeerInterested || !pe.AmChoking {
			continue
		}
		pool = append(pool, &peerStub{id: id, pe: pe})
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i, c := range pool {
		if i >= t.config.OptimisticUnchokedPeers {
			break
		}
		t.optimisticUnchoked[c.id] = struct{}{}
		_ = c.pe.SendUnchoke()
	}
}
