package session

import (
	"context"
	"net"
	"time"

	"github.com/shammishailaj/gorain/internal/peer"
	"github.com/shammishailaj/gorain/internal/tracker"
)

// tickInterval bounds how long the event loop blocks without a peer
// message before it re-checks timers, per the <=1s select requirement.
const tickInterval = 1 * time.Second

// run is the C8 driver's single cooperative I/O loop: one goroutine
// owns every Peer in t.peers and is the only thing that ever touches
// their state machines. Each peer's messages are fanned in through
// peerDisconnectedC-style dedicated goroutines (dispatchPeer) rather
// than a single dynamic select set, since Go cannot select over a
// map of channels that grows and shrinks at runtime.
func (t *Torrent) run() {
	defer close(t.stoppedC)

	select {
	case <-t.startC:
	case <-t.closeC:
		return
	}

	t.active = true
	go t.announce(context.Background(), tracker.EventStarted)

	unchokeTicker := time.NewTicker(t.config.UnchokeInterval)
	defer unchokeTicker.Stop()
	optimisticTicker := time.NewTicker(t.config.OptimisticUnchokeInterval)
	defer optimisticTicker.Stop()
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()

	for {
		select {
		case <-t.stopC:
			t.stop()
			return

		case <-t.closeC:
			t.stop()
			return

		case res := <-t.newAddrsC:
			t.addrList.Push(res.addrs)
			for addr, id := range res.peerIDs {
				t.expectedPeerIDs[addr] = id
			}
			t.dialNewPeers()

		case addrs := <-t.addPeersC:
			t.addrList.Push(addrs)
			t.dialNewPeers()

		case nc := <-t.incomingConnC:
			t.acceptIncoming(nc)

		case pe := <-t.peerDisconnectedC:
			t.dropPeer(pe)

		case pe := <-t.peerAdoptedC:
			t.adopt(pe)

		case pm := <-t.peerMsgC:
			t.handlePeerMsg(pm)

		case <-unchokeTicker.C:
			t.tickUnchoke()

		case <-optimisticTicker.C:
			t.tickOptimisticUnchoke()

		case <-tick.C:
			t.tickKeepAlive()
			t.tickIdleTeardown()
			t.tickReannounce()
			t.downloadSpeed.Tick()
			t.uploadSpeed.Tick()
		}
	}
}

// stop announces event=stopped unconditionally (bypassing the
// interval timer) and tears down every peer connection.
func (t *Torrent) stop() {
	if !t.active {
		return
	}
	t.active = false
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	t.announce(ctx, tracker.EventStopped)
	for _, pe := range t.peers {
		pe.Destroy()
	}
}

// dialNewPeers pops up to MaxPeerDial addresses off the queue and starts
// a connect for each; attempts still running from earlier calls are not
// counted against that limit. The expected
// peer-id lookup happens here, on the event loop goroutine, since
// expectedPeerIDs is only ever safe to read from that goroutine; the
// dial itself runs in its own goroutine with a private copy.
func (t *Torrent) dialNewPeers() {
	for i := 0; i < t.config.MaxPeerDial; i++ {
		addr := t.addrList.Pop()
		if addr == nil {
			return
		}
		var expected *[20]byte
		if id, ok := t.expectedPeerIDs[addr.String()]; ok {
			expected = &id
		}
		go t.dialPeer(addr, expected)
	}
}

func (t *Torrent) dialPeer(addr *net.TCPAddr, expectedPeerID *[20]byte) {
	pe := peer.New(addr, uint32(t.info.PiecesAmount()), t.log)
	ctx, cancel := context.WithTimeout(context.Background(), t.config.PeerConnectTimeout+t.config.PeerHandshakeTimeout)
	defer cancel()
	if err := pe.Connect(ctx, t.peerID, t.infoHash, [8]byte{}, expectedPeerID, t.config.PeerConnectTimeout, t.config.PeerHandshakeTimeout); err != nil {
		t.log.Debugln("outgoing connect failed:", addr, err)
		return
	}
	select {
	case t.peerAdoptedC <- pe:
	case <-t.closeC:
		pe.Destroy()
	}
}

// acceptIncoming runs the incoming handshake on nc and adopts the
// resulting peer if it names our info-hash.
func (t *Torrent) acceptIncoming(nc net.Conn) {
	checkInfoHash := func(h [20]byte) bool { return h == t.infoHash }
	pe, _, err := peer.Accept(nc, t.peerID, [8]byte{}, checkInfoHash, t.config.PeerHandshakeTimeout, uint32(t.info.PiecesAmount()), t.log)
	if err != nil {
		t.log.Debugln("incoming handshake failed:", err)
		return
	}
	select {
	case t.peerAdoptedC <- pe:
	case <-t.closeC:
		pe.Destroy()
	}
}

// adopt registers a freshly-handshaken peer, sends our Bitfield (if we
// have anything to advertise) and starts its per-peer dispatch
// goroutine.
func (t *Torrent) adopt(pe *peer.Peer) {
	id := pe.ID()
	if _, dup := t.peers[id]; dup {
		pe.Destroy()
		return
	}
	t.peers[id] = pe
	pe.AutoUnchokeOnInterested = t.config.AutoUnchokeOnInterested
	if t.have.Count() > 0 {
		_ = pe.SendBitfield(t.have)
	}
	go t.dispatchPeer(pe)
}

// dispatchPeer only forwards one peer's decoded messages into the
// event loop's peerMsgC; it never touches peer state itself, since
// HandleMessage must run on the single goroutine that owns every
// Peer's state machine. It exits (and reports the peer as
// disconnected) once the peer's Messages channel closes.
func (t *Torrent) dispatchPeer(pe *peer.Peer) {
	for msg := range pe.Messages() {
		select {
		case t.peerMsgC <- peerMsg{pe: pe, msg: msg}:
		case <-t.closeC:
			return
		}
	}
	select {
	case t.peerDisconnectedC <- pe:
	case <-t.closeC:
	}
}

// handlePeerMsg applies one decoded message to its owning peer's state
// machine and reacts to the resulting Event; a protocol error drops
// that peer. Called only from run's select loop.
func (t *Torrent) handlePeerMsg(pm peerMsg) {
	ev, err := pm.pe.HandleMessage(pm.msg)
	if err != nil {
		t.log.Debugln("peer", pm.pe.Addr, "protocol error:", err)
		t.dropPeer(pm.pe)
		return
	}
	t.reactTo(pm.pe, ev)
}

// reactTo is where an Event surfaced from the peer session state
// machine would drive piece-level behavior (requesting blocks from a
// Have/Bitfield, answering a Request from storage). With no
// storage.Storage/piecepicker.Picker wired in, the driver only keeps
// rarity accounting current; a caller supplying both collaborators
// hooks in here.
func (t *Torrent) reactTo(pe *peer.Peer, ev peer.Event) {
	switch ev.Kind {
	case peer.EvHave:
		if t.picker != nil && pe.Bitfield != nil {
			t.picker.HandleHave(pe.Bitfield, ev.Index)
		}
	case peer.EvBitfield:
		if t.picker != nil && pe.Bitfield != nil {
			for i := uint32(0); i < pe.Bitfield.Len(); i++ {
				if pe.Bitfield.Test(i) {
					t.picker.HandleHave(pe.Bitfield, i)
				}
			}
		}
	case peer.EvRequest:
		if t.sto == nil {
			return
		}
		// A caller wiring real storage would read the requested block
		// and call pe.SendPiece here; this module never reads a byte
		// off disk on the driver's behalf.
	case peer.EvPiece:
		t.mu.Lock()
		t.downloaded += int64(len(ev.Piece.Block))
		t.mu.Unlock()
		t.downloadSpeed.Update(int64(len(ev.Piece.Block)))
	}
}

func (t *Torrent) dropPeer(pe *peer.Peer) {
	id := pe.ID()
	if _, ok := t.peers[id]; !ok {
		return
	}
	delete(t.peers, id)
	delete(t.optimisticUnchoked, id)
	if t.picker != nil && pe.Bitfield != nil {
		t.picker.HandleDisconnect(pe.Bitfield)
	}
	pe.Destroy()
}

// tickKeepAlive sends a keep-alive to every peer that has gone quiet
// on our side for KeepAliveInterval.
func (t *Torrent) tickKeepAlive() {
	for _, pe := range t.peers {
		_ = pe.KeepAliveIfIdle(t.config.KeepAliveInterval)
	}
}

// tickIdleTeardown drops any peer that has gone silent on the
// receiving side for twice the keep-alive interval: a peer honoring
// BEP-3 sends a keep-alive (or any message) at least that often, so
// this much silence means the connection is dead even though TCP
// hasn't noticed yet.
func (t *Torrent) tickIdleTeardown() {
	limit := 2 * t.config.KeepAliveInterval
	var dead []*peer.Peer
	for _, pe := range t.peers {
		if pe.IdleFor() > limit {
			dead = append(dead, pe)
		}
	}
	for _, pe := range dead {
		t.log.Debugln("peer", pe.Addr, "idle for more than", limit, "- dropping")
		t.dropPeer(pe)
	}
}

// tickReannounce re-announces with event=none once the tracker's
// interval has elapsed, never sooner than its min interval.
func (t *Torrent) tickReannounce() {
	t.mu.Lock()
	due := !t.lastAnnounce.IsZero() && time.Now().After(t.lastAnnounce.Add(t.announceInterval))
	t.mu.Unlock()
	if !due {
		return
	}
	go t.announce(context.Background(), tracker.EventNone)
}
