// Package session coordinates one torrent's tracker tier manager and
// peer sessions: the C8 driver. It owns the peer set and the
// re-announce schedule and dispatches every inbound PWP message to its
// owning peer's state machine.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	rain "github.com/shammishailaj/gorain"
	"github.com/shammishailaj/gorain/internal/addrlist"
	"github.com/shammishailaj/gorain/internal/announcer"
	"github.com/shammishailaj/gorain/internal/bitfield"
	"github.com/shammishailaj/gorain/internal/logger"
	"github.com/shammishailaj/gorain/internal/metainfo"
	"github.com/shammishailaj/gorain/internal/peer"
	"github.com/shammishailaj/gorain/internal/peerprotocol"
	"github.com/shammishailaj/gorain/internal/piecepicker"
	"github.com/shammishailaj/gorain/internal/storage"
	"github.com/shammishailaj/gorain/internal/tracker"
	"github.com/shammishailaj/gorain/internal/trackermanager"
)

// Stats is the snapshot Torrent.Stats returns: running totals and the
// tracker's last-known view of the swarm.
type Stats struct {
	Uploaded, Downloaded, Left int64
	Seeders, Leechers          int32
	Interval                   time.Duration
	LastAnnounce               time.Time
	DownloadSpeed              int64 // bytes/sec, EWMA
	UploadSpeed                int64 // bytes/sec, EWMA
	NumPeers                   int
}

// peerMsg pairs a decoded PWP message with the peer it arrived from,
// the unit dispatchPeer forwards into the event loop so HandleMessage
// is only ever called from the single goroutine that owns peer state.
type peerMsg struct {
	pe  *peer.Peer
	msg peerprotocol.Message
}

// announceResult is what announce() hands to the event loop: the new
// addresses to dial plus whatever expected peer-ids a dictionary-form
// response named for them (§4.7).
type announceResult struct {
	addrs   []*net.TCPAddr
	peerIDs map[string][20]byte
}

// Torrent is one torrent's driver: the C8 event loop, its tracker tier
// manager, and the peers it has connected.
type Torrent struct {
	config   *rain.Config
	info     *metainfo.Info
	infoHash [20]byte
	peerID   [20]byte
	name     string

	tiers *announcer.TierManager

	sto    storage.Storage
	picker piecepicker.Picker
	have   *bitfield.Bitfield

	log logger.Logger

	mu                sync.Mutex
	uploaded          int64
	downloaded        int64
	lastAnnounce      time.Time
	announceInterval  time.Duration
	minAnnounceIntvl  time.Duration
	seeders, leechers int32

	downloadSpeed metrics.EWMA
	uploadSpeed   metrics.EWMA

	peers    map[[20]byte]*peer.Peer
	addrList *addrlist.AddrList

	// expectedPeerIDs records the peer-id a dictionary-form announce
	// response named for an address, keyed by its String(). Only the
	// run loop goroutine ever reads or writes it.
	expectedPeerIDs map[string][20]byte

	optimisticUnchoked map[[20]byte]struct{}

	peerDisconnectedC chan *peer.Peer
	peerAdoptedC      chan *peer.Peer
	peerMsgC          chan peerMsg
	newAddrsC         chan announceResult
	addPeersC         chan []*net.TCPAddr
	incomingConnC     chan net.Conn

	startC, stopC chan struct{}
	closeC        chan struct{}
	stoppedC      chan struct{}

	active bool
}

// New builds a driver for mi, ready to Start. sto and picker are
// optional (nil means this run never actually transfers piece data,
// which is out of this library's scope).
func New(cfg *rain.Config, mi *metainfo.MetaInfo, peerID [20]byte, sto storage.Storage, picker piecepicker.Picker, log logger.Logger) (*Torrent, error) {
	if cfg == nil {
		d := rain.DefaultConfig
		cfg = &d
	}
	if log == nil {
		log = logger.New("torrent " + mi.Info.Name)
	}

	mgr, err := trackermanager.New(cfg.TrackerHTTPProxy, cfg.TrackerHTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("session: building tracker manager: %w", err)
	}

	tierURLs := dedupTiers(mi)
	tm, err := announcer.New(tierURLs, mgr.For, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, fmt.Errorf("session: building tier manager: %w", err)
	}

	t := &Torrent{
		config:             cfg,
		info:               mi.Info,
		infoHash:           mi.Info.InfoHash,
		peerID:             peerID,
		name:               mi.Info.Name,
		tiers:              tm,
		sto:                sto,
		picker:             picker,
		have:               bitfield.New(uint32(mi.Info.PiecesAmount())),
		log:                log,
		downloadSpeed:      metrics.NewEWMA1(),
		uploadSpeed:        metrics.NewEWMA1(),
		peers:              make(map[[20]byte]*peer.Peer),
		addrList:           addrlist.New(),
		expectedPeerIDs:    make(map[string][20]byte),
		optimisticUnchoked: make(map[[20]byte]struct{}),
		peerDisconnectedC:  make(chan *peer.Peer, 16),
		peerAdoptedC:       make(chan *peer.Peer, 16),
		peerMsgC:           make(chan peerMsg, 256),
		newAddrsC:          make(chan announceResult, 16),
		addPeersC:          make(chan []*net.TCPAddr, 16),
		incomingConnC:      make(chan net.Conn, 16),
		startC:             make(chan struct{}),
		stopC:              make(chan struct{}),
		closeC:             make(chan struct{}),
		stoppedC:           make(chan struct{}),
	}
	return t, nil
}

func dedupTiers(mi *metainfo.MetaInfo) [][]string {
	if len(mi.AnnounceList) == 0 {
		return [][]string{{mi.Announce}}
	}
	seen := make(map[string]struct{})
	var tiers [][]string
	for _, tier := range mi.AnnounceList {
		var out []string
		for _, u := range tier {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
		if len(out) > 0 {
			tiers = append(tiers, out)
		}
	}
	if len(tiers) == 0 {
		return [][]string{{mi.Announce}}
	}
	return tiers
}

// Name is the torrent's display name, from metainfo.
func (t *Torrent) Name() string { return t.name }

// InfoHash is this torrent's 20-byte identity.
func (t *Torrent) InfoHash() [20]byte { return t.infoHash }

// Stats snapshots running totals and the tracker's last-known swarm
// view.
func (t *Torrent) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Uploaded:      t.uploaded,
		Downloaded:    t.downloaded,
		Left:          t.info.TotalSize() - t.downloaded,
		Seeders:       t.seeders,
		Leechers:      t.leechers,
		Interval:      t.announceInterval,
		LastAnnounce:  t.lastAnnounce,
		DownloadSpeed: int64(t.downloadSpeed.Rate()),
		UploadSpeed:   int64(t.uploadSpeed.Rate()),
		NumPeers:      len(t.peers),
	}
}

// Start begins the driver's event loop in its own goroutine, then
// kicks off the initial event=started announce.
func (t *Torrent) Start() {
	go t.run()
	t.startC <- struct{}{}
}

// Stop announces event=stopped unconditionally and closes every peer
// socket, synchronously with the event loop.
func (t *Torrent) Stop() {
	t.stopC <- struct{}{}
}

// Close tears the driver down permanently; it cannot be restarted.
func (t *Torrent) Close() {
	close(t.closeC)
	<-t.stoppedC
}

// AddPeers manually seeds the address queue, e.g. from a caller's own
// peer source.
func (t *Torrent) AddPeers(addrs []*net.TCPAddr) {
	select {
	case t.addPeersC <- addrs:
	case <-t.closeC:
	}
}

// HandleIncoming hands an already-accepted net.Conn to the driver for
// the incoming handshake and adoption into the peer set.
func (t *Torrent) HandleIncoming(nc net.Conn) {
	select {
	case t.incomingConnC <- nc:
	case <-t.closeC:
		nc.Close()
	}
}

func (t *Torrent) announce(ctx context.Context, event tracker.Event) {
	t.mu.Lock()
	req := tracker.AnnounceRequest{
		InfoHash:   t.infoHash,
		PeerID:     t.peerID,
		Port:       t.config.Port,
		Uploaded:   t.uploaded,
		Downloaded: t.downloaded,
		Left:       t.info.TotalSize() - t.downloaded,
		Event:      event,
		NumWant:    t.config.TrackerNumWant,
	}
	t.mu.Unlock()

	resp, trackerURL, err := t.tiers.Announce(ctx, req)
	if err != nil {
		t.log.Warningln("announce failed:", err)
		return
	}
	t.log.Debugln("announced to", trackerURL)

	t.mu.Lock()
	t.lastAnnounce = time.Now()
	t.announceInterval = time.Duration(resp.Interval) * time.Second
	if resp.MinInterval > 0 {
		t.minAnnounceIntvl = time.Duration(resp.MinInterval) * time.Second
		if t.announceInterval < t.minAnnounceIntvl {
			t.announceInterval = t.minAnnounceIntvl
		}
	}
	t.seeders = resp.Seeders
	t.leechers = resp.Leechers
	t.mu.Unlock()

	select {
	case t.newAddrsC <- announceResult{addrs: resp.Peers, peerIDs: resp.PeerIDs}:
	case <-t.closeC:
	}
}
