// Package peer implements the per-connection BitTorrent peer session:
// the five interest/choke booleans, the connection lifecycle
// (NotConnected -> Connecting -> Handshaking -> Ready -> Destroyed) and
// the reactive dispatch of steady-state PWP messages. It owns no piece
// storage; Request/Piece/Cancel/Have are surfaced to the caller as
// Events so the torrent driver decides what to do about them.
package peer

import (
	"context"
	"net"
	"time"

	"github.com/shammishailaj/gorain/internal/bitfield"
	"github.com/shammishailaj/gorain/internal/logger"
	"github.com/shammishailaj/gorain/internal/peerconn"
	"github.com/shammishailaj/gorain/internal/peerprotocol"
)

// State is the peer session's connection lifecycle stage.
type State int

const (
	NotConnected State = iota
	Connecting
	Handshaking
	Ready
	Destroyed
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "not_connected"
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// EventKind discriminates the payload carried by an Event.
type EventKind int

const (
	EvChoke EventKind = iota
	EvUnchoke
	EvInterested
	EvNotInterested
	EvHave
	EvBitfield
	EvRequest
	EvPiece
	EvCancel
	EvPort
	EvKeepAlive
)

// Event is the decoded, state-machine-validated result of one incoming
// message, handed to the torrent driver for piece-level interpretation.
type Event struct {
	Kind    EventKind
	Index   uint32
	Request peerprotocol.RequestMessage
	Piece   peerprotocol.PieceMessage
	Cancel  peerprotocol.CancelMessage
	Port    uint16
}

// Peer is one remote peer's session: the wire connection plus the
// negotiated PWP state.
type Peer struct {
	Addr *net.TCPAddr

	id       [20]byte
	reserved [8]byte

	AmChoking      bool
	AmInterested   bool
	PeerChoking    bool
	PeerInterested bool

	handshaked bool
	sentBf     bool
	recvBf     bool

	Bitfield *bitfield.Bitfield

	piecesAmount uint32

	// AutoUnchokeOnInterested mirrors Config.AutoUnchokeOnInterested: when
	// true (the default), an incoming Interested while am_choking is true
	// immediately unchokes the peer.
	AutoUnchokeOnInterested bool

	state State
	conn  *peerconn.Conn
	log   logger.Logger

	lastActivity time.Time
}

// New constructs a not-yet-connected peer session for addr, a remote
// endpoint expected to serve a torrent with piecesAmount pieces.
func New(addr *net.TCPAddr, piecesAmount uint32, log logger.Logger) *Peer {
	return &Peer{
		Addr:                    addr,
		AmChoking:               true,
		PeerChoking:             true,
		piecesAmount:            piecesAmount,
		AutoUnchokeOnInterested: true,
		state:                   NotConnected,
		log:                     log,
		lastActivity:            time.Now(),
	}
}

func (p *Peer) State() State   { return p.state }
func (p *Peer) ID() [20]byte   { return p.id }
func (p *Peer) IsHandshaked() bool { return p.handshaked }

// Connect dials addr and performs the outgoing handshake, driving the
// state machine NotConnected -> Connecting -> Handshaking -> Ready (or
// Destroyed on any failure). On success the connection's reader/writer
// goroutines are already running. expectedPeerID, when non-nil, is
// compared against the handshake's returned peer-id and the connection
// is refused on mismatch; see peerconn.DialOutgoing.
func (p *Peer) Connect(ctx context.Context, ourID, infoHash [20]byte, reserved [8]byte, expectedPeerID *[20]byte, dialTimeout, handshakeTimeout time.Duration) error {
	p.state = Connecting
	p.state = Handshaking
	conn, theirReserved, err := peerconn.DialOutgoing(ctx, p.Addr, ourID, infoHash, reserved, expectedPeerID, dialTimeout, handshakeTimeout, p.log)
	if err != nil {
		p.state = Destroyed
		return err
	}
	p.conn = conn
	p.id = conn.ID()
	p.reserved = theirReserved
	p.handshaked = true
	p.state = Ready
	p.lastActivity = time.Now()
	go conn.Run()
	return nil
}

// Accept adopts an already-dialed, not-yet-handshaken incoming
// net.Conn, running the incoming handshake side. checkInfoHash decides
// whether we serve the torrent the remote peer named.
func Accept(nc net.Conn, ourID [20]byte, reserved [8]byte, checkInfoHash func([20]byte) bool, handshakeTimeout time.Duration, piecesAmount uint32, log logger.Logger) (*Peer, [20]byte, error) {
	conn, infoHash, theirReserved, err := peerconn.AcceptIncoming(nc, ourID, reserved, checkInfoHash, handshakeTimeout, log)
	if err != nil {
		return nil, [20]byte{}, err
	}
	p := &Peer{
		Addr:                    conn.Addr(),
		AmChoking:               true,
		PeerChoking:             true,
		piecesAmount:            piecesAmount,
		AutoUnchokeOnInterested: true,
		log:                     log,
		lastActivity:            time.Now(),
	}
	p.conn = conn
	p.id = conn.ID()
	p.reserved = theirReserved
	p.handshaked = true
	p.state = Ready
	go conn.Run()
	return p, infoHash, nil
}

// Messages exposes the underlying connection's decoded message stream,
// for the driver's select loop. Valid only once State() == Ready.
func (p *Peer) Messages() <-chan peerprotocol.Message { return p.conn.Messages() }

// HandleMessage applies msg to the session state machine and returns an
// Event describing what the driver should react to.
func (p *Peer) HandleMessage(msg peerprotocol.Message) (Event, error) {
	if p.state != Ready {
		return Event{}, ErrDestroyed
	}
	p.lastActivity = time.Now()

	switch m := msg.(type) {
	case peerprotocol.KeepAliveMessage:
		_ = p.send(peerprotocol.KeepAliveMessage{})
		return Event{Kind: EvKeepAlive}, nil
	case peerprotocol.ChokeMessage:
		p.PeerChoking = true
		return Event{Kind: EvChoke}, nil
	case peerprotocol.UnchokeMessage:
		p.PeerChoking = false
		return Event{Kind: EvUnchoke}, nil
	case peerprotocol.InterestedMessage:
		p.PeerInterested = true
		if p.AutoUnchokeOnInterested && p.AmChoking {
			_ = p.SendUnchoke()
		}
		return Event{Kind: EvInterested}, nil
	case peerprotocol.NotInterestedMessage:
		p.PeerInterested = false
		return Event{Kind: EvNotInterested}, nil
	case peerprotocol.HaveMessage:
		if m.Index >= p.piecesAmount {
			return Event{}, ErrHaveIndexOutOfRange
		}
		if p.Bitfield == nil {
			p.Bitfield = bitfield.New(p.piecesAmount)
		}
		p.Bitfield.Set(m.Index)
		return Event{Kind: EvHave, Index: m.Index}, nil
	case peerprotocol.BitfieldMessage:
		if p.recvBf {
			return Event{}, ErrBitfieldAlreadyReceived
		}
		bf, err := bitfield.NewBytes(m.Data, p.piecesAmount)
		if err != nil {
			return Event{}, ErrBitfieldLength
		}
		p.recvBf = true
		p.Bitfield = bf
		return Event{Kind: EvBitfield}, nil
	case peerprotocol.RequestMessage:
		return Event{Kind: EvRequest, Request: m}, nil
	case peerprotocol.PieceMessage:
		return Event{Kind: EvPiece, Piece: m}, nil
	case peerprotocol.CancelMessage:
		return Event{Kind: EvCancel, Cancel: m}, nil
	case peerprotocol.PortMessage:
		return Event{Kind: EvPort, Port: m.Port}, nil
	default:
		return Event{}, nil
	}
}

// send gates every outgoing message behind a completed handshake.
func (p *Peer) send(msg peerprotocol.Message) error {
	if !p.handshaked || p.state != Ready {
		return ErrNotHandshaked
	}
	p.conn.SendMessage(msg)
	return nil
}

func (p *Peer) SendChoke() error {
	p.AmChoking = true
	return p.send(peerprotocol.ChokeMessage{})
}

func (p *Peer) SendUnchoke() error {
	p.AmChoking = false
	return p.send(peerprotocol.UnchokeMessage{})
}

func (p *Peer) SendInterested() error {
	p.AmInterested = true
	return p.send(peerprotocol.InterestedMessage{})
}

func (p *Peer) SendNotInterested() error {
	p.AmInterested = false
	return p.send(peerprotocol.NotInterestedMessage{})
}

func (p *Peer) SendHave(index uint32) error {
	return p.send(peerprotocol.HaveMessage{Index: index})
}

// SendBitfield may be sent at most once, immediately after the
// handshake completes.
func (p *Peer) SendBitfield(bf *bitfield.Bitfield) error {
	if p.sentBf {
		return ErrBitfieldAlreadySent
	}
	if err := p.send(peerprotocol.BitfieldMessage{Data: bf.Bytes()}); err != nil {
		return err
	}
	p.sentBf = true
	return nil
}

func (p *Peer) SendRequest(index, begin, length uint32) error {
	return p.send(peerprotocol.RequestMessage{Index: index, Begin: begin, Length: length})
}

func (p *Peer) SendPiece(index, begin uint32, block []byte) error {
	return p.send(peerprotocol.PieceMessage{Index: index, Begin: begin, Block: block})
}

func (p *Peer) SendCancel(index, begin, length uint32) error {
	return p.send(peerprotocol.CancelMessage{Index: index, Begin: begin, Length: length})
}

func (p *Peer) SendPort(port uint16) error {
	return p.send(peerprotocol.PortMessage{Port: port})
}

// KeepAliveIfIdle sends a keep-alive frame if nothing has been written
// to the wire for at least interval, the BEP-3 recommendation being
// ~115s against a 120s read timeout peers commonly enforce.
func (p *Peer) KeepAliveIfIdle(interval time.Duration) error {
	if p.state != Ready {
		return nil
	}
	if time.Since(p.conn.LastSend()) < interval {
		return nil
	}
	return p.send(peerprotocol.KeepAliveMessage{})
}

// IdleFor reports how long it has been since the last message was
// received from this peer, for the driver's idle-teardown timer.
func (p *Peer) IdleFor() time.Duration { return time.Since(p.lastActivity) }

// Destroy closes the underlying connection and marks the session over.
func (p *Peer) Destroy() {
	if p.state == Destroyed {
		return
	}
	p.state = Destroyed
	if p.conn != nil {
		p.conn.Close()
	}
}
