package peerconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/shammishailaj/gorain/internal/peerprotocol"
)

// ErrOwnConnection is returned when a dialed or accepted peer turns out
// to be ourself, identified by a matching peer-id.
var ErrOwnConnection = errors.New("peerconn: dropped own connection")

// DialOutgoing opens a TCP connection to addr, performs the outgoing
// handshake (we already know infoHash, since we are the one announcing
// it) and returns a ready-to-Run Conn plus the reserved bytes the peer
// sent back. expectedPeerID, when non-nil, is the peer-id a dictionary-
// form tracker announce response named for this address (§4.7); a
// handshake returning any other id is rejected with
// ErrPeerIDMismatch. Compact-form announces never supply one, so
// expectedPeerID is nil and no comparison happens.
func DialOutgoing(ctx context.Context, addr *net.TCPAddr, ourID, infoHash [20]byte, reserved [8]byte, expectedPeerID *[20]byte, dialTimeout, handshakeTimeout time.Duration, log logInterface) (*Conn, [8]byte, error) {
	d := net.Dialer{Timeout: dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, [8]byte{}, fmt.Errorf("peerconn: dial: %w", err)
	}

	theirReserved, peerID, err := outgoingHandshake(nc, ourID, infoHash, reserved, handshakeTimeout)
	if err != nil {
		nc.Close()
		return nil, [8]byte{}, err
	}
	if peerID == ourID {
		nc.Close()
		return nil, [8]byte{}, ErrOwnConnection
	}
	if expectedPeerID != nil && peerID != *expectedPeerID {
		nc.Close()
		return nil, [8]byte{}, &peerprotocol.HandshakeError{Err: peerprotocol.ErrPeerIDMismatch}
	}
	return New(nc, peerID, log), theirReserved, nil
}

// AcceptIncoming performs the incoming handshake on an already-accepted
// net.Conn. checkInfoHash is consulted with the info-hash the remote
// peer sent, to decide whether we are serving that torrent at all.
func AcceptIncoming(nc net.Conn, ourID [20]byte, reserved [8]byte, checkInfoHash func([20]byte) bool, handshakeTimeout time.Duration, log logInterface) (*Conn, [20]byte, [8]byte, error) {
	infoHash, theirReserved, peerID, err := incomingHandshake(nc, ourID, reserved, checkInfoHash, handshakeTimeout)
	if err != nil {
		nc.Close()
		return nil, [20]byte{}, [8]byte{}, err
	}
	if peerID == ourID {
		nc.Close()
		return nil, [20]byte{}, [8]byte{}, ErrOwnConnection
	}
	return New(nc, peerID, log), infoHash, theirReserved, nil
}

// logInterface is the narrow slice of logger.Logger peerconn needs,
// kept local so this package does not import internal/logger just for a
// type name.
type logInterface interface {
	Debugln(args ...interface{})
}

func outgoingHandshake(nc net.Conn, ourID, infoHash [20]byte, reserved [8]byte, timeout time.Duration) (theirReserved [8]byte, peerID [20]byte, err error) {
	nc.SetDeadline(time.Now().Add(timeout))
	defer nc.SetDeadline(time.Time{})

	out := peerprotocol.NewHandshake(infoHash, ourID, reserved)
	if _, err = nc.Write(out.Marshal()); err != nil {
		return theirReserved, peerID, err
	}
	in, err := peerprotocol.ReadHandshake(nc)
	if err != nil {
		return theirReserved, peerID, err
	}
	if !bytes.Equal(in.InfoHash[:], infoHash[:]) {
		return theirReserved, peerID, &peerprotocol.HandshakeError{Err: peerprotocol.ErrInfoHashMismatch}
	}
	return in.Reserved, in.PeerID, nil
}

func incomingHandshake(nc net.Conn, ourID [20]byte, reserved [8]byte, checkInfoHash func([20]byte) bool, timeout time.Duration) (infoHash [20]byte, theirReserved [8]byte, peerID [20]byte, err error) {
	nc.SetDeadline(time.Now().Add(timeout))
	defer nc.SetDeadline(time.Time{})

	in, err := peerprotocol.ReadHandshake(nc)
	if err != nil {
		return infoHash, theirReserved, peerID, err
	}
	if !checkInfoHash(in.InfoHash) {
		return infoHash, theirReserved, peerID, &peerprotocol.HandshakeError{Err: peerprotocol.ErrInfoHashMismatch}
	}
	out := peerprotocol.NewHandshake(in.InfoHash, ourID, reserved)
	if _, err = nc.Write(out.Marshal()); err != nil {
		return infoHash, theirReserved, peerID, err
	}
	return in.InfoHash, in.Reserved, in.PeerID, nil
}
