package peer

import (
	"testing"

	"github.com/shammishailaj/gorain/internal/logger"
	"github.com/shammishailaj/gorain/internal/peerprotocol"
	"github.com/stretchr/testify/require"
)

func readyPeer(piecesAmount uint32) *Peer {
	return &Peer{
		AmChoking:    true,
		PeerChoking:  true,
		piecesAmount: piecesAmount,
		state:        Ready,
		handshaked:   true,
		log:          logger.New("test"),
	}
}

func TestHandleMessageUpdatesChokeInterestBooleans(t *testing.T) {
	p := readyPeer(8)

	_, err := p.HandleMessage(peerprotocol.UnchokeMessage{})
	require.NoError(t, err)
	require.False(t, p.PeerChoking)

	_, err = p.HandleMessage(peerprotocol.InterestedMessage{})
	require.NoError(t, err)
	require.True(t, p.PeerInterested)

	_, err = p.HandleMessage(peerprotocol.ChokeMessage{})
	require.NoError(t, err)
	require.True(t, p.PeerChoking)
}

func TestHandleHaveOutOfRangeIsRejected(t *testing.T) {
	p := readyPeer(4)
	_, err := p.HandleMessage(peerprotocol.HaveMessage{Index: 4})
	require.ErrorIs(t, err, ErrHaveIndexOutOfRange)
}

func TestHandleHaveSetsBitfieldBit(t *testing.T) {
	p := readyPeer(4)
	ev, err := p.HandleMessage(peerprotocol.HaveMessage{Index: 2})
	require.NoError(t, err)
	require.Equal(t, EvHave, ev.Kind)
	require.True(t, p.Bitfield.Test(2))
}

func TestBitfieldAcceptedOnceWithCorrectLength(t *testing.T) {
	p := readyPeer(10) // ceil(10/8) = 2 bytes
	_, err := p.HandleMessage(peerprotocol.BitfieldMessage{Data: []byte{0xFF, 0xC0}})
	require.NoError(t, err)

	_, err = p.HandleMessage(peerprotocol.BitfieldMessage{Data: []byte{0xFF, 0xC0}})
	require.ErrorIs(t, err, ErrBitfieldAlreadyReceived)
}

func TestBitfieldWrongLengthRejected(t *testing.T) {
	p := readyPeer(10)
	_, err := p.HandleMessage(peerprotocol.BitfieldMessage{Data: []byte{0xFF}})
	require.ErrorIs(t, err, ErrBitfieldLength)
}

func TestRequestAndPieceSurfaceAsEvents(t *testing.T) {
	p := readyPeer(4)
	ev, err := p.HandleMessage(peerprotocol.RequestMessage{Index: 1, Begin: 0, Length: 16384})
	require.NoError(t, err)
	require.Equal(t, EvRequest, ev.Kind)
	require.EqualValues(t, 1, ev.Request.Index)

	ev, err = p.HandleMessage(peerprotocol.PieceMessage{Index: 1, Begin: 0, Block: []byte("data")})
	require.NoError(t, err)
	require.Equal(t, EvPiece, ev.Kind)
	require.Equal(t, []byte("data"), ev.Piece.Block)
}

func TestSendBeforeHandshakeIsRejected(t *testing.T) {
	p := &Peer{piecesAmount: 4, state: NotConnected, log: logger.New("test")}
	err := p.SendInterested()
	require.ErrorIs(t, err, ErrNotHandshaked)
}
