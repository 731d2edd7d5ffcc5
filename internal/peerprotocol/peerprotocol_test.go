package peerprotocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var ih, pid [20]byte
	copy(ih[:], "01234567890123456789")
	copy(pid[:], "abcdefghijklmnopqrst")
	h := NewHandshake(ih, pid, [8]byte{0, 0, 0, 0, 0, 0x10, 0, 0})

	buf := h.Marshal()
	require.Len(t, buf, HandshakeLen)

	got, err := ReadHandshake(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHandshakeRejectsWrongProtocol(t *testing.T) {
	buf := []byte("\x04fake" + string(make([]byte, HandshakeLen-5)))
	_, err := ParseHandshake(buf)
	require.ErrorIs(t, err, ErrUnsupportedProtocol)
}

func TestHaveMessageWireFormat(t *testing.T) {
	got := Marshal(HaveMessage{Index: 1234})
	want := []byte{0x00, 0x00, 0x00, 0x05, 0x04, 0x00, 0x00, 0x04, 0xD2}
	require.Equal(t, want, got)

	var dec Decoder
	dec.Feed(got)
	msg, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, HaveMessage{Index: 1234}, msg)
}

var allMessages = []Message{
	ChokeMessage{},
	UnchokeMessage{},
	InterestedMessage{},
	NotInterestedMessage{},
	HaveMessage{Index: 7},
	BitfieldMessage{Data: []byte{0xFF, 0x00}},
	RequestMessage{Index: 1, Begin: 2, Length: 3},
	PieceMessage{Index: 1, Begin: 2, Block: []byte("hello")},
	CancelMessage{Index: 1, Begin: 2, Length: 3},
	PortMessage{Port: 6881},
}

func TestMessageRoundTrip(t *testing.T) {
	for _, m := range allMessages {
		var dec Decoder
		dec.Feed(Marshal(m))
		got, err := dec.Next()
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestKeepAliveRoundTrip(t *testing.T) {
	var dec Decoder
	dec.Feed(Marshal(KeepAliveMessage{}))
	got, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, KeepAliveMessage{}, got)
}

func TestPartialFrameByteAtATime(t *testing.T) {
	var stream []byte
	for _, m := range allMessages {
		stream = append(stream, Marshal(m)...)
	}

	var dec Decoder
	var got []Message
	for i := 0; i < len(stream); i++ {
		dec.Feed(stream[i : i+1])
		for {
			msg, err := dec.Next()
			if err == ErrFrameTruncated {
				break
			}
			require.NoError(t, err)
			got = append(got, msg)
		}
	}
	require.Equal(t, allMessages, got)
}

func TestUnknownMessageSkipsFrameButKeepsDecoding(t *testing.T) {
	unknown := []byte{0x00, 0x00, 0x00, 0x02, 0x63, 0x00} // id 99, 1 byte payload
	known := Marshal(ChokeMessage{})

	var dec Decoder
	dec.Feed(unknown)
	dec.Feed(known)

	_, err := dec.Next()
	var ume *UnknownMessageError
	require.ErrorAs(t, err, &ume)
	require.EqualValues(t, 99, ume.ID)

	msg, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, ChokeMessage{}, msg)
}

func TestNotEnoughBytesIsNotAnError(t *testing.T) {
	var dec Decoder
	dec.Feed([]byte{0x00, 0x00})
	_, err := dec.Next()
	require.ErrorIs(t, err, ErrFrameTruncated)
}
