package udptracker

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/shammishailaj/gorain/internal/tracker"
	"github.com/stretchr/testify/require"
)

// fakeServer answers every connect (always handing out the same
// connection id) and every announce it receives, until its socket is
// closed or a datagram shorter than 16 bytes arrives.
func fakeServer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	go func() {
		buf := make([]byte, 2048)
		var connID uint64 = 0xdeadbeefcafe
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			action := binary.BigEndian.Uint32(buf[8:12])
			txID := binary.BigEndian.Uint32(buf[12:16])
			switch action {
			case actionConnect:
				resp := make([]byte, 16)
				binary.BigEndian.PutUint32(resp[0:4], actionConnect)
				binary.BigEndian.PutUint32(resp[4:8], txID)
				binary.BigEndian.PutUint64(resp[8:16], connID)
				conn.WriteToUDP(resp, addr)
			case actionAnnounce:
				resp := make([]byte, 20)
				binary.BigEndian.PutUint32(resp[0:4], actionAnnounce)
				binary.BigEndian.PutUint32(resp[4:8], txID)
				binary.BigEndian.PutUint32(resp[8:12], 1800)
				binary.BigEndian.PutUint32(resp[12:16], 2)
				binary.BigEndian.PutUint32(resp[16:20], 5)
				conn.WriteToUDP(resp, addr)
			}
			if n < 16 {
				return
			}
		}
	}()
	return conn
}

func TestAnnounceRoundTrip(t *testing.T) {
	server := fakeServer(t)
	defer server.Close()

	tr, err := New("udp://"+server.LocalAddr().String()+"/announce", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var infoHash, peerID [20]byte
	resp, err := tr.Announce(ctx, tracker.AnnounceRequest{
		InfoHash: infoHash,
		PeerID:   peerID,
		Port:     6881,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1800, resp.Interval)
	require.EqualValues(t, 2, resp.Leechers)
	require.EqualValues(t, 5, resp.Seeders)
}

func TestConnectionIDIsCached(t *testing.T) {
	server := fakeServer(t)
	defer server.Close()

	tr, err := New("udp://"+server.LocalAddr().String()+"/announce", nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, conn1, err := tr.connect(ctx)
	require.NoError(t, err)
	conn1.Close()

	require.NotZero(t, tr.connID)
	cachedID := tr.connID

	_, conn2, err := tr.connect(ctx)
	require.NoError(t, err)
	conn2.Close()
	require.Equal(t, cachedID, tr.connID)
}
