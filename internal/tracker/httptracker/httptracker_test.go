package httptracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shammishailaj/gorain/internal/tracker"
	"github.com/stretchr/testify/require"
)

func TestAnnounceParsesCompactPeers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("compact"))
		peers := []byte{127, 0, 0, 1, 0x1A, 0xE1} // 127.0.0.1:6881
		body := "d8:intervali1800e5:peers6:" + string(peers) + "e"
		w.Write([]byte(body))
	}))
	defer srv.Close()

	tr := New(srv.URL+"/announce", srv.Client())
	var ih, pid [20]byte
	resp, err := tr.Announce(context.Background(), tracker.AnnounceRequest{InfoHash: ih, PeerID: pid, Port: 6881})
	require.NoError(t, err)
	require.EqualValues(t, 1800, resp.Interval)
	require.Len(t, resp.Peers, 1)
	require.Equal(t, "127.0.0.1", resp.Peers[0].IP.String())
	require.Equal(t, 6881, resp.Peers[0].Port)
}

func TestAnnounceFailureReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d14:failure reason14:not registerede"))
	}))
	defer srv.Close()

	tr := New(srv.URL+"/announce", srv.Client())
	var ih, pid [20]byte
	_, err := tr.Announce(context.Background(), tracker.AnnounceRequest{InfoHash: ih, PeerID: pid, Port: 6881})
	require.Error(t, err)
	var terr *tracker.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "not registered", terr.Reason)
}

func TestScrapeURLRewriting(t *testing.T) {
	u, err := buildScrapeURL("http://tracker.example.com/announce", tracker.ScrapeRequest{})
	require.NoError(t, err)
	require.Contains(t, u, "/scrape")
}
