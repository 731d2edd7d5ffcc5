// Package httptracker implements the HTTP/HTTPS tracker announce and
// scrape wire protocol: GET requests with query-encoded binary fields,
// bencoded bodies decoded with our own internal/bencode codec.
package httptracker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shammishailaj/gorain/internal/bencode"
	"github.com/shammishailaj/gorain/internal/tracker"
)

// Tracker is an HTTP(S) announce/scrape client for a single tracker
// URL.
type Tracker struct {
	announceURL string
	client      *http.Client
}

// New builds a Tracker against announceURL, making requests through
// client. Passing an http.Client built with a proxy-aware Transport
// (see trackermanager) routes every request through that proxy.
func New(announceURL string, client *http.Client) *Tracker {
	if client == nil {
		client = http.DefaultClient
	}
	return &Tracker{announceURL: announceURL, client: client}
}

func (t *Tracker) URL() string { return t.announceURL }

func (t *Tracker) Announce(ctx context.Context, req tracker.AnnounceRequest) (*tracker.AnnounceResponse, error) {
	u, err := buildAnnounceURL(t.announceURL, req)
	if err != nil {
		return nil, &tracker.TransportIOError{Err: err}
	}
	v, err := t.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return parseAnnounceResponse(v)
}

func (t *Tracker) Scrape(ctx context.Context, req tracker.ScrapeRequest) (*tracker.ScrapeResponse, error) {
	u, err := buildScrapeURL(t.announceURL, req)
	if err != nil {
		return nil, &tracker.TransportIOError{Err: err}
	}
	v, err := t.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return parseScrapeResponse(v)
}

func (t *Tracker) get(ctx context.Context, u string) (bencode.Value, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return bencode.Value{}, &tracker.TransportIOError{Err: err}
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return bencode.Value{}, tracker.ErrCancelled
		}
		return bencode.Value{}, &tracker.UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return bencode.Value{}, &tracker.UnreachableError{Err: fmt.Errorf("http status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return bencode.Value{}, &tracker.TransportIOError{Err: err}
	}
	v, err := bencode.Decode(body)
	if err != nil {
		return bencode.Value{}, &tracker.TransportIOError{Err: err}
	}
	return v, nil
}

// buildAnnounceURL maps to the `announce` path; scrape is the same
// URL with the last path segment's "announce" substring changed to
// "scrape", per the de facto convention all trackers follow (there is
// no formal spec for it).
func buildAnnounceURL(base string, req tracker.AnnounceRequest) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("info_hash", string(req.InfoHash[:]))
	q.Set("peer_id", string(req.PeerID[:]))
	q.Set("port", strconv.Itoa(int(req.Port)))
	q.Set("uploaded", strconv.FormatInt(req.Uploaded, 10))
	q.Set("downloaded", strconv.FormatInt(req.Downloaded, 10))
	q.Set("left", strconv.FormatInt(req.Left, 10))
	q.Set("compact", "1")
	if req.Event != tracker.EventNone {
		q.Set("event", req.Event.String())
	}
	if req.NumWant != 0 {
		q.Set("numwant", strconv.Itoa(int(req.NumWant)))
	}
	if req.Key != 0 {
		q.Set("key", strconv.FormatUint(uint64(req.Key), 16))
	}
	u.RawQuery = encodeRawBinary(q)
	return u.String(), nil
}

func buildScrapeURL(announce string, req tracker.ScrapeRequest) (string, error) {
	u, err := url.Parse(announce)
	if err != nil {
		return "", err
	}
	idx := strings.LastIndex(u.Path, "/")
	if idx < 0 || !strings.Contains(u.Path[idx+1:], "announce") {
		return "", fmt.Errorf("tracker does not support scrape convention: %s", announce)
	}
	u.Path = u.Path[:idx+1] + strings.Replace(u.Path[idx+1:], "announce", "scrape", 1)

	q := url.Values{}
	for _, ih := range req.InfoHashes {
		q.Add("info_hash", string(ih[:]))
	}
	u.RawQuery = encodeRawBinary(q)
	return u.String(), nil
}

// encodeRawBinary is url.Values.Encode: info_hash/peer_id are raw
// 20-byte binary strings that Encode percent-escapes correctly, keys are
// emitted sorted, and the values of a repeated key (scrape's info_hash
// list) keep their insertion order.
func encodeRawBinary(v url.Values) string {
	return v.Encode()
}

func parseAnnounceResponse(v bencode.Value) (*tracker.AnnounceResponse, error) {
	if reason, ok := v.Get("failure reason"); ok {
		return nil, &tracker.Error{Reason: string(reason.Bytes())}
	}
	resp := &tracker.AnnounceResponse{}
	if iv, ok := v.Get("interval"); ok {
		resp.Interval = int32(iv.Int())
	}
	if iv, ok := v.Get("min interval"); ok {
		resp.MinInterval = int32(iv.Int())
	}
	if iv, ok := v.Get("incomplete"); ok {
		resp.Leechers = int32(iv.Int())
	}
	if iv, ok := v.Get("complete"); ok {
		resp.Seeders = int32(iv.Int())
	}

	peersVal, ok := v.Get("peers")
	if !ok {
		return nil, &tracker.TransportIOError{Err: fmt.Errorf("tracker response missing peers")}
	}
	switch peersVal.Kind() {
	case bencode.String:
		addrs, err := tracker.ParseCompactPeers(peersVal.Bytes())
		if err != nil {
			return nil, &tracker.TransportIOError{Err: err}
		}
		resp.Peers = addrs
	case bencode.List:
		for _, entry := range peersVal.List() {
			ipv, ok := entry.Get("ip")
			if !ok {
				continue
			}
			portv, ok := entry.Get("port")
			if !ok {
				continue
			}
			ip := net.ParseIP(ipv.Str())
			if ip == nil {
				continue
			}
			addr := &net.TCPAddr{IP: ip, Port: int(portv.Int())}
			resp.Peers = append(resp.Peers, addr)
			if idv, ok := entry.Get("peer id"); ok && len(idv.Bytes()) == 20 {
				if resp.PeerIDs == nil {
					resp.PeerIDs = make(map[string][20]byte)
				}
				var id [20]byte
				copy(id[:], idv.Bytes())
				resp.PeerIDs[addr.String()] = id
			}
		}
	default:
		return nil, &tracker.TransportIOError{Err: fmt.Errorf("tracker: unexpected peers encoding")}
	}
	return resp, nil
}

func parseScrapeResponse(v bencode.Value) (*tracker.ScrapeResponse, error) {
	filesVal, ok := v.Get("files")
	if !ok {
		return nil, &tracker.TransportIOError{Err: fmt.Errorf("tracker response missing files")}
	}
	out := &tracker.ScrapeResponse{Stats: make(map[[20]byte]tracker.ScrapeStats)}
	for _, entry := range filesVal.Entries() {
		if len(entry.Key) != 20 {
			continue
		}
		var ih [20]byte
		copy(ih[:], entry.Key)
		stats := tracker.ScrapeStats{}
		if iv, ok := entry.Value.Get("complete"); ok {
			stats.Complete = int32(iv.Int())
		}
		if iv, ok := entry.Value.Get("downloaded"); ok {
			stats.Downloaded = int32(iv.Int())
		}
		if iv, ok := entry.Value.Get("incomplete"); ok {
			stats.Incomplete = int32(iv.Int())
		}
		out.Stats[ih] = stats
	}
	return out, nil
}
