// Package udptracker implements BEP-15, the UDP tracker protocol:
// connect/announce/scrape actions framed as fixed binary layouts,
// matched by a random transaction id, retried on the "15 * 2^n,
// n=0..8" schedule BEP-15 specifies, with the 60-second-valid
// connection-id cached between announces.
package udptracker

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/shammishailaj/gorain/internal/tracker"
	"golang.org/x/sync/errgroup"
)

const (
	actionConnect  uint32 = 0
	actionAnnounce uint32 = 1
	actionScrape   uint32 = 2
	actionError    uint32 = 3

	protocolID uint64 = 0x41727101980

	connectionIDValidity = 60 * time.Second
	maxRetries           = 9 // 15 * 2^8 is the last attempt per BEP-15
)

var (
	// errTransactionMismatch never escapes the package; it is handled
	// internally by discarding the datagram and waiting for the next one.
	errTransactionMismatch = errors.New("udptracker: transaction id mismatch")
)

// Tracker is a UDP tracker client bound to one tracker URL's host:port.
type Tracker struct {
	announceURL string
	hostPort    string
	dial        func(ctx context.Context, network, address string) (net.Conn, error)

	mu           sync.Mutex
	connID       uint64
	connIDExpiry time.Time
}

// New builds a Tracker for a "udp://host:port/announce" URL. dial
// defaults to net.Dialer.DialContext; a caller wanting SOCKS proxying
// supplies a proxy-wrapped dialer (trackermanager always passes nil).
func New(announceURL string, dial func(ctx context.Context, network, address string) (net.Conn, error)) (*Tracker, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, err
	}
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	return &Tracker{announceURL: announceURL, hostPort: u.Host, dial: dial}, nil
}

func (t *Tracker) URL() string { return t.announceURL }

// connect resolves every address the tracker host maps to and races
// them happy-eyeballs style, returning the first connection id any of
// them answers with. This matters for dual-stack trackers where one
// address family is routed but black-holed.
func (t *Tracker) connect(ctx context.Context) (uint64, net.Conn, error) {
	t.mu.Lock()
	if t.connID != 0 && time.Now().Before(t.connIDExpiry) {
		id := t.connID
		t.mu.Unlock()
		conn, err := t.dial(ctx, "udp", t.hostPort)
		if err != nil {
			return 0, nil, &tracker.UnreachableError{Err: err}
		}
		return id, conn, nil
	}
	t.mu.Unlock()

	host, port, err := net.SplitHostPort(t.hostPort)
	if err != nil {
		return 0, nil, &tracker.UnreachableError{Err: err}
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return 0, nil, &tracker.UnreachableError{Err: err}
	}
	if len(ips) == 0 {
		return 0, nil, &tracker.UnreachableError{Err: fmt.Errorf("no addresses for %s", host)}
	}

	type result struct {
		conn   net.Conn
		connID uint64
	}
	resC := make(chan result, 1)
	g, gctx := errgroup.WithContext(ctx)
	for _, ip := range ips {
		ip := ip
		g.Go(func() error {
			addr := net.JoinHostPort(ip.String(), port)
			conn, err := t.dial(gctx, "udp", addr)
			if err != nil {
				return nil // another address may still succeed
			}
			id, err := connectOnce(gctx, conn)
			if err != nil {
				conn.Close()
				return nil
			}
			select {
			case resC <- result{conn: conn, connID: id}:
			default:
				conn.Close()
			}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(resC)
	}()

	select {
	case r, ok := <-resC:
		if !ok {
			return 0, nil, &tracker.UnreachableError{Err: fmt.Errorf("no address for %s answered connect", host)}
		}
		t.mu.Lock()
		t.connID = r.connID
		t.connIDExpiry = time.Now().Add(connectionIDValidity)
		t.mu.Unlock()
		return r.connID, r.conn, nil
	case <-ctx.Done():
		return 0, nil, tracker.ErrCancelled
	}
}

func connectOnce(ctx context.Context, conn net.Conn) (uint64, error) {
	txID := randomTransactionID()
	req := make([]byte, 16)
	binary.BigEndian.PutUint64(req[0:8], protocolID)
	binary.BigEndian.PutUint32(req[8:12], actionConnect)
	binary.BigEndian.PutUint32(req[12:16], txID)

	resp, err := roundTrip(ctx, conn, req, 16)
	if err != nil {
		return 0, err
	}
	action := binary.BigEndian.Uint32(resp[0:4])
	gotTxID := binary.BigEndian.Uint32(resp[4:8])
	if gotTxID != txID {
		return 0, errTransactionMismatch
	}
	if action != actionConnect {
		return 0, fmt.Errorf("udptracker: unexpected action %d in connect response", action)
	}
	return binary.BigEndian.Uint64(resp[8:16]), nil
}

// roundTrip writes req and reads one reply of at least minLen bytes,
// retrying on the BEP-15 schedule (15s, 30s, 60s, ... capped at 9
// attempts) and silently discarding datagrams whose transaction id
// doesn't match — those belong to a stale retry, not this request.
func roundTrip(ctx context.Context, conn net.Conn, req []byte, minLen int) ([]byte, error) {
	txID := binary.BigEndian.Uint32(req[12:16])
	buf := make([]byte, 2048)
	for attempt := 0; attempt < maxRetries; attempt++ {
		timeout := 15 * time.Second * time.Duration(1<<uint(attempt))
		deadline := time.Now().Add(timeout)
		conn.SetDeadline(deadline)

		if _, err := conn.Write(req); err != nil {
			return nil, &tracker.TransportIOError{Err: err}
		}

		for {
			n, err := conn.Read(buf)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					break // move to next retry
				}
				return nil, &tracker.TransportIOError{Err: err}
			}
			if n < 8 || n < minLen {
				continue // malformed/short datagram, keep listening
			}
			if binary.BigEndian.Uint32(buf[4:8]) != txID {
				continue // belongs to a stale retry, keep listening
			}
			return append([]byte(nil), buf[:n]...), nil
		}

		if ctx.Err() != nil {
			return nil, tracker.ErrCancelled
		}
	}
	return nil, &tracker.UnreachableError{Err: fmt.Errorf("udptracker: exhausted %d retries", maxRetries)}
}

func (t *Tracker) Announce(ctx context.Context, req tracker.AnnounceRequest) (*tracker.AnnounceResponse, error) {
	connID, conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	txID := randomTransactionID()
	buf := make([]byte, 98)
	binary.BigEndian.PutUint64(buf[0:8], connID)
	binary.BigEndian.PutUint32(buf[8:12], actionAnnounce)
	binary.BigEndian.PutUint32(buf[12:16], txID)
	copy(buf[16:36], req.InfoHash[:])
	copy(buf[36:56], req.PeerID[:])
	binary.BigEndian.PutUint64(buf[56:64], uint64(req.Downloaded))
	binary.BigEndian.PutUint64(buf[64:72], uint64(req.Left))
	binary.BigEndian.PutUint64(buf[72:80], uint64(req.Uploaded))
	binary.BigEndian.PutUint32(buf[80:84], uint32(req.Event))
	binary.BigEndian.PutUint32(buf[84:88], 0) // IP address: 0 = use source
	binary.BigEndian.PutUint32(buf[88:92], req.Key)
	numWant := req.NumWant
	if numWant == 0 {
		numWant = -1
	}
	binary.BigEndian.PutUint32(buf[92:96], uint32(numWant))
	binary.BigEndian.PutUint16(buf[96:98], req.Port)

	resp, err := roundTrip(ctx, conn, buf, 20)
	if err != nil {
		return nil, err
	}
	action := binary.BigEndian.Uint32(resp[0:4])
	gotTxID := binary.BigEndian.Uint32(resp[4:8])
	if gotTxID != txID {
		return nil, &tracker.TransportIOError{Err: errTransactionMismatch}
	}
	if action == actionError {
		return nil, &tracker.Error{Reason: string(resp[8:])}
	}
	if action != actionAnnounce {
		return nil, &tracker.TransportIOError{Err: fmt.Errorf("unexpected action %d", action)}
	}

	out := &tracker.AnnounceResponse{
		Interval: int32(binary.BigEndian.Uint32(resp[8:12])),
		Leechers: int32(binary.BigEndian.Uint32(resp[12:16])),
		Seeders:  int32(binary.BigEndian.Uint32(resp[16:20])),
	}
	peers, err := tracker.ParseCompactPeers(resp[20:])
	if err != nil {
		return nil, &tracker.TransportIOError{Err: err}
	}
	out.Peers = peers
	return out, nil
}

// Scrape has no equivalent of httptracker's /announce->/scrape path
// rewrite to validate: BEP-15 scrape is just a different action code on
// the same host:port, with no URL path on the wire at all.
func (t *Tracker) Scrape(ctx context.Context, req tracker.ScrapeRequest) (*tracker.ScrapeResponse, error) {
	connID, conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	txID := randomTransactionID()
	buf := make([]byte, 16+20*len(req.InfoHashes))
	binary.BigEndian.PutUint64(buf[0:8], connID)
	binary.BigEndian.PutUint32(buf[8:12], actionScrape)
	binary.BigEndian.PutUint32(buf[12:16], txID)
	for i, ih := range req.InfoHashes {
		copy(buf[16+i*20:16+(i+1)*20], ih[:])
	}

	resp, err := roundTrip(ctx, conn, buf, 8)
	if err != nil {
		return nil, err
	}
	action := binary.BigEndian.Uint32(resp[0:4])
	gotTxID := binary.BigEndian.Uint32(resp[4:8])
	if gotTxID != txID {
		return nil, &tracker.TransportIOError{Err: errTransactionMismatch}
	}
	if action == actionError {
		return nil, &tracker.Error{Reason: string(resp[8:])}
	}
	if action != actionScrape {
		return nil, &tracker.TransportIOError{Err: fmt.Errorf("unexpected action %d", action)}
	}

	out := &tracker.ScrapeResponse{Stats: make(map[[20]byte]tracker.ScrapeStats, len(req.InfoHashes))}
	body := resp[8:]
	for i, ih := range req.InfoHashes {
		off := i * 12
		if off+12 > len(body) {
			break
		}
		out.Stats[ih] = tracker.ScrapeStats{
			Complete:   int32(binary.BigEndian.Uint32(body[off : off+4])),
			Downloaded: int32(binary.BigEndian.Uint32(body[off+4 : off+8])),
			Incomplete: int32(binary.BigEndian.Uint32(body[off+8 : off+12])),
		}
	}
	return out, nil
}

func randomTransactionID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
