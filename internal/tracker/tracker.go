// Package tracker defines the transport-agnostic Tracker contract
// (BEP-3 announce, BEP-48 scrape) implemented by httptracker and
// udptracker, and the classified error types every backend reports
// through.
package tracker

import (
	"context"
	"net"
)

// Event is the announce lifecycle event, reported to the tracker so it
// can track swarm membership.
type Event int

const (
	EventNone Event = iota
	EventCompleted
	EventStarted
	EventStopped
)

func (e Event) String() string {
	switch e {
	case EventCompleted:
		return "completed"
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	default:
		return ""
	}
}

// AnnounceRequest is everything a Tracker needs to answer "who else is
// downloading this torrent".
type AnnounceRequest struct {
	InfoHash   [20]byte
	PeerID     [20]byte
	Port       uint16
	Uploaded   int64
	Downloaded int64
	Left       int64
	Event      Event
	NumWant    int32
	Key        uint32
}

// AnnounceResponse is a tracker's reply: a re-announce interval and a
// slice of peer addresses.
type AnnounceResponse struct {
	Interval    int32
	MinInterval int32
	Leechers    int32
	Seeders     int32
	Peers       []*net.TCPAddr

	// PeerIDs optionally names the peer-id a dictionary-form response
	// advertised for an entry in Peers, keyed by that address's
	// String(). A compact-form response (the only form UDP trackers and
	// most HTTP trackers use) never populates this; a caller with no
	// entry for an address has nothing to compare a handshake against
	// (§4.7).
	PeerIDs map[string][20]byte
}

// ScrapeRequest asks for swarm statistics on one or more info-hashes
// without announcing ourselves.
type ScrapeRequest struct {
	InfoHashes [][20]byte
}

// ScrapeStats is one info-hash's swarm statistics.
type ScrapeStats struct {
	Complete   int32
	Downloaded int32
	Incomplete int32
}

// ScrapeResponse maps each requested info-hash to its stats. An
// info-hash the tracker doesn't recognize is simply absent from the
// map.
type ScrapeResponse struct {
	Stats map[[20]byte]ScrapeStats
}

// Tracker is implemented by httptracker.Tracker and udptracker.Tracker.
// Announce and Scrape must respect ctx cancellation/deadline.
type Tracker interface {
	// URL is the tracker's announce URL, used for logging and for
	// announcer tier bookkeeping.
	URL() string
	Announce(ctx context.Context, req AnnounceRequest) (*AnnounceResponse, error)
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
}
