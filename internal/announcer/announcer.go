// Package announcer implements BEP-12 multi-tracker tier selection: a
// shuffle-once tier list, tried in order within a tier and falling
// through to the next tier on exhaustion, promoting whichever tracker
// answers to the front of its tier so it is tried first next time.
package announcer

import (
	"context"
	"math/rand"

	"github.com/shammishailaj/gorain/internal/tracker"
)

// Factory builds a tracker.Tracker for one announce URL, supplied by
// trackermanager.Manager.For so this package stays decoupled from the
// concrete HTTP/UDP backends.
type Factory func(announceURL string) (tracker.Tracker, error)

type entry struct {
	url string
	t   tracker.Tracker
}

// TierManager holds the BEP-12 announce-list, one []entry per tier.
// With no announce-list at all, the session driver's dedupTiers passes a
// single tier containing just the primary announce URL.
type TierManager struct {
	tiers   [][]entry
	factory Factory
	rand    *rand.Rand
}

// New builds a TierManager from a metainfo's announce-list (already
// deduplicated) and shuffles each tier once, per BEP-12's "shuffle
// should occur at torrent-load time, not per-announce" guidance.
func New(tierURLs [][]string, factory Factory, rng *rand.Rand) (*TierManager, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	tm := &TierManager{factory: factory, rand: rng}
	for _, urls := range tierURLs {
		tier := make([]entry, 0, len(urls))
		for _, u := range urls {
			t, err := factory(u)
			if err != nil {
				continue // unsupported scheme: drop it from the tier, don't fail the torrent
			}
			tier = append(tier, entry{url: u, t: t})
		}
		if len(tier) == 0 {
			continue
		}
		rng.Shuffle(len(tier), func(i, j int) { tier[i], tier[j] = tier[j], tier[i] })
		tm.tiers = append(tm.tiers, tier)
	}
	return tm, nil
}

// Announce tries each tracker in the first tier in order, falling
// through to the next tier if every tracker in the current one fails.
// The first tracker that answers is promoted to the front of its tier.
func (tm *TierManager) Announce(ctx context.Context, req tracker.AnnounceRequest) (*tracker.AnnounceResponse, string, error) {
	var lastErr error
	for ti, tier := range tm.tiers {
		for i, e := range tier {
			resp, err := e.t.Announce(ctx, req)
			if err != nil {
				lastErr = err
				continue
			}
			if i != 0 {
				promote(tier, i)
			}
			_ = ti
			return resp, e.url, nil
		}
	}
	if lastErr == nil {
		lastErr = errNoTrackers
	}
	return nil, "", lastErr
}

// Scrape tries every tracker of every tier in order and returns the
// first answer; unlike Announce, it never promotes the tracker that
// answered.
func (tm *TierManager) Scrape(ctx context.Context, req tracker.ScrapeRequest) (*tracker.ScrapeResponse, error) {
	var lastErr error
	for _, tier := range tm.tiers {
		for _, e := range tier {
			resp, err := e.t.Scrape(ctx, req)
			if err != nil {
				lastErr = err
				continue
			}
			return resp, nil
		}
	}
	if lastErr == nil {
		lastErr = errNoTrackers
	}
	return nil, lastErr
}

// promote moves tier[i] to tier[0], shifting the rest down one slot, so
// the tracker that just answered is tried first on the next announce.
func promote(tier []entry, i int) {
	e := tier[i]
	copy(tier[1:i+1], tier[0:i])
	tier[0] = e
}
