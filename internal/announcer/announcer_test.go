package announcer

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shammishailaj/gorain/internal/tracker"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	url     string
	fail    bool
	calls   *[]string
}

func (f *fakeTracker) URL() string { return f.url }

func (f *fakeTracker) Announce(ctx context.Context, req tracker.AnnounceRequest) (*tracker.AnnounceResponse, error) {
	*f.calls = append(*f.calls, f.url)
	if f.fail {
		return nil, &tracker.UnreachableError{}
	}
	return &tracker.AnnounceResponse{Interval: 1800}, nil
}

func (f *fakeTracker) Scrape(ctx context.Context, req tracker.ScrapeRequest) (*tracker.ScrapeResponse, error) {
	return nil, nil
}

func TestAnnounceFallsThroughTierOnFailure(t *testing.T) {
	var calls []string
	factory := func(u string) (tracker.Tracker, error) {
		return &fakeTracker{url: u, fail: u == "a" || u == "b", calls: &calls}, nil
	}
	tm, err := New([][]string{{"a", "b", "c"}}, factory, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	resp, url, err := tm.Announce(context.Background(), tracker.AnnounceRequest{})
	require.NoError(t, err)
	require.Equal(t, "c", url)
	require.EqualValues(t, 1800, resp.Interval)
}

func TestSuccessfulTrackerPromotedToFront(t *testing.T) {
	var calls []string
	failing := map[string]bool{"a": true, "b": true}
	factory := func(u string) (tracker.Tracker, error) {
		return &fakeTracker{url: u, fail: failing[u], calls: &calls}, nil
	}
	tm, err := New([][]string{{"a", "b", "c"}}, factory, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	_, url, err := tm.Announce(context.Background(), tracker.AnnounceRequest{})
	require.NoError(t, err)
	require.Equal(t, "c", url)
	require.Equal(t, []string{"c", "a", "b"}, tierURLs(tm.tiers[0]))

	_, url, err = tm.Announce(context.Background(), tracker.AnnounceRequest{})
	require.NoError(t, err)
	require.Equal(t, "c", url)
}

func tierURLs(tier []entry) []string {
	out := make([]string, len(tier))
	for i, e := range tier {
		out[i] = e.url
	}
	return out
}

func TestFallsThroughToNextTierWhenTierExhausted(t *testing.T) {
	var calls []string
	factory := func(u string) (tracker.Tracker, error) {
		return &fakeTracker{url: u, fail: u == "a", calls: &calls}, nil
	}
	tm, err := New([][]string{{"a"}, {"b"}}, factory, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	_, url, err := tm.Announce(context.Background(), tracker.AnnounceRequest{})
	require.NoError(t, err)
	require.Equal(t, "b", url)
}
