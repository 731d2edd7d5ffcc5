// Package trackermanager dispatches a tracker URL to the httptracker or
// udptracker backend by scheme, and builds the proxy-aware http.Client
// the HTTP backend is handed. The UDP backend always gets a nil dialer
// and so dials directly.
package trackermanager

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/shammishailaj/gorain/internal/tracker"
	"github.com/shammishailaj/gorain/internal/tracker/httptracker"
	"github.com/shammishailaj/gorain/internal/tracker/udptracker"
	"golang.org/x/net/proxy"
)

// Manager builds tracker.Tracker instances for announce URLs, wiring in
// an optional SOCKS5 proxy for the HTTP backend only.
type Manager struct {
	httpClient *http.Client
	udpDialer  func(ctx context.Context, network, address string) (net.Conn, error)
}

// New builds a Manager. proxyURL may be empty for direct connections, or
// a "socks5://host:port" URL to tunnel HTTP tracker traffic through; UDP
// tracker traffic is never proxied.
func New(proxyURL string, timeout time.Duration) (*Manager, error) {
	m := &Manager{
		httpClient: &http.Client{Timeout: timeout},
	}
	if proxyURL == "" {
		return m, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("trackermanager: invalid proxy url: %w", err)
	}
	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("trackermanager: building proxy dialer: %w", err)
	}

	transport := &http.Transport{
		Dial: dialer.Dial,
	}
	m.httpClient = &http.Client{Timeout: timeout, Transport: transport}

	// UDP tracker traffic cannot be tunneled through a SOCKS5 proxy (BEP-15
	// rides on UDP, SOCKS5 UDP ASSOCIATE support is rarely implemented by
	// public proxies), so udpDialer stays the zero value and udptracker
	// falls back to net.Dialer.DialContext.
	return m, nil
}

// For returns a tracker.Tracker for announceURL, selecting the backend
// by URL scheme.
func (m *Manager) For(announceURL string) (tracker.Tracker, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, fmt.Errorf("trackermanager: invalid tracker url %q: %w", announceURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		return httptracker.New(announceURL, m.httpClient), nil
	case "udp", "udp4", "udp6":
		return udptracker.New(announceURL, m.udpDialer)
	default:
		return nil, fmt.Errorf("trackermanager: unsupported tracker scheme %q", u.Scheme)
	}
}
