// Package rain is the root of the gorain BitTorrent v1 client library:
// metainfo parsing, tracker transports, and the peer wire protocol
// engine, coordinated per torrent by the driver in package session.
package rain

import (
	"io/ioutil"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v1"
)

// Config holds every tunable the tracker transports, peer sessions and
// torrent driver read from. It grows from the on-disk encryption knobs
// this client started with into the full set this library's components
// need; Encryption itself stays for config-file compatibility even
// though MSE is a Non-goal here (see SPEC_FULL.md §1), since rejecting
// an existing config file's encryption block for a feature we don't
// implement would be more surprising than ignoring it.
type Config struct {
	Port uint16

	PeerIDPrefix string `yaml:"peer_id_prefix"`

	PeerConnectTimeout   time.Duration `yaml:"peer_connect_timeout"`
	PeerHandshakeTimeout time.Duration `yaml:"peer_handshake_timeout"`
	PieceTimeout         time.Duration `yaml:"piece_timeout"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	KeepAliveInterval    time.Duration `yaml:"keep_alive_interval"`

	MaxPeerDial   int `yaml:"max_peer_dial"`
	MaxPeerAccept int `yaml:"max_peer_accept"`

	UnchokedPeers             int           `yaml:"unchoked_peers"`
	OptimisticUnchokedPeers   int           `yaml:"optimistic_unchoked_peers"`
	UnchokeInterval           time.Duration `yaml:"unchoke_interval"`
	OptimisticUnchokeInterval time.Duration `yaml:"optimistic_unchoke_interval"`

	// AutoUnchokeOnInterested mirrors §9's open-question decision: when
	// true, a peer that sends Interested while we are choking it is
	// unchoked immediately rather than waiting for the next unchoke tick.
	AutoUnchokeOnInterested bool `yaml:"auto_unchoke_on_interested"`

	TrackerHTTPTimeout   time.Duration `yaml:"tracker_http_timeout"`
	TrackerHTTPUserAgent string        `yaml:"tracker_http_user_agent"`
	TrackerHTTPProxy     string        `yaml:"tracker_http_proxy"`
	TrackerNumWant       int32         `yaml:"tracker_num_want"`

	// DataDir is home-dir-expanded the way the teacher expands it. No
	// code in this module reads it after loading (a caller's
	// storage.Storage picks its own root); this library itself never
	// writes a byte to disk.
	DataDir string `yaml:"data_dir"`

	Encryption struct {
		DisableOutgoing bool `yaml:"disable_outgoing"`
		ForceOutgoing   bool `yaml:"force_outgoing"`
		ForceIncoming   bool `yaml:"force_incoming"`
	}
}

// DefaultConfig mirrors the values rain ships with, extended with this
// spec's additional knobs at their BEP-recommended defaults.
var DefaultConfig = Config{
	Port:         6881,
	PeerIDPrefix: "-bT0001-",

	PeerConnectTimeout:   30 * time.Second,
	PeerHandshakeTimeout: 30 * time.Second,
	PieceTimeout:         30 * time.Second,
	RequestTimeout:       20 * time.Second,
	KeepAliveInterval:    115 * time.Second,

	MaxPeerDial:   40,
	MaxPeerAccept: 40,

	UnchokedPeers:             4,
	OptimisticUnchokedPeers:   1,
	UnchokeInterval:           10 * time.Second,
	OptimisticUnchokeInterval: 30 * time.Second,

	AutoUnchokeOnInterested: true,

	TrackerHTTPTimeout:   30 * time.Second,
	TrackerHTTPUserAgent: "gorain/1.0",
	TrackerNumWant:       50,

	DataDir: "~/rain/data",
}

// LoadConfig reads filename as YAML over DefaultConfig, tolerating a
// missing file (the default config is returned as-is), and expands
// DataDir's leading "~" the way the teacher does for its own Database/
// DataDir settings.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	b, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		return expandConfig(&c)
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return expandConfig(&c)
}

func expandConfig(c *Config) (*Config, error) {
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return nil, err
	}
	c.DataDir = dir
	return c, nil
}