package tracker

import (
	"encoding/binary"
	"fmt"
	"net"
)

// ParseCompactPeers decodes a BEP-23 compact peer list: 6 bytes per
// peer, 4 bytes IPv4 followed by a big-endian port. IPv6 is out of
// scope; BitTorrent v1's compact format is IPv4-only.
func ParseCompactPeers(b []byte) ([]*net.TCPAddr, error) {
	const peerSize = 6
	if len(b)%peerSize != 0 {
		return nil, fmt.Errorf("tracker: compact peer list length %d not a multiple of %d", len(b), peerSize)
	}
	addrs := make([]*net.TCPAddr, 0, len(b)/peerSize)
	for i := 0; i+peerSize <= len(b); i += peerSize {
		ip := net.IPv4(b[i], b[i+1], b[i+2], b[i+3])
		port := binary.BigEndian.Uint16(b[i+4 : i+6])
		addrs = append(addrs, &net.TCPAddr{IP: ip, Port: int(port)})
	}
	return addrs, nil
}
