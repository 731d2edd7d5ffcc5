// Package metainfo parses a bencoded torrent metadata dictionary into
// typed values and computes the info-hash that identifies a torrent.
package metainfo

import (
	"fmt"
	"io"

	"github.com/shammishailaj/gorain/internal/bencode"
)

// MetaInfo is the parsed form of a .torrent file.
type MetaInfo struct {
	Info         *Info
	Announce     string
	AnnounceList [][]string
	Comment      string
	CreatedBy    string
	CreationDate int64
	Encoding     string
	Publisher    string
	PublisherURL string
}

// New parses a bencoded metainfo dictionary read from r.
func New(r io.Reader) (*MetaInfo, error) {
	v, err := bencode.NewDecoder(r).Decode()
	if err != nil {
		return nil, err
	}
	return newFromValue(v)
}

// Parse is New over an in-memory buffer.
func Parse(data []byte) (*MetaInfo, error) {
	v, err := bencode.Decode(data)
	if err != nil {
		return nil, err
	}
	return newFromValue(v)
}

func newFromValue(v bencode.Value) (*MetaInfo, error) {
	if v.Kind() != bencode.Dict {
		return nil, fmt.Errorf("%w: root value is not a dictionary", ErrMalformedMetainfo)
	}
	mi := &MetaInfo{Encoding: "utf-8"}

	if a, ok := v.Get("announce"); ok && a.Kind() == bencode.String {
		mi.Announce = a.Str()
	}
	if al, ok := v.Get("announce-list"); ok && al.Kind() == bencode.List {
		for _, tierVal := range al.List() {
			if tierVal.Kind() != bencode.List {
				continue
			}
			var tier []string
			for _, urlVal := range tierVal.List() {
				if urlVal.Kind() == bencode.String {
					tier = append(tier, urlVal.Str())
				}
			}
			mi.AnnounceList = append(mi.AnnounceList, tier)
		}
	}
	if c, ok := v.Get("comment"); ok && c.Kind() == bencode.String {
		mi.Comment = c.Str()
	}
	if cb, ok := v.Get("created by"); ok && cb.Kind() == bencode.String {
		mi.CreatedBy = cb.Str()
	}
	if cd, ok := v.Get("creation date"); ok && cd.Kind() == bencode.Integer {
		mi.CreationDate = cd.Int()
	}
	if enc, ok := v.Get("encoding"); ok && enc.Kind() == bencode.String {
		mi.Encoding = enc.Str()
	}
	if pub, ok := v.Get("publisher"); ok && pub.Kind() == bencode.String {
		mi.Publisher = pub.Str()
	}
	if purl, ok := v.Get("publisher-url"); ok && purl.Kind() == bencode.String {
		mi.PublisherURL = purl.Str()
	}

	infoVal, ok := v.Get("info")
	if !ok {
		return nil, fmt.Errorf("%w: no info dict in torrent file", ErrMalformedMetainfo)
	}
	info, err := NewInfo(infoVal)
	if err != nil {
		return nil, err
	}
	mi.Info = info
	return mi, nil
}

// GetTrackers returns every tracker URL named by `announce` and
// `announce-list`, deduplicated by URL, in the order first seen, as one
// flat list without the announce-list's tier structure.
func (m *MetaInfo) GetTrackers() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	add(m.Announce)
	for _, tier := range m.AnnounceList {
		for _, u := range tier {
			add(u)
		}
	}
	return out
}
