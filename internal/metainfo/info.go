package metainfo

import (
	"crypto/sha1"
	"fmt"

	"github.com/shammishailaj/gorain/internal/bencode"
)

// File is one entry of a multi-file torrent, or the single synthetic
// entry of a single-file torrent (whose Path is just the torrent name).
type File struct {
	Path   []string
	Length int64
	// MD5Sum is file-level only. The source this spec is based on once
	// read it from the parent info dict in multi-file mode; that was a
	// bug, so we never look there.
	MD5Sum []byte
}

// Info is the parsed `info` sub-dictionary: piece hashes, layout and the
// torrent's canonical identity (InfoHash).
type Info struct {
	Name        string
	PieceLength int64
	Pieces      []byte // concatenation of 20-byte SHA-1 hashes
	Private     bool
	MultiFile   bool
	Files       []File // len==1 synthetic entry for single-file mode
	InfoHash    [20]byte

	// Bytes is the canonical (re-encoded) bencoding of this info dict,
	// the same bytes InfoHash was computed from.
	Bytes []byte
}

// NewInfo parses a decoded `info` dictionary value into an Info,
// computing InfoHash as SHA1(canonical re-encoding), never a substring of
// the original input.
func NewInfo(v bencode.Value) (*Info, error) {
	if v.Kind() != bencode.Dict {
		return nil, fmt.Errorf("%w: info is not a dictionary", ErrMalformedMetainfo)
	}
	info := &Info{}

	name, ok := v.Get("name")
	if !ok || name.Kind() != bencode.String {
		return nil, fmt.Errorf("%w: missing name", ErrMalformedMetainfo)
	}
	info.Name = name.Str()

	pl, ok := v.Get("piece length")
	if !ok || pl.Kind() != bencode.Integer {
		return nil, fmt.Errorf("%w: missing piece length", ErrMalformedMetainfo)
	}
	info.PieceLength = pl.Int()

	pieces, ok := v.Get("pieces")
	if !ok || pieces.Kind() != bencode.String {
		return nil, fmt.Errorf("%w: missing pieces", ErrMalformedMetainfo)
	}
	info.Pieces = pieces.Bytes()
	if len(info.Pieces)%20 != 0 {
		return nil, ErrBadPieceTable
	}

	if priv, ok := v.Get("private"); ok && priv.Kind() == bencode.Integer && priv.Int() == 1 {
		info.Private = true
	}

	if length, ok := v.Get("length"); ok {
		if length.Kind() != bencode.Integer {
			return nil, fmt.Errorf("%w: length is not an integer", ErrMalformedMetainfo)
		}
		f := File{Path: []string{info.Name}, Length: length.Int()}
		if md5, ok := v.Get("md5sum"); ok && md5.Kind() == bencode.String {
			f.MD5Sum = md5.Bytes()
		}
		info.Files = []File{f}
	} else {
		filesVal, ok := v.Get("files")
		if !ok || filesVal.Kind() != bencode.List {
			return nil, fmt.Errorf("%w: neither length nor files present", ErrMalformedMetainfo)
		}
		info.MultiFile = true
		for _, fv := range filesVal.List() {
			f, err := parseFileEntry(fv)
			if err != nil {
				return nil, err
			}
			info.Files = append(info.Files, f)
		}
	}

	info.Bytes = bencode.EncodeBytes(v)
	info.InfoHash = sha1.Sum(info.Bytes)
	return info, nil
}

func parseFileEntry(v bencode.Value) (File, error) {
	if v.Kind() != bencode.Dict {
		return File{}, fmt.Errorf("%w: file entry is not a dictionary", ErrMalformedMetainfo)
	}
	lengthVal, ok := v.Get("length")
	if !ok || lengthVal.Kind() != bencode.Integer {
		return File{}, fmt.Errorf("%w: file entry missing length", ErrMalformedMetainfo)
	}
	pathVal, ok := v.Get("path")
	if !ok || pathVal.Kind() != bencode.List {
		return File{}, fmt.Errorf("%w: file entry missing path", ErrMalformedMetainfo)
	}
	var segments []string
	for _, seg := range pathVal.List() {
		if seg.Kind() != bencode.String {
			return File{}, fmt.Errorf("%w: path segment is not a string", ErrMalformedMetainfo)
		}
		s := seg.Str()
		if s == ".." || s == "" || s[0] == '/' {
			return File{}, ErrInvalidPath
		}
		segments = append(segments, s)
	}
	if len(segments) == 0 || segments[0] == "/" {
		return File{}, ErrInvalidPath
	}
	f := File{Path: segments, Length: lengthVal.Int()}
	if md5, ok := v.Get("md5sum"); ok && md5.Kind() == bencode.String {
		f.MD5Sum = md5.Bytes()
	}
	return f, nil
}

// TotalSize is the sum of all file lengths.
func (i *Info) TotalSize() int64 {
	var total int64
	for _, f := range i.Files {
		total += f.Length
	}
	return total
}

// Hashes slices Pieces into its 20-byte SHA-1 groups.
func (i *Info) Hashes() [][20]byte {
	n := len(i.Pieces) / 20
	out := make([][20]byte, n)
	for idx := range out {
		copy(out[idx][:], i.Pieces[idx*20:idx*20+20])
	}
	return out
}

// PiecesAmount is len(Hashes()), equivalently ceil(TotalSize/PieceLength).
func (i *Info) PiecesAmount() int {
	return len(i.Pieces) / 20
}

// CheckPieceLength applies the optional 16KiB-16MiB sanity policy noted
// in the format description; callers that don't want it can skip calling
// this and use the Info as parsed.
func (i *Info) CheckPieceLength() error {
	if i.PieceLength < minPieceLength || i.PieceLength > maxPieceLength {
		return ErrUnsupportedPieceLength
	}
	return nil
}
