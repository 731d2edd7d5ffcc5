package metainfo

import "errors"

var (
	// ErrMalformedMetainfo covers a missing/mistyped required field.
	ErrMalformedMetainfo = errors.New("metainfo: malformed torrent metadata")
	// ErrBadPieceTable is raised when len(pieces) is not a multiple of 20.
	ErrBadPieceTable = errors.New("metainfo: piece hash table length is not a multiple of 20")
	// ErrUnsupportedPieceLength is an optional policy rejecting
	// pathologically small or large piece sizes.
	ErrUnsupportedPieceLength = errors.New("metainfo: unsupported piece length")
	// ErrInvalidPath is raised for a multi-file path containing ".." or
	// an absolute segment.
	ErrInvalidPath = errors.New("metainfo: invalid file path in multi-file torrent")
)

const (
	minPieceLength = 16 * 1024
	maxPieceLength = 16 * 1024 * 1024
)
