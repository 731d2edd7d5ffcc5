// Package storage names the on-disk piece storage boundary the torrent
// driver borrows blocks through. Per this module's scope, storage is an
// external collaborator: no implementation lives here, only the
// interface C8 programs against when a caller wants to actually persist
// downloaded blocks.
package storage

import "io"

// File is one file of a torrent, opened for random-access read/write.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Size() int64
}

// Storage opens the on-disk files backing a torrent's pieces. A caller
// wanting to actually download piece data supplies an implementation;
// the driver never assumes one exists.
type Storage interface {
	// File opens (creating if necessary) the file at path, whose
	// declared length is size.
	File(path []string, size int64) (File, error)
	// Dest reports the root directory files are written under.
	Dest() string
}
