package engine

import (
	"context"
	"io"
)

// Archiver collects files into an archive format.
type Archiver interface {
	// AddFile adds a file to the archive with the given filename and data.
	// A filename ending in "/" adds a directory entry and data is ignored.
	AddFile(ctx context.Context, filename string, data io.Reader) error

	// Close finalizes the archive. The underlying writer is left open.
	Close() error

	// Extension returns the file extension for this archive type (e.g., ".zip").
	Extension() string
}

// ArchiverFactory opens a new archive that writes to w.
type ArchiverFactory func(w io.Writer) (Archiver, error)
