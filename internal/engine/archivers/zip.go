package archivers

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/infracollect/zipexport/internal/engine"
	"github.com/klauspost/compress/zip"
)

// ZipArchiver streams entries into a deflate-compressed ZIP archive.
type ZipArchiver struct {
	zipWriter *zip.Writer
	entries   int
	closed    bool
	now       func() time.Time
}

// NewZipArchiver creates a ZIP archiver writing to w. w is not closed by the archiver.
func NewZipArchiver(w io.Writer) (engine.Archiver, error) {
	if w == nil {
		return nil, fmt.Errorf("zip archiver requires a writer")
	}

	return &ZipArchiver{
		zipWriter: zip.NewWriter(w),
		now:       time.Now,
	}, nil
}

// AddFile adds a file to the zip archive.
func (a *ZipArchiver) AddFile(ctx context.Context, filename string, data io.Reader) error {
	if a.closed {
		return fmt.Errorf("archiver is closed")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	if filename == "" || filename == "/" {
		return fmt.Errorf("empty entry name")
	}

	header := &zip.FileHeader{
		Name:     filename,
		Method:   zip.Deflate,
		Modified: a.now(),
	}

	if strings.HasSuffix(filename, "/") {
		header.Method = zip.Store
		header.SetMode(fs.ModeDir | 0o755)
		if _, err := a.zipWriter.CreateHeader(header); err != nil {
			return fmt.Errorf("failed to write zip directory %s: %w", filename, err)
		}
		a.entries++
		return nil
	}

	header.SetMode(0o644)
	entry, err := a.zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header %s: %w", filename, err)
	}

	if _, err := io.Copy(entry, data); err != nil {
		return fmt.Errorf("failed to write zip content %s: %w", filename, err)
	}

	a.entries++
	return nil
}

// Close writes the zip central directory.
func (a *ZipArchiver) Close() error {
	if a.closed {
		return fmt.Errorf("archiver already closed")
	}
	a.closed = true

	if err := a.zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}

	return nil
}

// Entries returns the number of entries written so far.
func (a *ZipArchiver) Entries() int {
	return a.entries
}

func (a *ZipArchiver) Extension() string {
	return ".zip"
}
