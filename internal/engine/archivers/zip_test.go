package archivers

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readZipEntries returns a map of entry name -> content, in archive order via names.
func readZipEntries(t *testing.T, data []byte) (map[string]string, []string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	found := make(map[string]string)
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		found[f.Name] = string(content)
		names = append(names, f.Name)
	}
	return found, names
}

func TestNewZipArchiver(t *testing.T) {
	archiver, err := NewZipArchiver(new(bytes.Buffer))
	require.NoError(t, err)
	assert.Equal(t, ".zip", archiver.Extension())

	_, err = NewZipArchiver(nil)
	require.Error(t, err)
}

func TestZipArchiver_AddFile(t *testing.T) {
	buf := new(bytes.Buffer)
	archiver, err := NewZipArchiver(buf)
	require.NoError(t, err)

	content := "hello, world!"
	err = archiver.AddFile(t.Context(), "test.txt", strings.NewReader(content))
	require.NoError(t, err)

	require.NoError(t, archiver.Close())

	found, _ := readZipEntries(t, buf.Bytes())
	assert.Len(t, found, 1)
	assert.Equal(t, content, found["test.txt"])
}

func TestZipArchiver_MultipleFiles(t *testing.T) {
	buf := new(bytes.Buffer)
	archiver, err := NewZipArchiver(buf)
	require.NoError(t, err)

	files := []struct {
		name    string
		content string
	}{
		{"a.txt", "content1"},
		{"sub/b.txt", "content2"},
		{"sub/deeper/c.json", `{"k": "v"}`},
	}
	for _, f := range files {
		err = archiver.AddFile(t.Context(), f.name, strings.NewReader(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, archiver.Close())

	found, names := readZipEntries(t, buf.Bytes())
	assert.Equal(t, []string{"a.txt", "sub/b.txt", "sub/deeper/c.json"}, names)
	for _, f := range files {
		assert.Equal(t, f.content, found[f.name], "file %s", f.name)
	}
	assert.Equal(t, 3, archiver.(*ZipArchiver).Entries())
}

func TestZipArchiver_DirectoryEntry(t *testing.T) {
	buf := new(bytes.Buffer)
	archiver, err := NewZipArchiver(buf)
	require.NoError(t, err)

	require.NoError(t, archiver.AddFile(t.Context(), "empty/", strings.NewReader("ignored")))
	require.NoError(t, archiver.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "empty/", zr.File[0].Name)
	assert.True(t, zr.File[0].FileInfo().IsDir())
}

func TestZipArchiver_Empty(t *testing.T) {
	buf := new(bytes.Buffer)
	archiver, err := NewZipArchiver(buf)
	require.NoError(t, err)

	require.NoError(t, archiver.Close())

	found, _ := readZipEntries(t, buf.Bytes())
	assert.Empty(t, found)
}

func TestZipArchiver_EmptyName(t *testing.T) {
	archiver, err := NewZipArchiver(new(bytes.Buffer))
	require.NoError(t, err)

	require.Error(t, archiver.AddFile(t.Context(), "", strings.NewReader("x")))
}

func TestZipArchiver_CloseTwice(t *testing.T) {
	archiver, err := NewZipArchiver(new(bytes.Buffer))
	require.NoError(t, err)

	require.NoError(t, archiver.Close())

	// Second close should error
	require.Error(t, archiver.Close(), "Close() second call should error")
}

func TestZipArchiver_AddFileAfterClose(t *testing.T) {
	archiver, err := NewZipArchiver(new(bytes.Buffer))
	require.NoError(t, err)

	require.NoError(t, archiver.Close())

	err = archiver.AddFile(t.Context(), "test.txt", strings.NewReader("content"))
	require.Error(t, err, "AddFile() after Close() should error")
}

func TestZipArchiver_CancelledContext(t *testing.T) {
	archiver, err := NewZipArchiver(new(bytes.Buffer))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err = archiver.AddFile(ctx, "test.txt", strings.NewReader("content"))
	require.ErrorIs(t, err, context.Canceled)
}
