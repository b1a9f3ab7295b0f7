// Package scratch holds the local files of an export between download and archive.
package scratch

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	filesDir   = "files"
	dirPattern = "zipexport-"
)

// Workspace is a temporary directory owned by a single run. Downloaded
// objects live under files/, the archive sits beside it so no object key can
// collide with the archive name.
type Workspace struct {
	base  afero.Fs
	root  string
	files afero.Fs
}

// New creates a fresh workspace under dir on fs. An empty dir uses the
// default temp directory.
func New(fs afero.Fs, dir string) (*Workspace, error) {
	if dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
		}
	}

	root, err := afero.TempDir(fs, dir, dirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	filesRoot := filepath.Join(root, filesDir)
	if err := fs.MkdirAll(filesRoot, 0o755); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create scratch directory %s: %w", filesRoot, err), fs.RemoveAll(root))
	}

	return &Workspace{
		base:  fs,
		root:  root,
		files: afero.NewBasePathFs(fs, filesRoot),
	}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Path returns the local path of the scratch file for name.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.root, filesDir, filepath.FromSlash(name))
}

// Create opens a new scratch file for name, a slash separated path relative
// to the files root, creating parent directories as needed. Names escaping
// the files root are rejected.
func (w *Workspace) Create(name string) (afero.File, error) {
	local := filepath.FromSlash(name)

	dir := filepath.Dir(local)
	if dir != "" && dir != "." {
		if err := w.files.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := w.files.Create(local)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", name, err)
	}
	return f, nil
}

func (w *Workspace) Open(name string) (afero.File, error) {
	f, err := w.files.Open(filepath.FromSlash(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	return f, nil
}

func (w *Workspace) Remove(name string) error {
	if err := w.files.Remove(filepath.FromSlash(name)); err != nil {
		return fmt.Errorf("failed to remove file %s: %w", name, err)
	}
	return nil
}

// CreateArchive creates the archive file at the workspace root.
func (w *Workspace) CreateArchive(name string) (afero.File, error) {
	f, err := w.base.Create(filepath.Join(w.root, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	return f, nil
}

func (w *Workspace) OpenArchive(name string) (afero.File, error) {
	f, err := w.base.Open(filepath.Join(w.root, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	return f, nil
}

// RenameArchive renames an archive file at the workspace root.
func (w *Workspace) RenameArchive(oldName, newName string) error {
	if err := w.base.Rename(filepath.Join(w.root, oldName), filepath.Join(w.root, newName)); err != nil {
		return fmt.Errorf("failed to rename archive file %s to %s: %w", oldName, newName, err)
	}
	return nil
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	if err := w.base.RemoveAll(w.root); err != nil {
		return fmt.Errorf("failed to remove scratch directory %s: %w", w.root, err)
	}
	return nil
}
