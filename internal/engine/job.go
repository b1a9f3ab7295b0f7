package engine

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ExportsDir is the base directory every export prefix lives under.
const ExportsDir = "exports"

// Job identifies one export run.
type Job struct {
	ExportID string
	// UploadName names the published archive. Falls back to ExportID when empty.
	UploadName string
}

func (j Job) Validate() error {
	if j.ExportID == "" {
		return fmt.Errorf("export id is required")
	}
	if strings.Contains(j.ExportID, "/") || j.ExportID == "." || j.ExportID == ".." {
		return fmt.Errorf("export id %q must be a single path segment", j.ExportID)
	}
	if strings.Contains(j.UploadName, "/") || j.UploadName == "." || j.UploadName == ".." {
		return fmt.Errorf("upload name %q must be a single path segment", j.UploadName)
	}
	return nil
}

// Prefix is the store namespace holding the export's files, e.g. "exports/abc123".
func (j Job) Prefix() string {
	return path.Join(ExportsDir, j.ExportID)
}

// ListPrefix is Prefix with a trailing separator, so "exports/abc" never
// matches keys of "exports/abcd".
func (j Job) ListPrefix() string {
	return j.Prefix() + "/"
}

// Destination is the key the finished archive is published to.
func (j Job) Destination() string {
	name := j.UploadName
	if name == "" {
		name = j.ExportID
	}
	return j.Prefix() + "/" + name + ".zip"
}

// RelativePath strips the export prefix from key. It reports false when key
// is not under the prefix.
func (j Job) RelativePath(key string) (string, bool) {
	return strings.CutPrefix(key, j.ListPrefix())
}

// IsLocalEntry reports whether rel, a path relative to the prefix, is a clean
// local path that stays inside the scratch root and is safe as an archive
// entry name. A single trailing "/" marks a directory and is allowed.
func IsLocalEntry(rel string) bool {
	name := strings.TrimSuffix(rel, "/")
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return false
	}
	return path.Clean(name) == name
}
