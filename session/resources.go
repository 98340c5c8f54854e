package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/rtkrelay/iox"
)

// maxStagedNameLen bounds the client-supplied part of a staged file name.
const maxStagedNameLen = 128

// StagedFile is a received unit persisted on local disk.
type StagedFile struct {
	// Name is the name the client sent; never used as a path.
	Name string `json:"name" msgpack:"name"`
	// Path is the local staging path.
	Path string `json:"-" msgpack:"-"`
	// Size is the number of content bytes received.
	Size int64 `json:"size" msgpack:"size"`
}

// Resources owns every filesystem artifact a session creates. Release
// removes all of them and is safe to call more than once.
type Resources struct {
	// Dir is the private staging directory.
	Dir string
	// Files are the staged units in envelope order.
	Files []StagedFile

	tracked  []string
	released bool
}

// NewResources creates a private staging directory under base
// (os.TempDir when empty).
func NewResources(base, sessionID string) (*Resources, error) {
	dir, err := os.MkdirTemp(base, "rtkrelay-"+sessionID+"-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Resources{Dir: dir}, nil
}

// Create opens a new staging file for a unit named name. The file is
// recorded in Files; its size is set by Commit.
func (r *Resources) Create(name string) (*os.File, error) {
	idx := len(r.Files)
	path := filepath.Join(r.Dir, fmt.Sprintf("%02d-%s", idx, stagedName(name)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	r.Files = append(r.Files, StagedFile{Name: name, Path: path})
	return f, nil
}

// Commit records the final size of the most recently created file.
func (r *Resources) Commit(size int64) {
	if len(r.Files) > 0 {
		r.Files[len(r.Files)-1].Size = size
	}
}

// Track registers an extra path for removal on Release.
func (r *Resources) Track(path string) {
	if path != "" {
		r.tracked = append(r.tracked, path)
	}
}

// Release removes tracked paths and the staging directory.
// The returned error joins every removal failure.
func (r *Resources) Release() error {
	if r == nil || r.released {
		return nil
	}
	r.released = true

	var errs []error
	for _, p := range r.tracked {
		if err := iox.Remove(p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := iox.RemoveAll(r.Dir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// stagedName reduces a client-supplied name to a safe file-name suffix.
func stagedName(name string) string {
	base := filepath.Base(strings.NewReplacer("\\", "/", "\x00", "_").Replace(name))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "unit"
	}
	if len(base) > maxStagedNameLen {
		base = strings.ToValidUTF8(base[len(base)-maxStagedNameLen:], "")
	}
	return base
}
