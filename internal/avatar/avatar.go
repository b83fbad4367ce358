// Package avatar stores uploaded profile pictures.
//
// Files land under a single public directory and are served back at
// /avatars/<name>. Names are xid-generated, so collisions are treated as
// negligible and there is no retry loop. Content is written as-is: no type,
// size, or image validation happens here — that gap is deliberate and
// documented, not hidden behind a half-check.
package avatar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/xid"
)

// PublicPrefix is the URL prefix the presentation layer serves stored files
// under. Store returns paths relative to this prefix.
const PublicPrefix = "/avatars/"

// Store writes uploads into a fixed directory.
type Store struct {
	dir string
}

// NewStore creates the directory if it's absent and returns a Store rooted
// there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("avatar: creating upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the filesystem directory uploads are written to, for wiring
// the static file server.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists an uploaded file and returns its public path, e.g.
// "/avatars/cv37rs3pp9olc6atsptg.png".
//
// The random xid keeps uploads from clobbering each other; the original
// extension is preserved so the file server sends a sensible Content-Type.
func (s *Store) Save(data []byte, originalName string) (string, error) {
	name := xid.New().String() + filepath.Ext(originalName)

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("avatar: writing %s: %w", name, err)
	}

	return PublicPrefix + name, nil
}
