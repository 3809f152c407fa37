// Package assets resolves request paths against the bundled static file set.
package assets

import (
	"io/fs"
	"mime"
	"path"
	"strings"
)

// IndexFile is served for the empty path.
const IndexFile = "index.html"

// DefaultContentType is used when the extension has no registered type.
const DefaultContentType = "text/plain; charset=utf-8"

// Asset is one resolved file.
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store looks up assets in a read-only file system. It never writes to the
// file system and is safe for concurrent use.
type Store struct {
	fsys        fs.FS
	spaFallback bool
}

// New creates a Store over fsys. With spaFallback set, a miss on a path whose
// last segment has no extension resolves to IndexFile so client-side routes
// survive a reload.
func New(fsys fs.FS, spaFallback bool) *Store {
	return &Store{fsys: fsys, spaFallback: spaFallback}
}

// Lookup resolves a request path. One leading '/' is stripped and the empty
// path maps to IndexFile. Directories and invalid paths are misses.
func (s *Store) Lookup(requestPath string) (Asset, bool) {
	name := strings.TrimPrefix(requestPath, "/")
	if name == "" {
		name = IndexFile
	}

	if a, ok := s.read(name); ok {
		return a, true
	}
	if s.spaFallback && path.Ext(name) == "" {
		return s.read(IndexFile)
	}
	return Asset{}, false
}

func (s *Store) read(name string) (Asset, bool) {
	if !fs.ValidPath(name) {
		return Asset{}, false
	}
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return Asset{}, false
	}
	return Asset{Name: name, ContentType: ContentType(name), Data: data}, true
}

// ContentType derives a MIME type from the file extension.
func ContentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return DefaultContentType
}
