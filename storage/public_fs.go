package storage

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// publicFS exposes regular files of the upload tree only. Directories and
// dot-prefixed entries (pending renders among them) look like missing files.
type publicFS struct {
	root http.FileSystem
}

// PublicFS is the file system served under URLPrefix.
func (s *Store) PublicFS() http.FileSystem {
	return publicFS{root: http.Dir(s.root)}
}

func (p publicFS) Open(name string) (http.File, error) {
	for _, part := range strings.Split(path.Clean("/"+name), "/") {
		if strings.HasPrefix(part, ".") {
			return nil, fs.ErrNotExist
		}
	}
	f, err := p.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
