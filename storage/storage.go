// Package storage writes uploads to the local upload tree under generated,
// collision-free names.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/cppla/qrdrop/config"
)

// URLPrefix is the public path the upload tree is served under.
const URLPrefix = "/uploads"

// PendingPrefix marks in-flight files; they never carry a public name.
const PendingPrefix = ".pending-"

const maxNameAttempts = 1000

// ErrNameExhausted is returned when no free name could be claimed.
var ErrNameExhausted = errors.New("storage: no free file name")

// Saved describes a file the store has written.
type Saved struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// Store owns the upload directory and the QR-code directory below it.
type Store struct {
	root   string
	qrDir  string
	naming string
	now    func() time.Time
}

// New creates a Store. naming is config.NamingUUID or config.NamingTimestamp.
func New(root, qrSubdir, naming string) *Store {
	return &Store{
		root:   root,
		qrDir:  filepath.Join(root, qrSubdir),
		naming: naming,
		now:    time.Now,
	}
}

// FromConfig creates a Store for the configured upload tree.
func FromConfig(c config.AppConfig) *Store {
	return New(c.UploadDir, c.QRCodeSubdir, c.NamingScheme)
}

// Root is the generic upload directory.
func (s *Store) Root() string { return s.root }

// QRDir is the QR-code directory.
func (s *Store) QRDir() string { return s.qrDir }

// Init makes sure both directories exist, creating missing parents.
func (s *Store) Init() error {
	for _, dir := range []string{s.root, s.qrDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Ext returns the extension of a client supplied filename, ignoring any
// directory components it carries.
func Ext(filename string) string {
	return filepath.Ext(filepath.Base(filename))
}

// URL is the public path of a file saved by this store.
func (s *Store) URL(saved Saved) (string, error) {
	rel, err := filepath.Rel(s.root, saved.Path)
	if err != nil {
		return "", fmt.Errorf("resolve public path: %w", err)
	}
	return path.Join(URLPrefix, filepath.ToSlash(rel)), nil
}

// Save streams r into dir under a fresh name ending in ext. A partially written
// file is removed before the error is returned.
func (s *Store) Save(dir, ext string, r io.Reader) (Saved, error) {
	f, name, err := s.create(dir, ext)
	if err != nil {
		return Saved{}, err
	}
	p := filepath.Join(dir, name)

	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		discard(f, p)
		return Saved{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		discard(f, p)
		return Saved{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return Saved{}, fmt.Errorf("close %s: %w", name, err)
	}
	return Saved{
		Name:        name,
		Path:        p,
		Size:        written,
		ContentType: mimetype.Detect(head).String(),
	}, nil
}

// Publish renders a file through write into a pending file and moves it onto
// a fresh name ending in ext only once write has succeeded. Nothing is left
// behind on failure.
func (s *Store) Publish(dir, ext string, write func(io.Writer) error) (Saved, error) {
	tmp, err := os.CreateTemp(dir, PendingPrefix+"*")
	if err != nil {
		return Saved{}, fmt.Errorf("create pending file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return Saved{}, err
	}
	if err := tmp.Close(); err != nil {
		return Saved{}, fmt.Errorf("close pending file: %w", err)
	}

	// Claim the public name exclusively, then replace the placeholder.
	placeholder, name, err := s.create(dir, ext)
	if err != nil {
		return Saved{}, err
	}
	_ = placeholder.Close()
	p := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, p); err != nil {
		_ = os.Remove(p)
		return Saved{}, fmt.Errorf("publish %s: %w", name, err)
	}

	info, err := os.Stat(p)
	if err != nil {
		return Saved{}, fmt.Errorf("stat %s: %w", name, err)
	}
	f, err := os.Open(p)
	if err != nil {
		return Saved{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return Saved{}, fmt.Errorf("detect %s: %w", name, err)
	}
	return Saved{Name: name, Path: p, Size: info.Size(), ContentType: mt.String()}, nil
}

// Remove deletes a stored file; a file that is already gone is not an error.
func (s *Store) Remove(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// create claims a new name in dir with exclusive-create semantics, so two
// concurrent uploads can never end up writing the same file.
func (s *Store) create(dir, ext string) (*os.File, string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.newName(ext, attempt)
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", name, err)
		}
	}
	return nil, "", ErrNameExhausted
}

func (s *Store) newName(ext string, attempt int) string {
	if s.naming == config.NamingTimestamp {
		// Same-millisecond collisions move to the next free millisecond.
		return strconv.FormatInt(s.now().UnixMilli()+int64(attempt), 10) + ext
	}
	return uuid.NewString() + ext
}

func discard(f *os.File, p string) {
	_ = f.Close()
	_ = os.Remove(p)
}
