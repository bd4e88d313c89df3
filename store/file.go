package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rustyeddy/compound/plan"
)

var userRe = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

// FileStore keeps each user's document in <dir>/<user>.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(user string) (string, error) {
	if !userRe.MatchString(user) {
		return "", fmt.Errorf("invalid user %q", user)
	}
	return filepath.Join(s.dir, user+".json"), nil
}

func (s *FileStore) Load(ctx context.Context, user string) (*plan.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(user)
}

func (s *FileStore) loadLocked(user string) (*plan.Document, error) {
	p, err := s.path(user)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, user)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return plan.Decode(f)
}

// Save writes to a temp file, syncs and renames it into place.
func (s *FileStore) Save(ctx context.Context, user string, doc *plan.Document) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadLocked(user)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return 0, err
	case cur.Version != doc.Version:
		return 0, fmt.Errorf("%w: stored %d, saving %d", ErrVersionConflict, cur.Version, doc.Version)
	}

	out := doc.Clone()
	out.Version = doc.Version + 1

	p, _ := s.path(user)
	tmp := p + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	if err := plan.Encode(f, out); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, p); err != nil {
		return 0, err
	}
	return out.Version, nil
}

func (s *FileStore) Close() error { return nil }
