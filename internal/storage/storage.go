package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("stored file not found")

// Store keeps uploaded source documents. References returned by Save are opaque
// relative paths and are the only thing persisted on the project row.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

type FileStore struct {
	fs  afero.Fs
	now func() time.Time
}

func NewLocalStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return NewFileStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func NewFileStore(fsys afero.Fs) *FileStore {
	return &FileStore{fs: fsys, now: time.Now}
}

func (s *FileStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.now().UTC().Format("2006/01")
	ref := path.Join(dir, uuid.NewString()+extension(name))

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if err := afero.WriteFile(s.fs, ref, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	return ref, nil
}

func (s *FileStore) Open(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete is idempotent: a missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanRef(ref)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func cleanRef(ref string) (string, error) {
	clean := path.Clean(strings.TrimSpace(ref))
	if clean == "." || clean == "" || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return "", ErrNotFound
	}
	return clean, nil
}

func extension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || len(ext) > 8 {
		return ".pdf"
	}
	return ext
}
