// Package blob stores uploaded file contents outside the database. Keys are
// generated by the storage, never taken from client-supplied file names.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotExist   = errors.New("blob does not exist")
	ErrInvalidKey = errors.New("invalid blob key")
)

type Storage interface {
	// NewKey returns a fresh key for a blob belonging to the project. The
	// extension of originalName is kept when it is a plain one.
	NewKey(projectID uint, originalName string) string
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, error)
	// Rename moves the blob at from to to, replacing any blob at to.
	Rename(from, to string) error
	Delete(key string) error
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

func (s *LocalStorage) NewKey(projectID uint, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d/%s%s", projectID, uuid.NewString(), ext)
}

// Put writes r to key. A partially written blob is removed on failure.
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, &contextReader{ctx: ctx, r: r})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}

	return n, nil
}

func (s *LocalStorage) Open(key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}

func (s *LocalStorage) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotExist
	}
	return err
}

func (s *LocalStorage) Rename(from, to string) error {
	src, err := s.path(from)
	if err != nil {
		return err
	}
	dst, err := s.path(to)
	if err != nil {
		return err
	}

	err = os.Rename(src, dst)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotExist
	}
	return err
}

// path resolves key under the storage root and refuses anything that would
// escape it.
func (s *LocalStorage) path(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidKey
	}

	return path, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
