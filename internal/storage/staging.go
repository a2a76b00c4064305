package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// ErrReaderNil is returned when an upload has no byte stream.
var ErrReaderNil = errors.New("reader is nil")

// Stager writes uploads to private, uniquely named temporary files so that
// large payload I/O happens before any per-volume lock is taken.
type Stager struct {
	dir string
}

// NewStager creates a stager writing below dir (the OS temp dir when empty).
func NewStager(dir string) *Stager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Stager{dir: dir}
}

// Staged is a handle on a staged upload. Discard removes the temporary file
// exactly once no matter how many times, or from how many exit paths, it is called.
type Staged struct {
	path string
	size int64

	once sync.Once
	err  error
}

// Stage copies r into a new temporary file. On failure nothing is left behind.
func (s *Stager) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	f, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	n, err := io.Copy(f, ctxReader{ctx: ctx, r: r})
	if err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("write staging file: %w", err)
	}

	return &Staged{path: f.Name(), size: n}, nil
}

// Path returns the temporary file location.
func (s *Staged) Path() string { return s.path }

// Size returns the number of staged bytes.
func (s *Staged) Size() int64 { return s.size }

// Open opens the staged bytes for reading.
func (s *Staged) Open() (*os.File, error) {
	return os.Open(s.path)
}

// Discard removes the temporary file. Subsequent calls return the first result.
func (s *Staged) Discard() error {
	s.once.Do(func() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.err = err
		}
	})
	return s.err
}
