package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps each record as a file under a root directory.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the store directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Get(_ context.Context, p string) ([]byte, error) {
	if err := validatePath(p); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.abs(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", p, err)
	}
	return data, nil
}

// Put writes through a temp file and renames it into place, so readers
// never observe a partially written record.
func (s *FileStore) Put(_ context.Context, p string, data []byte) error {
	if err := validatePath(p); err != nil {
		return err
	}
	target := s.abs(p)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".record_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write record %s: %w", p, err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync record %s: %w", p, err)
	}
	tmpFile.Close()

	return os.Rename(tmpPath, target)
}

func (s *FileStore) Delete(_ context.Context, p string) error {
	if err := validatePath(p); err != nil {
		return err
	}
	err := os.Remove(s.abs(p))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete record %s: %w", p, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".record_tmp_") {
			return nil
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *FileStore) abs(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}
