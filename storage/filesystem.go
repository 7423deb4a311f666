package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemAdapter implements Interface on the local filesystem.
// Intended for development and tests.
type FilesystemAdapter struct {
	root string
}

// NewFilesystemAdapter creates a filesystem adapter rooted at dir.
func NewFilesystemAdapter(root string) (*FilesystemAdapter, error) {
	if root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemAdapter{root: root}, nil
}

func (a *FilesystemAdapter) fullPath(path string) string {
	return filepath.Join(a.root, filepath.FromSlash(path))
}

// Put writes content to the specified path.
func (a *FilesystemAdapter) Put(path string, reader io.Reader) (*Object, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	full := a.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	mod := info.ModTime()

	return &Object{
		Path:         path,
		Name:         filepath.Base(path),
		LastModified: &mod,
		Size:         size,
	}, nil
}

// GetStream returns a reader for the object at path.
func (a *FilesystemAdapter) GetStream(path string) (io.ReadCloser, error) {
	f, err := os.Open(a.fullPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// List returns all objects under the specified prefix, sorted by path.
func (a *FilesystemAdapter) List(path string) ([]*Object, error) {
	var objects []*Object

	err := filepath.Walk(a.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, path) {
			return nil
		}
		mod := info.ModTime()
		objects = append(objects, &Object{
			Path:         rel,
			Name:         filepath.Base(rel),
			LastModified: &mod,
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

// Delete removes the object at path. Missing objects are not an error.
func (a *FilesystemAdapter) Delete(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if err := os.Remove(a.fullPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if an object exists at path.
func (a *FilesystemAdapter) Exists(path string) (bool, error) {
	_, err := os.Stat(a.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}
