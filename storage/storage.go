// Package storage provides the object storage abstraction for media blobs
// and derived artifacts. The S3 adapter covers AWS S3 and S3-compatible
// services; the filesystem adapter backs local development and tests.
package storage

import (
	"fmt"
	"io"
	"time"

	"github.com/medialens/medialens/config"
)

// Interface defines the object storage operations the pipeline needs.
type Interface interface {
	// Put uploads content from the given reader to the specified path.
	// Returns object metadata on success.
	Put(path string, reader io.Reader) (*Object, error)

	// GetStream returns a readable stream for the object.
	// Caller is responsible for closing the reader when done.
	GetStream(path string) (io.ReadCloser, error)

	// List returns all objects under the specified path prefix.
	List(path string) ([]*Object, error)

	// Delete removes the object at the specified path.
	Delete(path string) error

	// Exists checks if an object exists at the specified path.
	Exists(path string) (bool, error)
}

// Object represents metadata about a stored object.
type Object struct {
	Path         string     // Object path in storage
	Name         string     // Base name
	LastModified *time.Time // Last modification time
	Size         int64      // Size in bytes
}

// New creates a storage adapter from configuration.
func New(cfg *config.Storage) (Interface, error) {
	switch cfg.Provider {
	case "s3", "":
		return NewS3Adapter(cfg.ID, cfg.Secret, cfg.Region, cfg.Bucket, cfg.Endpoint)
	case "filesystem":
		return NewFilesystemAdapter(cfg.Bucket)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
