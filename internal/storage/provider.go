// Package storage defines the file-system abstraction shared by the docs
// tree, the rendered site and the data directory.
package storage

import "github.com/starford/marketnotes/internal/models"

// Provider is the interface for root-relative file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to root).
	List(dir string) ([]models.FileMetadata, error)
	// Files returns metadata for every non-hidden file under dir, any extension.
	Files(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root) and the parent
	// directories that become empty.
	Delete(path string) error
	// Root returns the absolute root directory.
	Root() string
}
