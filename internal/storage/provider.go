// Package storage defines the note collection file-system abstraction.
package storage

import "github.com/starford/noterefs/internal/models"

// Provider is the interface for collection file operations.
// Paths are relative to the collection root and use the host separator.
type Provider interface {
	// Root returns the absolute path of the collection root.
	Root() string
	// List returns metadata for every note file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Ignored reports whether path matches one of the ignore patterns.
	Ignored(path string) bool
}
