// Package models defines the domain types shared across noterefs packages.
package models

import "time"

// Reference is one entry of a links or backlinks list.
// RelativePath is AbsolutePath with the collection root stripped.
type Reference struct {
	RelativePath string `json:"relative_path"`
	AbsolutePath string `json:"absolute_path"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
