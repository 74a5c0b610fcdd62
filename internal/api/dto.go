package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/noterefs/internal/references"
	"github.com/starford/noterefs/internal/workspace"
)

// PathRequest names a document.
type PathRequest struct {
	Path string `json:"path" example:"notes/hello.md" validate:"required"`
}

// Validate validates the request.
func (r *PathRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}

// EditRequest replaces Delete bytes at Offset with Insert.
type EditRequest struct {
	Path   string `json:"path" example:"notes/hello.md" validate:"required"`
	Offset int    `json:"offset" example:"42"`
	Delete int    `json:"delete" example:"0"`
	Insert string `json:"insert" example:"new text"`
}

// Validate validates the request.
func (r *EditRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Offset, validation.Min(0)),
		validation.Field(&r.Delete, validation.Min(0)),
	)
}

// ActivateRequest activates the reference at Offset.
type ActivateRequest struct {
	Path   string `json:"path" example:"notes/hello.md" validate:"required"`
	Offset int    `json:"offset" example:"20"`
}

// Validate validates the request.
func (r *ActivateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Offset, validation.Min(0)),
	)
}

// ActivateResponse reports the opened reference.
type ActivateResponse struct {
	Target string `json:"target" example:"notes/world.md"`
	Opened bool   `json:"opened"`
}

// DocumentListResponse lists the open documents.
type DocumentListResponse struct {
	Documents []string `json:"documents" validate:"required"`
}

// DocumentView is the state of an open document (aliased from the domain layer).
type DocumentView = workspace.View

// ReferencesResponse carries both reference lists of a note.
type ReferencesResponse struct {
	Path       string              `json:"path" example:"notes/hello.md"`
	References references.Snapshot `json:"references"`
}
