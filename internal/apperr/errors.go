package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrNotOpen  = errors.New("document not open")
	ErrInvalid  = errors.New("invalid request")
)
