// Package apperr defines the sentinel errors shared by the editor packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidEdge   = errors.New("invalid edge")
	ErrValidation    = errors.New("validation failed")
)
