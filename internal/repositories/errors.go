package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested document or row does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not touch the resource
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyExists is returned on a unique constraint violation
	ErrAlreadyExists = errors.New("already exists")
)
