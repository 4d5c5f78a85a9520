package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique column such as a username or program name is taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a CHECK or NOT NULL constraint
	// or references a parent that does not exist.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when deleting a record that other records still reference.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
