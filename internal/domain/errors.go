// Package domain contains the core business entities, rules and ports.
package domain

import "github.com/pkg/errors"

// Error kinds returned by services and repositories. Callers match them with
// errors.Is; the HTTP adapter maps each one to a status code.
var (
	// ErrNotFound indicates that a user, book or reservation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOutOfStock indicates that a book has no available copies left.
	ErrOutOfStock = errors.New("no copies available")
	// ErrAlreadyReturned indicates that a reservation is no longer active.
	ErrAlreadyReturned = errors.New("reservation already returned")
	// ErrConflict indicates a uniqueness or referential conflict.
	ErrConflict = errors.New("conflict")
	// ErrInvalid indicates that input failed validation.
	ErrInvalid = errors.New("invalid input")
)
