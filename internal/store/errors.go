package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidID is returned when the database rejects an identifier's format.
var ErrInvalidID = errors.New("invalid identifier")

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = errors.New("duplicate record")

// ErrUnknownOwner is returned when a post references a user that does not exist.
var ErrUnknownOwner = errors.New("unknown owner")

const (
	pqInvalidTextRepresentation = "22P02"
	pqForeignKeyViolation       = "23503"
	pqUniqueViolation           = "23505"
)

// classify maps driver errors onto the store's sentinel errors.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqInvalidTextRepresentation:
		return errors.Join(ErrInvalidID, err)
	case pqForeignKeyViolation:
		return errors.Join(ErrUnknownOwner, err)
	case pqUniqueViolation:
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
