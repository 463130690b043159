package repositories

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned by services layered on top of the
	// repositories; the repositories themselves return nil, nil for
	// missing rows.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers unique constraint violations and lock
	// contention. Conflicted writes are safe to retry or surface as
	// HTTP 409.
	ErrConflict = errors.New("conflict")
)

func wrapConflict(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint, sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}
