// Package ioerr categorizes filesystem errors into the POSIX-style
// taxonomy named in spec.md §7: not-found, already-exists, access-denied,
// permission-denied, other. No third-party errors library appears
// anywhere in the retrieval pack, so this stays on stdlib errors/os, as
// the pack itself does throughout (see DESIGN.md).
package ioerr

import (
	"errors"
	"os"
	"syscall"
)

// Category is the coarse-grained I/O failure reason.
type Category string

const (
	NotFound         Category = "not-found"
	AlreadyExists    Category = "already-exists"
	AccessDenied     Category = "access-denied"
	PermissionDenied Category = "permission-denied"
	Other            Category = "other"
)

// Classify maps err onto a Category. A nil err classifies as "" (no
// category); callers should check err != nil first.
func Classify(err error) Category {
	switch {
	case err == nil:
		return ""
	case os.IsNotExist(err):
		return NotFound
	case os.IsExist(err):
		return AlreadyExists
	case errors.Is(err, syscall.EACCES):
		return AccessDenied
	case os.IsPermission(err):
		return PermissionDenied
	default:
		return Other
	}
}

// Error wraps an underlying I/O error with its category and the operation
// being attempted, for structured logging at station initialization
// (spec.md §7: "Fatal at init for the owning station").
type Error struct {
	Op       string
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return e.Op + ": " + string(e.Category) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error from an operation description and underlying err.
// Returns nil if err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Category: Classify(err), Err: err}
}
