// Package errs defines the error kinds callers branch on. Kinds are attached
// with Mark so wrapped errors keep their message and stack while still
// matching the sentinel.
package errs

import (
	cr "github.com/cockroachdb/errors"
)

var (
	ErrNotFound  = cr.New("not found")
	ErrForbidden = cr.New("forbidden")
	ErrConflict  = cr.New("conflict")
	ErrInvalid   = cr.New("invalid argument")
)

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func Is(err, reference error) bool {
	return cr.Is(err, reference)
}

// NotFoundf returns a new error of kind ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return cr.Mark(cr.Newf(format, args...), ErrNotFound)
}

// Invalidf returns a new error of kind ErrInvalid.
func Invalidf(format string, args ...any) error {
	return cr.Mark(cr.Newf(format, args...), ErrInvalid)
}

// Forbiddenf returns a new error of kind ErrForbidden.
func Forbiddenf(format string, args ...any) error {
	return cr.Mark(cr.Newf(format, args...), ErrForbidden)
}

// Conflictf returns a new error of kind ErrConflict.
func Conflictf(format string, args ...any) error {
	return cr.Mark(cr.Newf(format, args...), ErrConflict)
}
