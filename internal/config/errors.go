package config

import (
	"errors"
	"fmt"
)

// ErrNoSource is returned when neither --path nor a positional path was given.
var ErrNoSource = errors.New("no input file or URL given")

// ErrOutOfRange marks a numeric option outside its documented range.
var ErrOutOfRange = errors.New("value out of range")

// ArgumentError is a malformed command line: unknown flag, missing value or
// mutually exclusive flags. It aborts before any backend resource exists.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string { return e.Err.Error() }
func (e *ArgumentError) Unwrap() error { return e.Err }

// ValidationError is a rejected option value. The option keeps its default.
type ValidationError struct {
	Flag   string // Long flag name
	Value  string // Raw value as given
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("--%s %q: %s", e.Flag, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MissingSourceError is a local source path that does not exist.
type MissingSourceError struct {
	Path string
	Err  error
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("source %q does not exist", e.Path)
}

func (e *MissingSourceError) Unwrap() error { return e.Err }
