// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package file

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when a File lacks a requested capability.
var ErrUnsupported = errors.New("unsupported interface")

// ErrCollapse is returned by Memento.Save when the snapshot carries no
// change and should be absorbed into the previous one.
var ErrCollapse = errors.New("collapse")

// NotFoundError reports a failed path resolution. Stack holds the
// stringified partial stack at the failing segment.
type NotFoundError struct {
	Path  string
	Stack string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s (reached %s)", e.Path, e.Stack)
}

// DeserializeError reports malformed persisted data or an unknown
// TypeInfo. It wraps the underlying decoder error when one exists.
type DeserializeError struct {
	Msg string
	Err error
}

func (e *DeserializeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deserialize: %s: %s", e.Msg, e.Err)
	}
	return "deserialize: " + e.Msg
}

func (e *DeserializeError) Unwrap() error { return e.Err }

// Deserializef wraps err into a DeserializeError with a formatted
// message. Nested DeserializeErrors are returned unchanged so the
// innermost message survives to the surface.
func Deserializef(err error, format string, args ...interface{}) error {
	var inner *DeserializeError
	if errors.As(err, &inner) {
		return err
	}
	return &DeserializeError{Msg: fmt.Sprintf(format, args...), Err: err}
}
