// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"errors"
	"fmt"
)

// Errors returned to embedders by registry mutations.
var (
	// ErrAlreadyExists indicates that a path is already registered.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrNotFound indicates that a path is not registered.
	ErrNotFound = errors.New("resource not found")
)

// Errors describing why a connection failed. They only appear in logs:
// the peer just sees the corresponding status code.
var (
	// ErrBadRequest indicates a malformed or incomplete request.
	ErrBadRequest = errors.New("bad request")

	// ErrBodyTooLarge indicates a rendered document exceeding the body buffer.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrMethodNotImplemented indicates a method other than GET.
	ErrMethodNotImplemented = errors.New("method not implemented")

	// ErrRequestTimeout indicates that the inactivity timer fired.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrRequestTooLarge indicates a request exceeding the read buffer.
	ErrRequestTooLarge = errors.New("request too large")

	// ErrResourceNotFound indicates a request for an unregistered path.
	ErrResourceNotFound = errors.New("no such resource")
)

// ErrListenerNotBound is returned by [Listener.Start] when [Listener.Bind]
// was not called or failed.
var ErrListenerNotBound = errors.New("listener not bound")

// BindError is the error returned by [Listener.Bind].
type BindError struct {
	// Address is the address we tried to bind.
	Address string

	// Err is the underlying error.
	Err error
}

var _ error = &BindError{}

// Error implements error.
func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %s", e.Address, e.Err.Error())
}

// Unwrap returns the underlying error.
func (e *BindError) Unwrap() error {
	return e.Err
}
