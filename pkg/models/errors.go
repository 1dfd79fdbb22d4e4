package models

import (
	"fmt"
	"github.com/pkg/errors"
)

type ErrorKind int

const (
	InternalError ErrorKind = iota
	DownloadError
	ConversionError
	TranscriptionError
	AuthError
	VendorError
	CompletionError
)

func (k ErrorKind) String() string {
	kinds := [...]string{
		"InternalError",
		"DownloadError",
		"ConversionError",
		"TranscriptionError",
		"AuthError",
		"VendorError",
		"CompletionError",
	}

	if k < InternalError || k > CompletionError {
		return "Unknown"
	}

	return kinds[k]
}

// Error is the failure type crossing component boundaries, the webhook turns its Kind into a user reply.
type Error struct {
	Kind ErrorKind

	// Status and Body are set for VendorError and DownloadError.
	Status int
	Body   string
	cause  error
}

func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

func NewVendorError(status int, body string) *Error {
	return &Error{Kind: VendorError, Status: status, Body: body}
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.cause != nil:
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.cause)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Body)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	case e.Body != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Body)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Cause lets errors.Cause from pkg/errors walk past the typed wrapper.
func (e *Error) Cause() error { return e.cause }

// KindOf finds the first *Error in the chain, anything untyped counts as InternalError.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return InternalError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
