// Package errors provides error handling for gitlab-ls.
//
// This package re-exports github.com/cockroachdb/errors and adds the
// sentinel errors the language server reports to editors. Wrap a sentinel
// to add context while keeping it matchable:
//
//	return errors.Wrapf(errors.ErrUnknownDocument, "uri %s", uri)
//
//	if errors.Is(err, errors.ErrStaleVersion) {
//	    // ask the editor to resend the document
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors. Every error surfaced to an editor is, or wraps, one of these.
var (
	// ErrConfig means session configuration is missing or malformed.
	ErrConfig = New("configuration error")

	// ErrUnknownDocument means an edit, close or completion named a document that is not open.
	ErrUnknownDocument = New("unknown document")

	// ErrStaleVersion means an edit carried a version not newer than the stored one,
	// or the document lost sync and must be resent whole.
	ErrStaleVersion = New("stale document version")

	// ErrDuplicateDocument means an open was received for a document already open at a newer version.
	ErrDuplicateDocument = New("document already open")

	// ErrTooManyDocuments means the open-document limit was reached.
	ErrTooManyDocuments = New("too many open documents")

	// ErrFetch means resource data could not be retrieved and no cached copy exists.
	ErrFetch = New("resource fetch failed")

	// ErrNotReady means the request is not allowed in the current session state.
	ErrNotReady = New("server not ready")

	// ErrInvalidRequest means the request was malformed.
	ErrInvalidRequest = New("invalid request")

	// ErrRequestCancelled means the client cancelled the request before it completed.
	ErrRequestCancelled = New("request cancelled")
)

// IsConfigError checks if an error is or wraps ErrConfig
func IsConfigError(err error) bool {
	return err != nil && Is(err, ErrConfig)
}

// IsDocumentError reports whether err is one of the document lifecycle errors.
func IsDocumentError(err error) bool {
	return err != nil && IsAny(err, ErrUnknownDocument, ErrStaleVersion, ErrDuplicateDocument, ErrTooManyDocuments)
}

// IsFetchError checks if an error is or wraps ErrFetch
func IsFetchError(err error) bool {
	return err != nil && Is(err, ErrFetch)
}

// IsNotReadyError checks if an error is or wraps ErrNotReady
func IsNotReadyError(err error) bool {
	return err != nil && Is(err, ErrNotReady)
}

// IsCancelledError checks if an error is or wraps ErrRequestCancelled
func IsCancelledError(err error) bool {
	return err != nil && Is(err, ErrRequestCancelled)
}

// NewConfigError creates a configuration error with a formatted message
func NewConfigError(format string, args ...interface{}) error {
	return Wrap(ErrConfig, Newf(format, args...).Error())
}

// WrapFetch marks cause as a fetch failure while keeping it in the chain.
func WrapFetch(cause error, format string, args ...interface{}) error {
	return Mark(Wrapf(cause, format, args...), ErrFetch)
}
