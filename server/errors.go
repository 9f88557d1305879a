package server

import (
	"strings"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/teranos/gitlab-ls/errors"
)

// JSON-RPC error codes beyond the ones jsonrpc2 defines.
const (
	CodeServerNotInitialized int64 = -32002
	CodeRequestCancelled     int64 = -32800
)

var (
	// ErrMethodNotFound is returned for requests the server does not implement.
	ErrMethodNotFound = errors.New("method not found")

	// ErrInvalidParams indicates request parameters could not be decoded.
	ErrInvalidParams = errors.New("invalid params")
)

// ErrorCode maps an error to its JSON-RPC code.
func ErrorCode(err error) int64 {
	switch {
	case errors.IsNotReadyError(err):
		return CodeServerNotInitialized
	case errors.IsCancelledError(err):
		return CodeRequestCancelled
	case errors.IsConfigError(err), errors.IsDocumentError(err), errors.Is(err, ErrInvalidParams):
		return jsonrpc2.CodeInvalidParams
	case errors.Is(err, ErrMethodNotFound):
		return jsonrpc2.CodeMethodNotFound
	case errors.Is(err, errors.ErrInvalidRequest):
		return jsonrpc2.CodeInvalidRequest
	default:
		return jsonrpc2.CodeInternalError
	}
}

// ToRPCError converts err into the error object sent to the editor.
// Hints are appended so the editor can show them to the user.
func ToRPCError(err error) *jsonrpc2.Error {
	msg := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		msg += " (" + strings.Join(hints, "; ") + ")"
	}
	return &jsonrpc2.Error{Code: ErrorCode(err), Message: msg}
}
