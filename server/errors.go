// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The ippError type: a status code plus a human-readable message,
// returned by handlers and turned into a minimal response by the
// dispatcher.

package server

import "github.com/OpenPrinting/goipp"

// ippError pairs an IPP status code with a status-message. Handlers
// return one instead of building a full response when the request
// fails before reaching its object-specific logic.
type ippError struct {
	status  goipp.Status
	message string
}

func (e *ippError) Error() string { return e.message }

func ippErrorf(status goipp.Status, message string) *ippError {
	return &ippError{status: status, message: message}
}

// Common errors named once for reuse across handlers.
var (
	errNotFound        = ippErrorf(goipp.StatusErrorNotFound, "object not found")
	errForbidden       = ippErrorf(goipp.StatusErrorForbidden, "operation not permitted")
	errNotAuthorized   = ippErrorf(goipp.StatusErrorNotAuthorized, "authentication required")
	errBadRequest      = ippErrorf(goipp.StatusErrorBadRequest, "malformed request")
	errServiceUnavail  = ippErrorf(goipp.StatusErrorServiceUnavailable, "printer is shut down")
	errNotPossible     = ippErrorf(goipp.StatusErrorNotPossible, "operation not possible in current state")
	errInternal        = ippErrorf(goipp.StatusErrorInternal, "internal server error")
)
