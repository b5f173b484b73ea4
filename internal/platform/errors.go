// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package platform

import (
	"errors"
	"fmt"
)

// ErrorCode classifies the failure of a one-shot position acquisition.
type ErrorCode int

const (
	// CodeUnknown is reported when the failure does not fit any other class.
	CodeUnknown ErrorCode = iota
	// CodePermissionDenied is reported when the host denies access to the capability.
	CodePermissionDenied
	// CodePositionUnavailable is reported when the capability cannot deliver a fix.
	CodePositionUnavailable
	// CodeTimeout is reported when the request exceeds the configured timeout.
	CodeTimeout
)

// PositionError is the error type returned by one-shot position acquisitions.
type PositionError struct {
	Code   ErrorCode
	Reason string
	err    error
}

// NewPositionError returns a new PositionError with the given code and reason.
func NewPositionError(code ErrorCode, format string, args ...any) *PositionError {
	return &PositionError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// WrapPositionError returns a new PositionError with the given code that wraps err.
func WrapPositionError(code ErrorCode, err error) *PositionError {
	return &PositionError{Code: code, Reason: err.Error(), err: err}
}

// Error satisfies the error interface.
func (e *PositionError) Error() string {
	return e.Reason
}

// Unwrap returns the wrapped error, if any.
func (e *PositionError) Unwrap() error {
	return e.err
}

// CodeOf extracts the ErrorCode from an error chain. Errors that carry no
// PositionError classify as CodeUnknown.
func CodeOf(err error) ErrorCode {
	var posErr *PositionError
	if errors.As(err, &posErr) {
		return posErr.Code
	}
	return CodeUnknown
}
