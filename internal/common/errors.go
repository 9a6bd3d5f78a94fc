// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InvariantViolationError reports an entity-store mutation that was rejected
// because it would break a ledger rule. The store is left unchanged whenever
// this error is returned.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// Violation creates an InvariantViolationError with a formatted reason.
func Violation(format string, args ...any) error {
	return &InvariantViolationError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvariantViolation reports whether err is an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var ive *InvariantViolationError
	return errors.As(err, &ive)
}

// DecodeReason enumerates why a snapshot archive failed to decode.
type DecodeReason string

const (
	// DecodeBadKey covers authentication failure: wrong key or a tampered
	// archive. The two are indistinguishable by design.
	DecodeBadKey DecodeReason = "bad key or tampered archive"
	// DecodeUnsupportedVersion covers archives newer than this build.
	DecodeUnsupportedVersion DecodeReason = "unsupported format version"
	// DecodeCorrupt covers truncated or malformed archives.
	DecodeCorrupt DecodeReason = "corrupt archive"
	// DecodeInvalidContent covers archives that decrypt and parse but hold
	// inconsistent data, such as a transaction whose category is missing.
	DecodeInvalidContent DecodeReason = "invalid snapshot content"
)

// DecodeError reports a failed snapshot decode. A decode never partially
// populates a snapshot; callers get either a valid structure or this error.
type DecodeError struct {
	Err    error
	Reason DecodeReason
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode failed: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a DecodeError with an optional cause.
func NewDecodeError(reason DecodeReason, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// MergeError reports an aborted merge. The target store has been rolled back
// to its pre-merge state whenever this error is returned.
type MergeError struct {
	Err    error
	Reason string
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("merge failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("merge failed: %s", e.Reason)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
