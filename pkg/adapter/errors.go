package adapter

import (
	"errors"
	"fmt"
)

// ErrorCode classifies archive failures.
type ErrorCode int

const (
	// ErrChecksumMismatch indicates stored bytes diverge from the recorded
	// checksum.
	ErrChecksumMismatch ErrorCode = iota + 1

	// ErrNoCopy indicates no retrievable copy exists where one was expected.
	ErrNoCopy

	// ErrNotIngested indicates the resource is unknown to the catalog.
	ErrNotIngested

	// ErrStorageFailed indicates a backend write or delete failed.
	ErrStorageFailed

	// ErrRestorationFailed indicates a repair attempt could not complete.
	ErrRestorationFailed

	// ErrAdapterCreation indicates an adapter could not be constructed.
	ErrAdapterCreation

	// ErrConfiguration indicates invalid or missing configuration.
	ErrConfiguration
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrChecksumMismatch:
		return "ChecksumMismatch"
	case ErrNoCopy:
		return "NoCopyExists"
	case ErrNotIngested:
		return "ResourceNotIngested"
	case ErrStorageFailed:
		return "StorageFailed"
	case ErrRestorationFailed:
		return "RestorationFailed"
	case ErrAdapterCreation:
		return "AdapterCreationFailed"
	case ErrConfiguration:
		return "ConfigurationError"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// ArchiveError is an archive failure with a classification code. Resource and
// Adapter identify where it happened when known.
type ArchiveError struct {
	Code     ErrorCode
	Message  string
	Resource string
	Adapter  string
	Err      error
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Resource != "" {
		msg += fmt.Sprintf(" (resource: %s)", e.Resource)
	}
	if e.Adapter != "" {
		msg += fmt.Sprintf(" (adapter: %s)", e.Adapter)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As
// through the ArchiveError wrapper.
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// NewChecksumMismatchError reports bytes diverging from the recorded checksum.
func NewChecksumMismatchError(resource, adapterID, expected, actual string) *ArchiveError {
	return &ArchiveError{
		Code:     ErrChecksumMismatch,
		Message:  fmt.Sprintf("expected %s, got %s", expected, actual),
		Resource: resource,
		Adapter:  adapterID,
	}
}

// NewNoCopyError reports a missing copy.
func NewNoCopyError(resource, adapterID string) *ArchiveError {
	return &ArchiveError{
		Code:     ErrNoCopy,
		Message:  "no copy exists",
		Resource: resource,
		Adapter:  adapterID,
	}
}

// NewNotIngestedError reports a resource the catalog does not know.
func NewNotIngestedError(resource string) *ArchiveError {
	return &ArchiveError{
		Code:     ErrNotIngested,
		Message:  "resource has not been ingested",
		Resource: resource,
	}
}

// NewStorageFailedError reports a failed backend operation.
func NewStorageFailedError(resource, adapterID, operation string, err error) *ArchiveError {
	return &ArchiveError{
		Code:     ErrStorageFailed,
		Message:  fmt.Sprintf("%s failed", operation),
		Resource: resource,
		Adapter:  adapterID,
		Err:      err,
	}
}

// NewRestorationFailedError reports a repair that could not complete.
func NewRestorationFailedError(resource, adapterID string, err error) *ArchiveError {
	return &ArchiveError{
		Code:     ErrRestorationFailed,
		Message:  "restoration failed",
		Resource: resource,
		Adapter:  adapterID,
		Err:      err,
	}
}

// NewAdapterCreationError reports an adapter that could not be constructed.
func NewAdapterCreationError(adapterType string, err error) *ArchiveError {
	return &ArchiveError{
		Code:    ErrAdapterCreation,
		Message: fmt.Sprintf("cannot create adapter of type %q", adapterType),
		Err:     err,
	}
}

// NewConfigurationError reports invalid or missing configuration.
func NewConfigurationError(message string) *ArchiveError {
	return &ArchiveError{
		Code:    ErrConfiguration,
		Message: message,
	}
}

// hasCode matches the code anywhere in the error chain, including through
// errors.Join trees and ArchiveErrors wrapping other ArchiveErrors.
func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var archErr *ArchiveError
		if !errors.As(err, &archErr) {
			return false
		}
		if archErr.Code == code {
			return true
		}
		err = archErr.Err
	}
	return false
}

// IsChecksumMismatch returns true if the error is a checksum mismatch.
func IsChecksumMismatch(err error) bool {
	return hasCode(err, ErrChecksumMismatch)
}

// IsNoCopy returns true if the error reports a missing copy.
func IsNoCopy(err error) bool {
	return hasCode(err, ErrNoCopy)
}

// IsNotIngested returns true if the error reports an unknown resource.
func IsNotIngested(err error) bool {
	return hasCode(err, ErrNotIngested)
}

// IsStorageFailed returns true if the error reports a failed backend operation.
func IsStorageFailed(err error) bool {
	return hasCode(err, ErrStorageFailed)
}

// IsRestorationFailed returns true if the error reports a failed repair.
func IsRestorationFailed(err error) bool {
	return hasCode(err, ErrRestorationFailed)
}

// IsConfigurationError returns true if the error reports bad configuration.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrConfiguration)
}
