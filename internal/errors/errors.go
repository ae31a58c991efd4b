// Package errors provides the error definitions shared by the whole project.
//
// This file provides:
//   - Sentinel errors for all error conditions
//   - Typed errors carrying context (ProbeStartError)
//   - Error category checking functions
//   - Error wrapping utilities
//   - ValidationErrors collector for configuration checks
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Configuration errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidHost     = errors.New("invalid host")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrUnknownBackend  = errors.New("unknown backend")

	// Probe errors
	ErrProbeStart = errors.New("probe start failed")

	// Store errors
	ErrStoreWrite  = errors.New("store write failed")
	ErrStoreFlush  = errors.New("store flush failed")
	ErrStoreClosed = errors.New("store is closed")

	// Run errors
	ErrRunAborted  = errors.New("run aborted")
	ErrFlushFailed = errors.New("final flush failed")

	// Measurement errors
	ErrEmptyHost        = errors.New("measurement host is empty")
	ErrNegativeDuration = errors.New("measurement duration is negative")
)

// ============================================================================
// Typed errors
// ============================================================================

// ProbeStartError reports that the probe subsystem could not be launched for
// a host. It is recoverable: the driver decides whether to skip the host or
// abort the run.
type ProbeStartError struct {
	Host string
	Err  error
}

// Error implements the error interface.
func (e *ProbeStartError) Error() string {
	return fmt.Sprintf("start probe for %s: %v", e.Host, e.Err)
}

// Unwrap returns the cause.
func (e *ProbeStartError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProbeStart) true for every ProbeStartError.
func (e *ProbeStartError) Is(target error) bool {
	return target == ErrProbeStart
}

// NewProbeStartError wraps err as a ProbeStartError for host.
func NewProbeStartError(host string, err error) error {
	return &ProbeStartError{Host: host, Err: err}
}

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// New is a convenience wrapper for errors.New
var New = errors.New

// IsValidation returns true if err is a configuration validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidHost) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrUnknownBackend)
}

// IsProbeStart returns true if err reports a probe that could not start.
func IsProbeStart(err error) bool {
	return errors.Is(err, ErrProbeStart)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// NewUnknownBackend creates an unknown backend error.
func NewUnknownBackend(kind, name string) error {
	return fmt.Errorf("%s %q: %w", kind, name, ErrUnknownBackend)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if !v.HasErrors() {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
