package entities

import (
	"fmt"
	"strings"
)

// NotFoundError reports identifiers that do not resolve to live records.
type NotFoundError struct {
	Resource string
	IDs      []string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	if len(e.IDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, strings.Join(e.IDs, ", "))
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	switch target.(type) {
	case NotFoundError, *NotFoundError:
		return true
	}
	return false
}

// ConflictError reports a write that clashes with the current state.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	if e.Reason == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

// Is enables errors.Is matching on ConflictError.
func (e ConflictError) Is(target error) bool {
	switch target.(type) {
	case ConflictError, *ConflictError:
		return true
	}
	return false
}

// IntegrityError reports a change refused by a pivot's delete policy.
type IntegrityError struct {
	Reason string
}

func (e IntegrityError) Error() string {
	if e.Reason == "" {
		return "integrity violation"
	}
	return "integrity violation: " + e.Reason
}

// Is enables errors.Is matching on IntegrityError.
func (e IntegrityError) Is(target error) bool {
	switch target.(type) {
	case IntegrityError, *IntegrityError:
		return true
	}
	return false
}

// ValidationError reports a malformed name, identifier or policy.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return "invalid input"
	}
	return "invalid input: " + e.Reason
}

// Is enables errors.Is matching on ValidationError.
func (e ValidationError) Is(target error) bool {
	switch target.(type) {
	case ValidationError, *ValidationError:
		return true
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrNotFound   = NotFoundError{}
	ErrConflict   = ConflictError{}
	ErrIntegrity  = IntegrityError{}
	ErrValidation = ValidationError{}
)

// StaleFingerprintError is a ConflictError raised when a conditional
// synchronize finds the association set changed underneath it.
type StaleFingerprintError struct {
	Expected string
	Actual   string
}

func (e StaleFingerprintError) Error() string {
	return fmt.Sprintf("conflict: association set changed (expected %s, have %s)", e.Expected, e.Actual)
}

// Is matches both ErrConflict and other StaleFingerprintError values.
func (e StaleFingerprintError) Is(target error) bool {
	switch target.(type) {
	case ConflictError, *ConflictError, StaleFingerprintError, *StaleFingerprintError:
		return true
	}
	return false
}
