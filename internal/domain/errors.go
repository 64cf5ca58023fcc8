package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the risk core. Typed errors below match them with errors.Is.
var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrNumericalInstability = errors.New("numerical instability")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// InsufficientDataError reports a series or sample too short for the requested estimate
type InsufficientDataError struct {
	InstrumentID string
	Required     int
	Available    int
	Reason       string
}

// NewInsufficientDataError creates an InsufficientDataError
func NewInsufficientDataError(instrumentID string, required, available int, reason string) *InsufficientDataError {
	return &InsufficientDataError{InstrumentID: instrumentID, Required: required, Available: available, Reason: reason}
}

func (e *InsufficientDataError) Error() string {
	subject := "portfolio"
	if e.InstrumentID != "" {
		subject = e.InstrumentID
	}
	msg := fmt.Sprintf("%s: %s: need %d observations, have %d", ErrInsufficientData, subject, e.Required, e.Available)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Is matches ErrInsufficientData
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// DimensionMismatchError reports inputs whose instrument sets or shapes disagree
type DimensionMismatchError struct {
	Expected int
	Actual   int
	Missing  []string
	Reason   string
}

// NewDimensionMismatchError creates a DimensionMismatchError
func NewDimensionMismatchError(expected, actual int, missing []string, reason string) *DimensionMismatchError {
	return &DimensionMismatchError{Expected: expected, Actual: actual, Missing: missing, Reason: reason}
}

func (e *DimensionMismatchError) Error() string {
	msg := fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch, e.Expected, e.Actual)
	if len(e.Missing) > 0 {
		msg += ", missing [" + strings.Join(e.Missing, ", ") + "]"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches ErrDimensionMismatch
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// NumericalInstabilityError reports a covariance matrix that cannot be made positive definite
type NumericalInstabilityError struct {
	Reason        string
	MinEigenvalue float64
}

// NewNumericalInstabilityError creates a NumericalInstabilityError
func NewNumericalInstabilityError(reason string, minEigenvalue float64) *NumericalInstabilityError {
	return &NumericalInstabilityError{Reason: reason, MinEigenvalue: minEigenvalue}
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("%s: %s (min eigenvalue %g)", ErrNumericalInstability, e.Reason, e.MinEigenvalue)
}

// Is matches ErrNumericalInstability
func (e *NumericalInstabilityError) Is(target error) bool {
	return target == ErrNumericalInstability
}

// InvalidConfigurationError reports a rejected configuration value
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

// NewInvalidConfigurationError creates an InvalidConfigurationError
func NewInvalidConfigurationError(field, reason string) *InvalidConfigurationError {
	return &InvalidConfigurationError{Field: field, Reason: reason}
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

// Is matches ErrInvalidConfiguration
func (e *InvalidConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// ErrPortfolioNotFound is returned by portfolio providers for unknown ids
var ErrPortfolioNotFound = errors.New("portfolio not found")
