package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeRasterization ErrorType = "rasterization"
	ErrorTypeCapability    ErrorType = "capability"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeAlignment     ErrorType = "alignment"
	ErrorTypeDiff          ErrorType = "diff"
	ErrorTypeComposition   ErrorType = "composition"
	ErrorTypeConfig        ErrorType = "config"
	ErrorTypeIO            ErrorType = "io"
	ErrorTypeAPI           ErrorType = "api"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

// RasterizationError reports an unreadable or corrupt input document.
func RasterizationError(message string, err error) *DomainError {
	return NewError(ErrorTypeRasterization, message, err)
}

// CapabilityError reports that a required external capability is missing.
func CapabilityError(message string, err error) *DomainError {
	return NewError(ErrorTypeCapability, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func CompositionError(message string, err error) *DomainError {
	return NewError(ErrorTypeComposition, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// ErrorTypeOf returns the type of the outermost DomainError in err's chain.
func ErrorTypeOf(err error) (ErrorType, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type, true
	}
	return "", false
}

// IsFatal reports whether err aborts a whole comparison.
func IsFatal(err error) bool {
	t, ok := ErrorTypeOf(err)
	if !ok {
		return false
	}
	switch t {
	case ErrorTypeValidation, ErrorTypeRasterization, ErrorTypeCapability, ErrorTypeConfig, ErrorTypeComposition, ErrorTypeIO:
		return true
	}
	return false
}

// IsCapabilityMissing reports whether err was caused by a missing external capability
// rather than by bad input.
func IsCapabilityMissing(err error) bool {
	t, ok := ErrorTypeOf(err)
	return ok && t == ErrorTypeCapability
}

// Degradation records a sub-stage that fell back from its primary strategy.
type Degradation struct {
	Stage    string `json:"stage"`
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

func (d Degradation) String() string {
	return fmt.Sprintf("%s/%s: %s", d.Stage, d.Strategy, d.Reason)
}
