package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies a pipeline failure by the stage that produced it.
type ErrorType string

const (
	ErrorTypeDocumentDecode ErrorType = "document_decode"
	ErrorTypePageIndex      ErrorType = "page_index"
	ErrorTypeDeckWrite      ErrorType = "deck_write"
	ErrorTypeDeckRead       ErrorType = "deck_read"
	ErrorTypeReportFetch    ErrorType = "report_fetch"
	ErrorTypeModelInference ErrorType = "model_inference"
	ErrorTypeExtraction     ErrorType = "extraction"
	ErrorTypeUpload         ErrorType = "upload"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeIO             ErrorType = "io"
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

// TypeOf returns the type of the outermost DomainError in err's chain, or ""
// when err carries none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether any DomainError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Err
	}
	return false
}

// Common error constructors
func DocumentDecodeError(message string, err error) *DomainError {
	return NewError(ErrorTypeDocumentDecode, message, err)
}

func PageIndexError(message string, err error) *DomainError {
	return NewError(ErrorTypePageIndex, message, err)
}

func DeckWriteError(message string, err error) *DomainError {
	return NewError(ErrorTypeDeckWrite, message, err)
}

func DeckReadError(message string, err error) *DomainError {
	return NewError(ErrorTypeDeckRead, message, err)
}

func ReportFetchFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeReportFetch, message, err)
}

func ModelInferenceFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeModelInference, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func UploadFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeUpload, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}
