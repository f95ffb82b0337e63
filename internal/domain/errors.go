package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeEncoding         = "ENCODING_ERROR"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInvalidQuery     = "INVALID_QUERY"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeContentBlocked   = "CONTENT_BLOCKED"
	ErrCodeServiceError     = "SERVICE_ERROR"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidMetadataValue = NewDomainError(ErrCodeValidation, "metadata values must be string, number, or boolean")
	ErrInvalidTopK          = NewDomainError(ErrCodeInvalidQuery, "top_k must be at least 1")
	ErrEmptyQuestion        = NewDomainError(ErrCodeInvalidQuery, "question text is required")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIngestJobNotFound = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Pipeline errors
var (
	ErrInputTooLong     = NewDomainError(ErrCodeEncoding, "input exceeds embedding model maximum length")
	ErrStoreUnavailable = NewDomainError(ErrCodeStoreUnavailable, "vector store unreachable")
	ErrRateLimited      = NewDomainError(ErrCodeRateLimited, "generation service rate limited the request")
	ErrContentBlocked   = NewDomainError(ErrCodeContentBlocked, "generation service refused the request on policy grounds")
	ErrGenerationFailed = NewDomainError(ErrCodeServiceError, "generation service failed")
	ErrQuestionTimeout  = NewDomainError(ErrCodeTimeout, "question deadline exceeded")
)

// ErrorCode extracts the domain error code from err, walking the wrap chain.
// Returns ErrCodeInternalError for non-domain errors.
func ErrorCode(err error) string {
	for err != nil {
		if de, ok := err.(*DomainError); ok {
			return de.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCodeInternalError
}
