package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNavigation represents an unreachable page or a page load timeout
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeExtraction represents a document that could not be turned into offers
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypePersistence represents snapshot store failures
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a failure attributed to a single product
type ScrapeError struct {
	Type      ErrorType
	ProductID string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	subject := e.ProductID
	if subject == "" {
		subject = "-"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, subject, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, subject, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, productID, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:      errType,
		ProductID: productID,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewNavigation creates a new navigation error
func NewNavigation(productID, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigation, productID, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(productID, message string, err error) *ScrapeError {
	return New(ErrorTypeExtraction, productID, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(productID, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, productID, message, err)
}

// NewPersistence creates a new persistence error
func NewPersistence(productID, message string, err error) *ScrapeError {
	return New(ErrorTypePersistence, productID, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(host string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("%s rate limited for %v", host, duration)
	return New(ErrorTypeRateLimit, "", message, nil)
}

// NewPublisher creates a new publisher error
func NewPublisher(productID, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, productID, message, err)
}

// NewValidation creates a new validation error
func NewValidation(field, message string) *ScrapeError {
	return New(ErrorTypeValidation, "", field+": "+message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first ScrapeError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// WithProduct returns err attributed to productID. A ScrapeError without a
// product is copied with the id filled in; anything else is wrapped as errType.
func WithProduct(err error, productID string, errType ErrorType) *ScrapeError {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		cp := *se
		if cp.ProductID == "" {
			cp.ProductID = productID
		}
		return &cp
	}
	return New(errType, productID, string(errType)+" failed", err)
}
