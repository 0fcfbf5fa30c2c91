package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeTimeout            = "SCRAPE_TIMEOUT"
	ErrCodeSelectorNotFound   = "SELECTOR_NOT_FOUND"
	ErrCodeNavigation         = "NAVIGATION_FAILED"
	ErrCodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
	ErrCodeExtraction         = "CONTENT_EXTRACTION_FAILED"
	ErrCodeRetriesExhausted   = "RETRIES_EXHAUSTED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
	Cause    string `json:"cause,omitempty"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// RetryError is returned once every attempt for a URL has failed.
// Err is the error of the last attempt.
type RetryError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed to scrape %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// ToDetail converts the retry failure to an API-facing ErrorDetail.
func (e *RetryError) ToDetail() *ErrorDetail {
	d := &ErrorDetail{
		Code:     ErrCodeRetriesExhausted,
		Message:  fmt.Sprintf("failed to scrape %s after %d attempts", e.URL, e.Attempts),
		Attempts: e.Attempts,
	}
	if e.Err != nil {
		d.Cause = e.Err.Error()
	}
	return d
}

// CodeOf returns the error code carried by err. A RetryError reports
// RETRIES_EXHAUSTED; any other untyped error reports INTERNAL_ERROR.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var re *RetryError
	if errors.As(err, &re) {
		return ErrCodeRetriesExhausted
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// CauseCode returns the code of the first ScrapeError in err's chain.
// For a RetryError this is the code of the last attempt's failure.
func CauseCode(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// DetailOf converts any error into an ErrorDetail.
func DetailOf(err error) *ErrorDetail {
	var re *RetryError
	if errors.As(err, &re) {
		return re.ToDetail()
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
