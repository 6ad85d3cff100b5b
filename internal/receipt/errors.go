package receipt

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailed matches every failure to produce a usable record
	ErrExtractionFailed = errors.New("no usable receipt extracted")

	// ErrMalformedResponse marks AI output that was not valid JSON or failed validation
	ErrMalformedResponse = errors.New("malformed extraction response")

	// ErrDuplicate is returned when a record matches one already known.
	// It is a normal outcome, not a failure.
	ErrDuplicate = errors.New("duplicate receipt")

	// ErrSubjectMismatch is returned when a subject filter rejects a message before extraction
	ErrSubjectMismatch = errors.New("subject does not match vendor filter")

	// ErrNotFound is returned by store lookups
	ErrNotFound = errors.New("receipt not found")
)

// ExtractionError describes why a grammar or AI extraction produced nothing
type ExtractionError struct {
	Vendor Vendor
	Source ParsedBy
	Reason string
	Err    error
}

// NewExtractionError builds an ExtractionError without an underlying cause
func NewExtractionError(vendor Vendor, source ParsedBy, reason string) *ExtractionError {
	return &ExtractionError{Vendor: vendor, Source: source, Reason: reason}
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("%s %s extraction: %s", e.Vendor, e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExtractionFailed) match any ExtractionError
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}
