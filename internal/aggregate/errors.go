package aggregate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaDetection means no category columns could be identified.
	ErrSchemaDetection = errors.New("schema detection failed")
	// ErrEmptyResult means the job finished without a single group.
	ErrEmptyResult = errors.New("no data to aggregate")
	// ErrSourceRead means a source could not be opened or parsed.
	ErrSourceRead = errors.New("source read failed")
	// ErrFinalized is returned when feeding a finalized accumulator.
	ErrFinalized = errors.New("accumulator already finalized")
)

// SchemaDetectionError reports the header that failed detection.
type SchemaDetectionError struct {
	Fields []string
	Reason string
}

func (e *SchemaDetectionError) Error() string {
	if e == nil {
		return ErrSchemaDetection.Error()
	}
	msg := "could not identify category columns"
	if e.Reason != "" {
		msg = e.Reason
	}
	return fmt.Sprintf("%s: %s (columns: %s)", ErrSchemaDetection.Error(), msg, strings.Join(e.Fields, ", "))
}

func (e *SchemaDetectionError) Unwrap() error { return ErrSchemaDetection }

// SourceReadError names the source that failed and wraps the cause.
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	if e == nil {
		return ErrSourceRead.Error()
	}
	return fmt.Sprintf("read %s: %v", e.Source, e.Err)
}

// Unwrap exposes both the cause and ErrSourceRead to errors.Is.
func (e *SourceReadError) Unwrap() []error { return []error{ErrSourceRead, e.Err} }
