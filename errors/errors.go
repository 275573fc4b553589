package errors

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryTrigger  Category = "trigger"
	CategoryRecord   Category = "record"
	CategoryDecode   Category = "decode"
	CategoryEncode   Category = "encode"
	CategoryTransfer Category = "transfer"
	CategoryCommit   Category = "commit"
	CategoryPipeline Category = "pipeline"
	CategoryConfig   Category = "config"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context. A nil err stays nil.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of the outermost ProcessingError in the
// chain, or CategoryPipeline when err is unclassified.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryPipeline
}

// Message renders err for persistence, cut to at most max runes.
func Message(err error, max int) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if max <= 0 || utf8.RuneCountInString(msg) <= max {
		return msg
	}
	n := 0
	for i := range msg {
		if n == max {
			return msg[:i]
		}
		n++
	}
	return msg
}

// Sentinel errors for common failure modes.
var (
	ErrMalformedTrigger    = errors.New("object path is not an upload original")
	ErrRecordNotFound      = errors.New("photo record not found")
	ErrRecordIncomplete    = errors.New("photo record is missing park or owner")
	ErrObjectNotFound      = errors.New("object not found")
	ErrUnsupportedFormat   = errors.New("unsupported image format")
	ErrInvalidDimensions   = errors.New("invalid dimensions")
	ErrEmptyInput          = errors.New("empty input")
	ErrIncompleteOutputs   = errors.New("outputs do not cover every variant")
	ErrFallbackUnavailable = errors.New("heic conversion unavailable")
	ErrWorkerPoolFull      = errors.New("worker pool queue full")
	ErrAlreadyProcessed    = errors.New("photo already processed and original removed")
)
