package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Load errors
// A course load fails as a unit. The kind says which stage gave up.
// -----------------------------------------------------------------------------

var (
	ErrFetch   = errors.New("fetch failed")
	ErrParse   = errors.New("invalid course json")
	ErrCompile = errors.New("exercise compile failed")
)

// LoadErrorKind identifies the stage of a failed course load.
type LoadErrorKind string

const (
	LoadErrorFetch   LoadErrorKind = "fetch"
	LoadErrorParse   LoadErrorKind = "parse"
	LoadErrorCompile LoadErrorKind = "compile"
)

// LoadError reports a failed course load.
type LoadError struct {
	Kind     LoadErrorKind
	CourseID string
	// Exercise is the index of the offending exercise for compile errors, -1 otherwise.
	Exercise int
	Err      error
}

// NewFetchError wraps a transport failure.
func NewFetchError(courseID string, err error) *LoadError {
	return &LoadError{Kind: LoadErrorFetch, CourseID: courseID, Exercise: -1, Err: err}
}

// NewParseError wraps a JSON decoding failure of the document itself.
func NewParseError(courseID string, err error) *LoadError {
	return &LoadError{Kind: LoadErrorParse, CourseID: courseID, Exercise: -1, Err: err}
}

// NewCompileError wraps a failure building a single exercise.
func NewCompileError(courseID string, exercise int, err error) *LoadError {
	return &LoadError{Kind: LoadErrorCompile, CourseID: courseID, Exercise: exercise, Err: err}
}

func (e *LoadError) Error() string {
	if e.Kind == LoadErrorCompile && e.Exercise >= 0 {
		return fmt.Sprintf("load course %s: %s exercise %d: %v", e.CourseID, e.Kind, e.Exercise+1, e.Err)
	}
	return fmt.Sprintf("load course %s: %s: %v", e.CourseID, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *LoadError) sentinel() error {
	switch e.Kind {
	case LoadErrorFetch:
		return ErrFetch
	case LoadErrorParse:
		return ErrParse
	default:
		return ErrCompile
	}
}

// StatusError is returned by transports for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// General errors
var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrInvalidCourseID = errors.New("invalid course id")
	ErrNoCourses       = errors.New("no courses available")
)
