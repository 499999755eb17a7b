package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryWatch    Category = "watch"
	CategoryCompile  Category = "compile"
	CategorySandbox  Category = "sandbox"
	CategoryProtocol Category = "protocol"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// Location represents a source code location.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// DevError is a structured error with a registered code and optional source location.
type DevError struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	// Category is the error type (compile, sandbox, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation, or the raw diagnostics.
	Detail string

	// Location is the source code location where the error occurred.
	Location *Location

	// Context contains surrounding source code lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DevError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		return msg + ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *DevError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds source location to the error.
func (e *DevError) WithLocation(file string, line, column int) *DevError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DevError) WithSuggestion(s string) *DevError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *DevError) WithDetail(d string) *DevError {
	e.Detail = d
	return e
}

// WithContext adds custom context lines to the error.
func (e *DevError) WithContext(lines []string) *DevError {
	e.Context = lines
	return e
}

// Wrap wraps another error.
func (e *DevError) Wrap(err error) *DevError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a DevError from a registered error code.
func New(code string) *DevError {
	template, ok := registry[code]
	if !ok {
		return &DevError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DevError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new DevError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DevError {
	return &DevError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DevError.
func FromError(err error, code string) *DevError {
	if err == nil {
		return nil
	}
	var de *DevError
	if stderrors.As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err, or any error it wraps, is a DevError with code.
func HasCode(err error, code string) bool {
	for err != nil {
		var de *DevError
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Wrapped
	}
	return false
}

// CodeOf returns the code of the outermost DevError in err's chain, or "".
func CodeOf(err error) string {
	var de *DevError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
