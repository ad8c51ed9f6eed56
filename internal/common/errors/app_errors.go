// Package errors provides a unified error handling system for the application
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorDomain represents the domain/component where an error originated
type ErrorDomain string

// Define error domains for different components of the application
const (
	// ErrorDomainConfig represents errors from the configuration system
	ErrorDomainConfig ErrorDomain = "config"

	// ErrorDomainLLM represents errors from language model interactions
	ErrorDomainLLM ErrorDomain = "llm"

	// ErrorDomainMCP represents errors from MCP connections and tool calls
	ErrorDomainMCP ErrorDomain = "mcp"

	// ErrorDomainAgent represents errors from the conversation agent loop
	ErrorDomainAgent ErrorDomain = "agent"

	// ErrorDomainHTTP represents errors from HTTP operations
	ErrorDomainHTTP ErrorDomain = "http"

	// ErrorDomainInternal represents internal application errors
	ErrorDomainInternal ErrorDomain = "internal"
)

// DomainError is the central error type for the application,
// providing structured information about the error context
type DomainError struct {
	// Domain is the component where the error originated
	Domain ErrorDomain

	// Code is a machine-readable identifier for the error type
	Code string

	// Message is a human-readable description of the error
	Message string

	// Cause is the underlying error that led to this error
	Cause error

	// Stack contains the stack trace at the point of error creation
	Stack string

	// Data contains additional contextual data about the error
	Data map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Domain, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Domain, e.Code, e.Message)
}

// Unwrap returns the underlying cause, implementing the unwrap interface
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
// An empty Domain on the target matches any domain, so a code-only
// sentinel such as ErrTimeout matches timeouts raised anywhere.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok || t.Code == "" {
		return false
	}
	if t.Domain != "" && t.Domain != e.Domain {
		return false
	}
	return t.Code == e.Code
}

// WithData adds contextual data to the error
func (e *DomainError) WithData(key string, value interface{}) *DomainError {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// NewDomainError creates a new DomainError with the given domain, code, and message
func NewDomainError(domain ErrorDomain, code, message string) *DomainError {
	return newError(domain, code, message, nil)
}

// NewDomainErrorf creates a new DomainError with formatted message
func NewDomainErrorf(domain ErrorDomain, code string, format string, args ...interface{}) *DomainError {
	return newError(domain, code, fmt.Sprintf(format, args...), nil)
}

// WrapWithDomain creates a new DomainError that wraps err. A nil err stays nil.
func WrapWithDomain(err error, domain ErrorDomain, code, message string) *DomainError {
	if err == nil {
		return nil
	}
	return newError(domain, code, message, err)
}

// newError records the stack from its caller's caller onward
func newError(domain ErrorDomain, code, message string, cause error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Code:    code,
		Message: message,
		Cause:   cause,
		Stack:   captureStack(3),
	}
}

// IsDomainError checks if an error is a DomainError
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomain extracts the domain from an error if it's a DomainError
func GetDomain(err error) (ErrorDomain, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Domain, true
	}
	return "", false
}

// GetErrorCode extracts the code from an error if it's a DomainError
func GetErrorCode(err error) (string, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code, true
	}
	return "", false
}

// GetErrorData extracts data from an error if it's a DomainError
func GetErrorData(err error, key string) (interface{}, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Data != nil {
		val, ok := domainErr.Data[key]
		return val, ok
	}
	return nil, false
}

// captureStack captures the current goroutine's stack trace
func captureStack(skip int) string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return sb.String()
}

// Per-domain shorthands. The Wrap variants return nil for a nil err.

func NewConfigError(code, message string) *DomainError {
	return newError(ErrorDomainConfig, code, message, nil)
}

func NewConfigErrorf(code string, format string, args ...interface{}) *DomainError {
	return newError(ErrorDomainConfig, code, fmt.Sprintf(format, args...), nil)
}

func WrapConfigError(err error, code, message string) *DomainError {
	return wrapIn(err, ErrorDomainConfig, code, message)
}

func NewLLMError(code, message string) *DomainError {
	return newError(ErrorDomainLLM, code, message, nil)
}

func WrapLLMError(err error, code, message string) *DomainError {
	return wrapIn(err, ErrorDomainLLM, code, message)
}

func NewMCPError(code, message string) *DomainError {
	return newError(ErrorDomainMCP, code, message, nil)
}

func NewMCPErrorf(code string, format string, args ...interface{}) *DomainError {
	return newError(ErrorDomainMCP, code, fmt.Sprintf(format, args...), nil)
}

func WrapMCPError(err error, code, message string) *DomainError {
	return wrapIn(err, ErrorDomainMCP, code, message)
}

func NewAgentError(code, message string) *DomainError {
	return newError(ErrorDomainAgent, code, message, nil)
}

func WrapAgentError(err error, code, message string) *DomainError {
	return wrapIn(err, ErrorDomainAgent, code, message)
}

func WrapHTTPError(err error, code, message string) *DomainError {
	return wrapIn(err, ErrorDomainHTTP, code, message)
}

func WrapInternalError(err error, code, message string) *DomainError {
	return wrapIn(err, ErrorDomainInternal, code, message)
}

func wrapIn(err error, domain ErrorDomain, code, message string) *DomainError {
	if err == nil {
		return nil
	}
	return newError(domain, code, message, err)
}
