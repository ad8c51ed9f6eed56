package errors

import (
	"context"
	"errors"
)

// Error codes shared between the packages that raise them and the callers
// that need to branch on them.
const (
	CodeNotFound             = "not_found"
	CodeParseError           = "parse_error"
	CodeSchemaError          = "schema_error"
	CodeConnectionFailed     = "connection_failed"
	CodeConnectionExists     = "connection_exists"
	CodeToolNameCollision    = "tool_name_collision"
	CodeToolNotFound         = "tool_not_found"
	CodeToolInvocationFailed = "tool_invocation_failed"
	CodeInvalidArguments     = "invalid_arguments"
	CodeRequestFailed        = "request_failed"
	CodeInvalidResponse      = "invalid_response"
	CodeStepLimitExceeded    = "step_limit_exceeded"
	CodeTimeout              = "timeout"
	CodeCancelled            = "cancelled"
)

// Sentinel errors for errors.Is comparisons. They match any DomainError
// carrying the same domain and code, wrapped or not.
var (
	// ErrConfigNotFound indicates the configuration path does not resolve
	ErrConfigNotFound = &DomainError{Domain: ErrorDomainConfig, Code: CodeNotFound, Message: "configuration not found"}

	// ErrConfigParse indicates a malformed configuration document
	ErrConfigParse = &DomainError{Domain: ErrorDomainConfig, Code: CodeParseError, Message: "configuration could not be parsed"}

	// ErrConfigSchema indicates a configuration entry is missing required fields
	ErrConfigSchema = &DomainError{Domain: ErrorDomainConfig, Code: CodeSchemaError, Message: "configuration failed validation"}

	// ErrConnection indicates a tool server could not be reached or initialized
	ErrConnection = &DomainError{Domain: ErrorDomainMCP, Code: CodeConnectionFailed, Message: "tool server connection failed"}

	// ErrToolNameCollision indicates two servers advertise the same tool name
	ErrToolNameCollision = &DomainError{Domain: ErrorDomainMCP, Code: CodeToolNameCollision, Message: "tool name collision"}

	// ErrToolNotFound indicates no open connection owns the requested tool
	ErrToolNotFound = &DomainError{Domain: ErrorDomainMCP, Code: CodeToolNotFound, Message: "tool not found"}

	// ErrToolInvocation indicates a transport or remote failure while calling a tool
	ErrToolInvocation = &DomainError{Domain: ErrorDomainMCP, Code: CodeToolInvocationFailed, Message: "tool invocation failed"}

	// ErrInvalidArguments indicates tool arguments do not match the declared schema
	ErrInvalidArguments = &DomainError{Domain: ErrorDomainMCP, Code: CodeInvalidArguments, Message: "invalid tool arguments"}

	// ErrLLM indicates the language model call failed
	ErrLLM = &DomainError{Domain: ErrorDomainLLM, Code: CodeRequestFailed, Message: "llm request failed"}

	// ErrStepLimitExceeded indicates a run hit its maximum number of tool steps
	ErrStepLimitExceeded = &DomainError{Domain: ErrorDomainAgent, Code: CodeStepLimitExceeded, Message: "step limit exceeded"}

	// ErrTimeout indicates that an operation timed out, in any domain
	ErrTimeout = &DomainError{Code: CodeTimeout, Message: "operation timed out"}

	// ErrCancelled indicates that an operation was cancelled by its caller, in any domain
	ErrCancelled = &DomainError{Code: CodeCancelled, Message: "operation cancelled"}
)

// FromContext converts a context error into a domain error in the given domain.
// It returns nil when ctx has not been cancelled or timed out.
func FromContext(ctx context.Context, domain ErrorDomain, message string) *DomainError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return WrapWithDomain(ctx.Err(), domain, CodeTimeout, message)
	case errors.Is(ctx.Err(), context.Canceled):
		return WrapWithDomain(ctx.Err(), domain, CodeCancelled, message)
	default:
		return nil
	}
}

// StatusCodeToError maps HTTP status codes to appropriate errors
func StatusCodeToError(statusCode int) error {
	switch {
	case statusCode == 408 || statusCode == 504:
		return NewDomainErrorf(ErrorDomainHTTP, CodeTimeout, "status code %d", statusCode)
	case statusCode == 404:
		return NewDomainErrorf(ErrorDomainHTTP, CodeNotFound, "status code %d", statusCode)
	case statusCode >= 400 && statusCode < 500:
		return NewDomainErrorf(ErrorDomainHTTP, "client_error", "status code %d", statusCode)
	case statusCode >= 500:
		return NewDomainErrorf(ErrorDomainHTTP, "server_error", "status code %d", statusCode)
	default:
		return nil
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
