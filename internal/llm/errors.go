package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrorType categorizes model errors for logging and metrics.
type ErrorType string

const (
	ErrorTypeUnknown    ErrorType = "unknown"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeOverloaded ErrorType = "overloaded"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeBilling    ErrorType = "billing"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeFormat     ErrorType = "format"
)

// errorPatterns is checked in order; the first type with a matching
// substring wins. Billing precedes auth so "402 ... authentication" style
// bodies are not misread.
var errorPatterns = []struct {
	typ      ErrorType
	patterns []string
}{
	{ErrorTypeRateLimit, []string{
		"429", "rate_limit", "rate limit", "too many requests",
		"exceeded your current quota", "quota exceeded", "resource_exhausted",
		"requests per minute", "requests per day",
	}},
	{ErrorTypeOverloaded, []string{
		"overloaded", "server is busy", "temporarily unavailable", "503 service unavailable",
	}},
	{ErrorTypeBilling, []string{
		"402", "payment required", "insufficient credits", "credit balance",
		"billing", "insufficient_quota", "account balance",
	}},
	{ErrorTypeAuth, []string{
		"401", "403", "invalid api key", "invalid_api_key", "incorrect api key",
		"unauthorized", "forbidden", "access denied", "authentication",
		"no api key found", "invalid credentials",
	}},
	{ErrorTypeTimeout, []string{
		"408", "504", "timeout", "timed out", "deadline exceeded",
		"request cancelled", "connection reset",
	}},
	{ErrorTypeFormat, []string{
		"invalid request format", "roles must alternate", "invalid_request_error",
		"malformed", "schema validation",
	}},
}

// ClassifyError determines the error type from an error message.
// Returns ErrorTypeUnknown if the error doesn't match any known pattern.
func ClassifyError(msg string) ErrorType {
	if msg == "" {
		return ErrorTypeUnknown
	}
	lower := strings.ToLower(msg)
	for _, group := range errorPatterns {
		for _, p := range group.patterns {
			if strings.Contains(lower, p) {
				return group.typ
			}
		}
	}
	return ErrorTypeUnknown
}

// IsTimeoutError checks if an error indicates a timeout.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ClassifyError(err.Error()) == ErrorTypeTimeout
}

// IsRateLimitError checks if an error indicates rate limiting.
func IsRateLimitError(err error) bool {
	return err != nil && ClassifyError(err.Error()) == ErrorTypeRateLimit
}

// IsAuthError checks if an error indicates authentication failure.
func IsAuthError(err error) bool {
	return err != nil && ClassifyError(err.Error()) == ErrorTypeAuth
}
