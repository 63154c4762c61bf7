// Package errors provides error classification and retry execution for the
// predmaint event core.
//
// The package implements a layered error handling approach:
//   - Categorization: classify errors so callers pick the right recovery
//   - Retry: handle transient handler failures with a pluggable delay strategy
//   - Typed errors: configuration and timeout failures carry their context
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: flaky collaborator calls, temporary resource contention.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: publish on a stopped bus, nil handler registration.
	CategoryPermanent

	// CategoryTimeout indicates a bounded operation exceeded its deadline.
	// Treated like transient for retry purposes, distinguished in logging.
	CategoryTimeout
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Categorize determines the category of an error.
//
// Classification order:
//  1. Already categorized errors keep their category.
//  2. Configuration errors are permanent.
//  3. Deadline/timeout errors are timeouts.
//  4. Everything else is transient; handler failures default to retryable.
func Categorize(err error) Category {
	if err == nil {
		return CategoryTransient
	}

	var categorized *CategorizedError
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	var config *ConfigError
	if errors.As(err, &config) {
		return CategoryPermanent
	}

	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return CategoryTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	return CategoryTransient
}

// IsRetryable returns true if the error category permits another attempt.
func IsRetryable(err error) bool {
	switch Categorize(err) {
	case CategoryTransient, CategoryTimeout:
		return true
	default:
		return false
	}
}
