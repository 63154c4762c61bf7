package errors

import (
	"fmt"
	"time"
)

// ConfigError indicates a misuse of the API or invalid configuration.
// Configuration errors are fatal to the calling operation and never retried.
type ConfigError struct {
	Op      string // operation that was attempted, e.g. "bus.publish"
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("config error in %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// TimeoutError indicates a bounded operation exceeded its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Timeout, e.Op)
}

// LifecycleError indicates an agent lifecycle transition failed.
type LifecycleError struct {
	Agent      string
	Transition string // e.g. "start", "stop"
	Err        error
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	return fmt.Sprintf("agent %s failed to %s: %v", e.Agent, e.Transition, e.Err)
}

// Unwrap returns the underlying error.
func (e *LifecycleError) Unwrap() error {
	return e.Err
}
