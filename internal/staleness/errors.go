package staleness

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every ConfigError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports a missing or unparseable input.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

// FetchError reports a failure to read from the issue tracker.
type FetchError struct {
	Source string // "issues", "cards", "events"
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NotifyError reports a comment that could not be posted.
type NotifyError struct {
	Issue int
	Err   error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("commenting on #%d: %v", e.Issue, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}
