package sampler

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration matches every *ConfigError.
	ErrConfiguration = errors.New("sampler: invalid configuration")
	// ErrExhausted is returned by Cursor.Next after the last batch. It marks
	// the end of an epoch, not a failure.
	ErrExhausted = errors.New("sampler: epoch plan exhausted")
	// ErrCursorMismatch is returned by NextBatch for a cursor of another plan.
	ErrCursorMismatch = errors.New("sampler: cursor belongs to another plan")
)

// ConfigError reports an invalid sampler setting.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sampler: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) hold.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func configError(field string, value interface{}, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}
