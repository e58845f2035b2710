package scoring

import (
	"errors"
	"fmt"
)

// Sentinel kinds, matched with errors.Is through the typed errors below.
var (
	ErrInvalidMetric = errors.New("invalid metric")
	ErrConfiguration = errors.New("invalid scoring configuration")
	ErrUnknownMode   = errors.New("unknown scoring mode")
)

// InvalidMetricError reports caller input that violates the engine contract.
type InvalidMetricError struct {
	Field string
	Value float64
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("invalid metric %q: %v", e.Field, e.Value)
}

func (e *InvalidMetricError) Unwrap() error { return ErrInvalidMetric }

// ConfigurationError reports a WeightConfig the engine refuses to run with.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "scoring configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
