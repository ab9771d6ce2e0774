package analysis

import (
	"errors"
	"fmt"
)

// ConfigErrorKind names what part of the tables a ConfigError refers to.
type ConfigErrorKind string

const (
	ErrUnknownMeasure    ConfigErrorKind = "unknown measure"
	ErrDuplicateMeasure  ConfigErrorKind = "duplicate measure"
	ErrEmptyMeasure      ConfigErrorKind = "measure has no fields"
	ErrDuplicateGroup    ConfigErrorKind = "duplicate group"
	ErrEmptyName         ConfigErrorKind = "empty identifier"
	ErrMissingThreshold  ConfigErrorKind = "missing threshold"
	ErrNoHazardFields    ConfigErrorKind = "no hazard fields"
	ErrUnknownField      ConfigErrorKind = "field not in input schema"
	ErrThresholdOrphaned ConfigErrorKind = "threshold for unknown measure"
)

// ConfigError reports an unresolvable or invalid reference in the analysis
// tables. ID is the offending identifier; Context names where it was found.
type ConfigError struct {
	Kind    ConfigErrorKind
	ID      string
	Context string
}

func (e *ConfigError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("analysis: %s %q (in %s)", e.Kind, e.ID, e.Context)
	}
	return fmt.Sprintf("analysis: %s %q", e.Kind, e.ID)
}

// IsConfigError reports whether err (or anything it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
