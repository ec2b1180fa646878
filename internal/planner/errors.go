package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a field path that does not exist on the entity.
	ErrConfiguration = errors.New("invalid field path")
	// ErrUnsupportedOperator marks an operator name missing from the registry.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrInvalidArgument marks operator arguments of the wrong count or shape.
	ErrInvalidArgument = errors.New("invalid operator argument")
)

// ConfigurationError reports a field path segment that is neither a field
// nor an association of the entity it is resolved against.
type ConfigurationError struct {
	Entity  string
	Path    string
	Segment string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unknown field"
	}
	return fmt.Sprintf("%s %q on %s in path %q", reason, e.Segment, e.Entity, e.Path)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// UnsupportedOperatorError reports an operator that is not registered.
type UnsupportedOperatorError struct {
	Operator string
	Path     string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q for %q", e.Operator, e.Path)
}

func (e *UnsupportedOperatorError) Unwrap() error {
	return ErrUnsupportedOperator
}

func invalidArgument(operator, path, format string, args ...any) error {
	return fmt.Errorf("%w: %s on %q: %s", ErrInvalidArgument, operator, path, fmt.Sprintf(format, args...))
}
