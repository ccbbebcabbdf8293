package listq

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrorCode classifies the error families the package returns.
type ErrorCode string

const (
	ErrCodeInvalidSchema ErrorCode = "INVALID_SCHEMA"
	ErrCodeInvalidParams ErrorCode = "INVALID_PARAMS"
	ErrCodeQueryMisuse   ErrorCode = "QUERY_MISUSE"
)

// ConfigError reports a broken schema declaration. It is returned by
// NewSchema and always indicates a programming error, not bad request
// input.
type ConfigError struct {
	Schema string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: schema %q, field %q: %s", ErrCodeInvalidSchema, e.Schema, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: schema %q: %s", ErrCodeInvalidSchema, e.Schema, e.Reason)
}

func configErr(schema, field, format string, args ...any) *ConfigError {
	return &ConfigError{Schema: schema, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidationErrors aggregates every invalid request parameter found in
// one validation pass. Errors is keyed by parameter name; filter and
// order problems nest under their index, so "filters" maps to
// {"0": {"op": ...}} style sub-errors. The offending Params are kept
// for error reporting.
type ValidationErrors struct {
	Params Params
	Errors validation.Errors
}

func (e *ValidationErrors) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeInvalidParams, e.Errors.Error())
}

// Field returns the error recorded under a dotted key path, such as
// "filters.0.op", or nil when the path is clean.
func (e *ValidationErrors) Field(path ...string) error {
	var cur error = e.Errors
	for _, seg := range path {
		errs, ok := cur.(validation.Errors)
		if !ok {
			return nil
		}
		cur = errs[seg]
		if cur == nil {
			return nil
		}
	}
	return cur
}

// MisuseError reports a request that is structurally valid but asks for
// something the schema cannot deliver, such as cursor pagination over
// an ordering that includes an alias field. Unlike validation errors it
// is not attributable to a single parameter.
type MisuseError struct {
	Op     string
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrCodeQueryMisuse, e.Op, e.Reason)
}

func misuseErr(op, format string, args ...any) *MisuseError {
	return &MisuseError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
