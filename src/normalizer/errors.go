package normalizer

import "fmt"

// Code classifies why a raw record could not be normalized.
type Code string

const (
	MissingField     Code = "MissingField"
	UnparsableAmount Code = "UnparsableAmount"
	UnparsableDate   Code = "UnparsableDate"
	UnknownTicker    Code = "UnknownTicker"
)

// Error is returned as a value for every per-record normalization failure.
type Error struct {
	Code  Code
	Field string
	Value string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Field)
	}
	return fmt.Sprintf("%s: %s=%q", e.Code, e.Field, e.Value)
}

// Reason is the rejection label recorded in run summaries.
func (e *Error) Reason() string { return string(e.Code) }

func missing(field string) *Error { return &Error{Code: MissingField, Field: field} }
