package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownModel is returned when a request names a model that is not registered.
var ErrUnknownModel = errors.New("unknown model")

// InvalidFilterValueError reports a single filter parameter whose value could not
// be parsed for its declared type. The offending filter is dropped; the request
// continues with the remaining filters.
type InvalidFilterValueError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("invalid value %q for filter %s: %s", e.Value, e.Key, e.Reason)
}

// QueryExecutionError wraps a failure from the underlying query engine. It is
// surfaced as a server error and never retried.
type QueryExecutionError struct {
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}
