package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ContentionError reports a locking or nesting problem. It is a programming
// error on the caller side and is never retried.
type ContentionError struct {
	Op  string
	Err error
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("resdb: %s: %v", e.Op, e.Err)
}

func (e *ContentionError) Unwrap() []error {
	return []error{ErrContention, e.Err}
}

// ConsistencyError reports an operation that would leave dangling references.
type ConsistencyError struct {
	Path      string
	Referrers []string
	Err       error
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("resdb: '%s' is still referenced by %s", e.Path, strings.Join(e.Referrers, ", "))
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *ConsistencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConsistency}
	}
	return []error{ErrConsistency, e.Err}
}

// InternalError wraps a store or catalog failure that forced an abort.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("resdb: %s failed: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() []error {
	return []error{ErrInternal, e.Err}
}

func Contention(err error, op string) error {
	return &ContentionError{Op: op, Err: err}
}

func Consistency(err error, path string, referrers []string) error {
	return &ConsistencyError{Path: path, Referrers: referrers, Err: err}
}

// Internal wraps err unless it already is an internal error.
func Internal(err error, op string) error {
	if err == nil {
		return nil
	}

	var ie *InternalError
	if errors.As(err, &ie) {
		return err
	}

	return &InternalError{Op: op, Err: err}
}
