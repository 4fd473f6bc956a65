package data

import (
	"errors"

	rerrors "github.com/mwantia/resdb/data/errors"
)

// Standard errors that stores, catalogs and transactions should use.
var (
	// Path resolution errors
	ErrInvalidPath = errors.New("resdb: invalid path detected")
	ErrNotExist    = errors.New("resdb: resource does not exist")
	ErrExist       = errors.New("resdb: resource already exists")

	// Transaction errors
	ErrReadOnly      = errors.New("resdb: read-only transaction")
	ErrTxDone        = errors.New("resdb: transaction already finished")
	ErrAlreadyLocked = errors.New("resdb: context already holds a transaction")
	ErrClosed        = errors.New("resdb: database already closed")

	// Resource and backend errors
	ErrUnknownClass       = errors.New("resdb: unknown resource class")
	ErrTooLarge           = errors.New("resdb: object exceeds backend size limit")
	ErrBackendUnsupported = errors.New("resdb: backend capability unsupported")
	ErrBackendOpen        = errors.New("resdb: backend failed to open")
)

// Kind sentinels, shared with data/errors so errors.Is works on both.
var (
	ErrContention  = rerrors.ErrContention
	ErrConsistency = rerrors.ErrConsistency
	ErrInternal    = rerrors.ErrInternal
)

// Errors collects multiple errors, mostly on close paths.
type Errors = rerrors.Errors

// ErrorKind classifies an error for API callers.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindContention
	KindConsistency
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindContention:
		return "contention"
	case KindConsistency:
		return "consistency"
	case KindInternal:
		return "internal"
	default:
		return "other"
	}
}

// KindOf reports which of the three failure classes err belongs to.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrContention):
		return KindContention
	case errors.Is(err, ErrConsistency):
		return KindConsistency
	case errors.Is(err, ErrInternal):
		return KindInternal
	default:
		return KindOther
	}
}
