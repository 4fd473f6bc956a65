package errors

import (
	"errors"
	"fmt"
	"sync"
)

// Kind sentinels. Every typed error below matches exactly one of them through errors.Is.
var (
	ErrContention  = errors.New("resdb: transaction conflict")
	ErrConsistency = errors.New("resdb: consistency violation")
	ErrInternal    = errors.New("resdb: internal failure")
)

type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = make([]error, 0)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}

func newError(err error, format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if err != nil {
		return fmt.Errorf("%w: %s", err, text)
	}

	return errors.New("resdb: " + text)
}
