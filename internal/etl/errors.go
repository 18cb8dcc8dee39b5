package etl

import (
	"errors"
	"fmt"
)

// ErrSourceNotRegistered is returned when a run is requested for a source
// name with no registered adapter/transformer pair. It is fatal: nothing
// is retried and no checkpoint is created.
var ErrSourceNotRegistered = errors.New("source is not registered")

// TransientError wraps failures worth retrying: network timeouts,
// rate-limit responses, 5xx-class answers, backend hiccups.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationError reports a malformed raw record. It is isolated to the
// offending record and never aborts the batch or the run.
type ValidationError struct {
	RecordID string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RecordError is returned by a loader when the target permanently rejects
// a single record (constraint violation, bad data). The orchestrator drops
// that record from the batch and retries the remainder.
type RecordError struct {
	Key string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s rejected: %v", e.Key, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
