package matching

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingProfile - the seeker has no saved profile.
	ErrMissingProfile = errors.New("profile incomplete")

	// ErrInvalidInput - malformed limit or missing identifiers.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable - an external fetch or write failed. The cause is wrapped alongside.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RecordFailure describes one match record that could not be persisted.
type RecordFailure struct {
	CandidateID int
	Err         error
}

// PartialWriteError reports match records that failed to persist after
// scoring succeeded. Records written before a failure are kept.
type PartialWriteError struct {
	Written  int
	Failures []RecordFailure
}

func (e *PartialWriteError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, fmt.Sprintf("%d", f.CandidateID))
	}
	return fmt.Sprintf("persisted %d of %d matches, failed candidates: %s",
		e.Written, e.Written+len(e.Failures), strings.Join(ids, ", "))
}

func (e *PartialWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
