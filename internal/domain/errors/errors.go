package errors

import (
	"errors"
	"fmt"
)

// Categories. Every error below wraps exactly one of these.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrExhaustedRetries   = errors.New("exhausted retries")
)

var (
	ErrVoterNotFound     = fmt.Errorf("voter %w", ErrNotFound)
	ErrCandidateNotFound = fmt.Errorf("candidate %w", ErrNotFound)

	ErrAlreadyVoted   = fmt.Errorf("voter has already voted: %w", ErrConflict)
	ErrDuplicateVoter = fmt.Errorf("voter already registered: %w", ErrConflict)
	ErrDuplicateNews  = fmt.Errorf("news text already shown to voter: %w", ErrConflict)

	ErrNoVoters     = fmt.Errorf("no voters registered: %w", ErrPreconditionFailed)
	ErrNoCandidates = fmt.Errorf("no candidates available: %w", ErrPreconditionFailed)

	ErrNewsExhausted = fmt.Errorf("could not generate a unique piece of news: %w", ErrExhaustedRetries)
)

// Retryable reports whether the same request may succeed if sent again later.
// A duplicate news row means a concurrent generator picked the same text first.
func Retryable(err error) bool {
	return errors.Is(err, ErrDuplicateNews) || errors.Is(err, ErrExhaustedRetries)
}
