package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	t.Run("should retry transient conflicts and exhausted attempts", func(t *testing.T) {
		assert.True(t, Retryable(ErrDuplicateNews))
		assert.True(t, Retryable(ErrNewsExhausted))
		assert.True(t, Retryable(fmt.Errorf("insert news: %w", ErrDuplicateNews)))
	})

	t.Run("should not retry a permanent outcome", func(t *testing.T) {
		assert.False(t, Retryable(ErrAlreadyVoted))
		assert.False(t, Retryable(ErrVoterNotFound))
		assert.False(t, Retryable(ErrNoCandidates))
		assert.False(t, Retryable(errors.New("boom")))
	})
}

func TestCategories(t *testing.T) {
	t.Run("should keep the category reachable through wrapping", func(t *testing.T) {
		err := fmt.Errorf("cast vote: %w", ErrAlreadyVoted)
		assert.ErrorIs(t, err, ErrConflict)
		assert.ErrorIs(t, err, ErrAlreadyVoted)
		assert.ErrorIs(t, ErrNewsExhausted, ErrExhaustedRetries)
	})
}
