package circuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFailure = errors.New("failure")

func fail() error    { return errFailure }
func succeed() error { return nil }

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	now := time.Unix(1000, 0)
	b := NewBreaker(cfg)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerClosed(t *testing.T) {
	t.Run("should allow requests and reset failures on success", func(t *testing.T) {
		b, _ := newTestBreaker(Config{MaxFailures: 2, Timeout: time.Second})

		assert.ErrorIs(t, b.Execute(context.Background(), fail), errFailure)
		assert.NoError(t, b.Execute(context.Background(), succeed))
		assert.ErrorIs(t, b.Execute(context.Background(), fail), errFailure)
		assert.Equal(t, StateClosed, b.State(), "a success in between clears the count")
	})

	t.Run("should not run fn on a cancelled context", func(t *testing.T) {
		b, _ := newTestBreaker(Config{MaxFailures: 1})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := b.Execute(ctx, func() error { called = true; return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestBreakerOpen(t *testing.T) {
	t.Run("should open after max failures and reject without calling", func(t *testing.T) {
		b, _ := newTestBreaker(Config{MaxFailures: 3, Timeout: time.Second})
		for i := 0; i < 3; i++ {
			b.Execute(context.Background(), fail)
		}
		assert.Equal(t, StateOpen, b.State())

		called := false
		err := b.Execute(context.Background(), func() error { called = true; return nil })
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})
}

func TestBreakerHalfOpen(t *testing.T) {
	trip := func(b *Breaker) {
		b.Execute(context.Background(), fail)
	}

	t.Run("should close after a successful trial", func(t *testing.T) {
		b, now := newTestBreaker(Config{MaxFailures: 1, Timeout: time.Second})
		trip(b)

		*now = now.Add(2 * time.Second)
		assert.NoError(t, b.Execute(context.Background(), succeed))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("should reopen after a failed trial", func(t *testing.T) {
		b, now := newTestBreaker(Config{MaxFailures: 1, Timeout: time.Second})
		trip(b)

		*now = now.Add(2 * time.Second)
		assert.ErrorIs(t, b.Execute(context.Background(), fail), errFailure)
		assert.Equal(t, StateOpen, b.State())
		assert.ErrorIs(t, b.Execute(context.Background(), succeed), ErrCircuitOpen)
	})

	t.Run("should limit concurrent trials", func(t *testing.T) {
		b, now := newTestBreaker(Config{MaxFailures: 1, Timeout: time.Second, HalfOpenMax: 1})
		trip(b)
		*now = now.Add(2 * time.Second)

		entered := make(chan struct{})
		release := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Execute(context.Background(), func() error {
				close(entered)
				<-release
				return nil
			})
		}()

		<-entered
		assert.ErrorIs(t, b.Execute(context.Background(), succeed), ErrTooManyRequests)
		close(release)
		wg.Wait()
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestBreakerStateChanges(t *testing.T) {
	t.Run("should report each transition", func(t *testing.T) {
		var seen []string
		b, now := newTestBreaker(Config{
			Name:        "redis",
			MaxFailures: 1,
			Timeout:     time.Second,
			OnStateChange: func(name string, from, to State) {
				seen = append(seen, name+":"+from.String()+"->"+to.String())
			},
		})

		b.Execute(context.Background(), fail)
		*now = now.Add(2 * time.Second)
		b.Execute(context.Background(), succeed)
		b.Execute(context.Background(), fail)

		assert.Equal(t, []string{
			"redis:closed->open",
			"redis:open->half-open",
			"redis:half-open->closed",
			"redis:closed->open",
		}, seen)
	})
}

func TestBreakerGroup(t *testing.T) {
	t.Run("should keep one breaker per name", func(t *testing.T) {
		g := NewBreakerGroup(Config{MaxFailures: 1, Timeout: time.Minute})

		g.Execute(context.Background(), "redis", fail)
		assert.NoError(t, g.Execute(context.Background(), "nats", succeed))

		assert.Same(t, g.Get("redis"), g.Get("redis"))
		assert.Equal(t, map[string]State{"redis": StateOpen, "nats": StateClosed}, g.States())
		assert.ErrorIs(t, g.Execute(context.Background(), "redis", succeed), ErrCircuitOpen)
	})
}
