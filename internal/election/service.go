package election

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/terminal-bench/ballotbox/internal/ledger"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the rejection sampling in GenerateNews
const DefaultMaxAttempts = 50

// Subjects published after a simulation commits
const SubjectSimulationCompleted = "election.simulation.completed"

// Notifier is told after every committed change to the candidate table
type Notifier interface {
	Refresh(ctx context.Context)
}

// Publisher forwards domain events to other processes
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Rand is the source of every random choice the election makes
type Rand interface {
	Intn(n int) int
}

// lockedRand makes a math/rand source safe for concurrent use
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe random source seeded with seed
func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Service implements vote casting, news generation and the election simulation
// on top of a ledger.Store
type Service struct {
	store       ledger.Store
	notifier    Notifier
	publisher   Publisher
	rand        Rand
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithRand replaces the random source
func WithRand(r Rand) Option {
	return func(s *Service) { s.rand = r }
}

// WithLogger sets the structured logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxAttempts overrides the news generation attempt bound
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithPublisher enables cross-process simulation events
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time.Now for created_at stamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type noopNotifier struct{}

func (noopNotifier) Refresh(context.Context) {}

// NewService creates a new election service. notifier may be nil.
func NewService(store ledger.Store, notifier Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &Service{
		store:       store,
		notifier:    notifier,
		rand:        NewRand(time.Now().UnixNano()),
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// refresh signals the notifier on a context that outlives the request
func (s *Service) refresh(ctx context.Context) {
	s.notifier.Refresh(context.WithoutCancel(ctx))
}
