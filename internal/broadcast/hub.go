package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/terminal-bench/ballotbox/internal/models"
	"github.com/terminal-bench/ballotbox/pkg/circuit"
	"go.uber.org/zap"
)

// ErrHubClosed is returned by Subscribe after Close
var ErrHubClosed = errors.New("broadcast hub is closed")

// Snapshot is one ordered view of every candidate
type Snapshot struct {
	Seq        uint64             `json:"seq"`
	Candidates []models.Candidate `json:"candidates"`
	At         time.Time          `json:"at"`
}

// Source reads the authoritative standings (votes desc, name asc)
type Source interface {
	Standings(ctx context.Context) ([]models.Candidate, error)
}

// Observer receives snapshots. A returned error unsubscribes the observer.
type Observer interface {
	Deliver(ctx context.Context, snap Snapshot) error
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, snap Snapshot) error

// Deliver calls f
func (f ObserverFunc) Deliver(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// Sink is an out-of-process consumer of snapshots (cache, message bus)
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap Snapshot) error
}

// Config holds hub configuration
type Config struct {
	// QueueSize is the per-observer backlog; when full the oldest snapshot is dropped
	QueueSize int
	Sinks     []Sink
	Breaker   circuit.Config
	Logger    *zap.Logger
}

// Hub fans committed candidate snapshots out to observers
type Hub struct {
	source    Source
	logger    *zap.Logger
	queueSize int
	sinks     []Sink
	breakers  *circuit.BreakerGroup
	sinkQueue chan Snapshot

	// refreshMu orders reads against enqueues so observers see snapshots in read order
	refreshMu sync.Mutex
	seq       atomic.Uint64

	mu     sync.RWMutex
	subs   map[uuid.UUID]*subscriber
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscriber struct {
	id       uuid.UUID
	observer Observer
	queue    chan Snapshot
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewHub creates a hub reading from source and starts its sink worker
func NewHub(source Source, cfg Config) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Breaker.MaxFailures <= 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.Timeout <= 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.HalfOpenMax <= 0 {
		cfg.Breaker.HalfOpenMax = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		source:    source,
		logger:    cfg.Logger,
		queueSize: cfg.QueueSize,
		sinks:     cfg.Sinks,
		breakers:  circuit.NewBreakerGroup(cfg.Breaker),
		sinkQueue: make(chan Snapshot, 1),
		subs:      make(map[uuid.UUID]*subscriber),
		ctx:       ctx,
		cancel:    cancel,
	}

	if len(h.sinks) > 0 {
		h.wg.Add(1)
		go h.runSinks()
	}
	return h
}

// Subscribe registers an observer and queues the current standings for it.
// The returned function unsubscribes; it is safe to call more than once.
func (h *Hub) Subscribe(ctx context.Context, observer Observer) (uuid.UUID, func(), error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	standings, err := h.source.Standings(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return uuid.Nil, nil, ErrHubClosed
	}
	subCtx, cancel := context.WithCancel(h.ctx)
	sub := &subscriber{
		id:       uuid.New(),
		observer: observer,
		queue:    make(chan Snapshot, h.queueSize),
		ctx:      subCtx,
		cancel:   cancel,
	}
	h.subs[sub.id] = sub
	h.wg.Add(1)
	h.mu.Unlock()

	snap := h.snapshot(standings)
	sub.offer(snap)
	go h.run(sub)
	if len(h.sinks) > 0 {
		offer(h.sinkQueue, snap)
	}

	h.logger.Debug("observer subscribed", zap.String("observer", sub.id.String()))

	var once sync.Once
	return sub.id, func() { once.Do(func() { h.remove(sub.id, nil) }) }, nil
}

// Refresh reads the standings and queues them for every observer. It never waits on
// an observer; failures are logged.
func (h *Hub) Refresh(ctx context.Context) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	standings, err := h.source.Standings(ctx)
	if err != nil {
		h.logger.Error("failed to read standings for broadcast", zap.Error(err))
		return
	}
	snap := h.snapshot(standings)

	h.mu.RLock()
	for _, sub := range h.subs {
		sub.offer(snap)
	}
	h.mu.RUnlock()

	if len(h.sinks) > 0 {
		offer(h.sinkQueue, snap)
	}
}

// Subscribers returns the number of registered observers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Seq returns the sequence number of the newest snapshot handed out
func (h *Hub) Seq() uint64 {
	return h.seq.Load()
}

// SinkStates reports the breaker state of every sink by name
func (h *Hub) SinkStates() map[string]string {
	states := make(map[string]string, len(h.sinks))
	for _, sink := range h.sinks {
		states[sink.Name()] = circuit.StateClosed.String()
	}
	for name, state := range h.breakers.States() {
		states[name] = state.String()
	}
	return states
}

// Close drops every observer and stops the sink worker
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.cancel()
		delete(h.subs, id)
	}
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

// snapshot must be called with refreshMu held
func (h *Hub) snapshot(standings []models.Candidate) Snapshot {
	return Snapshot{Seq: h.seq.Add(1), Candidates: standings, At: time.Now()}
}

func (h *Hub) run(sub *subscriber) {
	defer h.wg.Done()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case snap := <-sub.queue:
			if err := sub.observer.Deliver(sub.ctx, snap); err != nil {
				if sub.ctx.Err() == nil {
					h.remove(sub.id, err)
				}
				return
			}
		}
	}
}

func (h *Hub) remove(id uuid.UUID, cause error) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	sub.cancel()
	if cause != nil {
		h.logger.Info("observer dropped", zap.String("observer", id.String()), zap.Error(cause))
	} else {
		h.logger.Debug("observer unsubscribed", zap.String("observer", id.String()))
	}
}

func (h *Hub) runSinks() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case snap := <-h.sinkQueue:
			for _, sink := range h.sinks {
				sink := sink
				err := h.breakers.Execute(h.ctx, sink.Name(), func() error {
					return sink.Publish(h.ctx, snap)
				})
				switch {
				case err == nil:
				case errors.Is(err, circuit.ErrCircuitOpen), errors.Is(err, circuit.ErrTooManyRequests):
					h.logger.Debug("sink skipped", zap.String("sink", sink.Name()), zap.Error(err))
				default:
					h.logger.Warn("sink publish failed", zap.String("sink", sink.Name()), zap.Error(err))
				}
			}
		}
	}
}

func (s *subscriber) offer(snap Snapshot) {
	offer(s.queue, snap)
}

// offer enqueues snap, discarding the oldest queued snapshots until it fits.
// Callers serialize offers to the same queue.
func offer(queue chan Snapshot, snap Snapshot) {
	for {
		select {
		case queue <- snap:
			return
		default:
		}
		select {
		case <-queue:
		default:
		}
	}
}
