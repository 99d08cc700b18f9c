package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStandingsKey = "ballotbox:standings"
	DefaultHistoryLen   = 100

	// SubjectStandings carries every snapshot on the message bus
	SubjectStandings = "election.standings"
)

// ErrNoSnapshot is returned by RedisSink.Latest before the first refresh
var ErrNoSnapshot = errors.New("no standings snapshot cached")

// RedisSink caches the latest snapshot and a capped history list. It is the only
// writer of the cache, so readers never see standings that were not committed.
type RedisSink struct {
	client     *redis.Client
	key        string
	historyLen int64
}

// NewRedisSink creates a sink writing under key (and key + ":history")
func NewRedisSink(client *redis.Client, key string) *RedisSink {
	if key == "" {
		key = DefaultStandingsKey
	}
	return &RedisSink{client: client, key: key, historyLen: DefaultHistoryLen}
}

// Name identifies the sink in logs and breaker states
func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) historyKey() string { return s.key + ":history" }

// Publish stores snap as the latest snapshot and prepends it to the history list
func (s *RedisSink) Publish(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key, data, 0)
	pipe.LPush(ctx, s.historyKey(), data)
	pipe.LTrim(ctx, s.historyKey(), 0, s.historyLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently cached snapshot
func (s *RedisSink) Latest(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// History returns up to limit cached snapshots, newest first
func (s *RedisSink) History(ctx context.Context, limit int) ([]Snapshot, error) {
	items, err := s.client.LRange(ctx, s.historyKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	history := make([]Snapshot, 0, len(items))
	for _, item := range items {
		var snap Snapshot
		if err := json.Unmarshal([]byte(item), &snap); err != nil {
			continue
		}
		history = append(history, snap)
	}
	return history, nil
}

// Publisher is satisfied by messaging.Client
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// BusSink forwards snapshots to a message bus subject
type BusSink struct {
	publisher Publisher
	subject   string
}

// NewBusSink creates a sink publishing on subject
func NewBusSink(p Publisher, subject string) *BusSink {
	if subject == "" {
		subject = SubjectStandings
	}
	return &BusSink{publisher: p, subject: subject}
}

// Name identifies the sink in logs and breaker states
func (s *BusSink) Name() string { return "nats" }

// Publish sends snap on the sink's subject
func (s *BusSink) Publish(ctx context.Context, snap Snapshot) error {
	return s.publisher.Publish(ctx, s.subject, snap)
}
