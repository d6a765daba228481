package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fxledger/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRatesKey   = "fxledger:rates"
	DefaultHistoryKey = "fxledger:rates:history"
)

// Commands is the subset of redis.Cmdable the stores use.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisRateStore keeps the rate table as one JSON value. SET replaces the
// whole value so readers never see a partial table.
type RedisRateStore struct {
	client Commands
	key    string
	tracer trace.Tracer
}

func NewRedisRateStore(client Commands, tracer trace.Tracer, key string) *RedisRateStore {
	if key == "" {
		key = DefaultRatesKey
	}
	return &RedisRateStore{client: client, key: key, tracer: tracer}
}

func (s *RedisRateStore) Load(ctx context.Context) (domain.RateTable, error) {
	ctx, span := s.tracer.Start(ctx, "redis.rates.load")
	defer span.End()

	table := domain.RateTable{Rates: make(map[domain.Code]domain.RateEntry)}
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return table, nil
	}
	if err != nil {
		span.RecordError(err)
		return domain.RateTable{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	if err := json.Unmarshal(raw, &table); err != nil {
		return domain.RateTable{}, fmt.Errorf("decode %s: %w", s.key, err)
	}
	if table.Rates == nil {
		table.Rates = make(map[domain.Code]domain.RateEntry)
	}
	return table, nil
}

func (s *RedisRateStore) Save(ctx context.Context, table domain.RateTable) error {
	ctx, span := s.tracer.Start(ctx, "redis.rates.save")
	defer span.End()

	raw, err := json.Marshal(table)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// RedisHistoryStore appends history entries to a list.
type RedisHistoryStore struct {
	client Commands
	key    string
	tracer trace.Tracer
}

func NewRedisHistoryStore(client Commands, tracer trace.Tracer, key string) *RedisHistoryStore {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &RedisHistoryStore{client: client, key: key, tracer: tracer}
}

func (s *RedisHistoryStore) Append(ctx context.Context, entry domain.HistoryEntry) error {
	ctx, span := s.tracer.Start(ctx, "redis.history.append")
	defer span.End()

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, s.key, raw).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis rpush %s: %w", s.key, err)
	}
	return nil
}

// List returns the newest limit entries oldest first; limit <= 0 returns all.
func (s *RedisHistoryStore) List(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	ctx, span := s.tracer.Start(ctx, "redis.history.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	items, err := s.client.LRange(ctx, s.key, start, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("redis lrange %s: %w", s.key, err)
	}
	out := make([]domain.HistoryEntry, 0, len(items))
	for _, item := range items {
		var entry domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}
