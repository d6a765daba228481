package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"fxledger/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

// fakeRedis keeps strings and lists in memory.
type fakeRedis struct {
	values map[string][]byte
	lists  map[string][]string
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, lists: map[string][]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, v := range values {
		f.lists[key] = append(f.lists[key], string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	list := f.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop += n
	}
	if start > stop || start >= n {
		return redis.NewStringSliceResult([]string{}, nil)
	}
	return redis.NewStringSliceResult(list[start:stop+1], nil)
}

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestRedisRateStoreMissingKey(t *testing.T) {
	store := NewRedisRateStore(newFakeRedis(), testTracer, "")

	table, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Refreshed() || table.Rates == nil {
		t.Fatalf("expected empty table, got %+v", table)
	}
}

func TestRedisRateStoreRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	store := NewRedisRateStore(fake, testTracer, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	table := domain.NewRateTable("USD")
	table.LastRefresh = now
	table.Rates["BTC"] = domain.RateEntry{Rate: decimal.RequireFromString("65000"), Source: domain.SourceCoinGecko, ObservedAt: now}

	if err := store.Save(context.Background(), table); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := fake.values[DefaultRatesKey]; !ok {
		t.Fatalf("expected value under %s", DefaultRatesKey)
	}
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.LastRefresh.Equal(now) || !loaded.Rates["BTC"].Rate.Equal(decimal.NewFromInt(65000)) {
		t.Fatalf("unexpected table: %+v", loaded)
	}
}

func TestRedisRateStoreErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection reset")
	store := NewRedisRateStore(fake, testTracer, "custom")

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if err := store.Save(context.Background(), domain.NewRateTable("USD")); err == nil {
		t.Fatal("expected save error")
	}
}

func TestRedisHistoryStoreAppendAndList(t *testing.T) {
	store := NewRedisHistoryStore(newFakeRedis(), testTracer, "")
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Append(ctx, domain.HistoryEntry{ID: id, Pivot: "USD"}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("unexpected history: %+v", all)
	}

	last, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(last) != 2 || last[0].ID != "b" || last[1].ID != "c" {
		t.Fatalf("unexpected tail: %+v", last)
	}
}
