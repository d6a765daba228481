package rates

import (
	"context"
	"sort"
	"time"

	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Cache is the read side of the rate table. It never triggers a refresh.
type Cache struct {
	tracer trace.Tracer
	store  RateStore
	ttl    time.Duration
	now    func() time.Time
}

func NewCache(tracer trace.Tracer, store RateStore, ttl time.Duration) *Cache {
	return &Cache{tracer: tracer, store: store, ttl: ttl, now: time.Now}
}

// TTL is the maximum table age accepted by FreshTable.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Snapshot returns the stored table without the staleness check.
func (c *Cache) Snapshot(ctx context.Context) (domain.RateTable, bool, error) {
	table, err := c.store.Load(ctx)
	if err != nil {
		return domain.RateTable{}, false, err
	}
	return table, c.stale(table), nil
}

// FreshTable loads the table and fails with *domain.StaleCacheError when it is
// older than the TTL or was never refreshed.
func (c *Cache) FreshTable(ctx context.Context) (domain.RateTable, error) {
	table, err := c.store.Load(ctx)
	if err != nil {
		return domain.RateTable{}, err
	}
	if c.stale(table) {
		return domain.RateTable{}, &domain.StaleCacheError{LastRefresh: table.LastRefresh, TTL: c.ttl}
	}
	return table, nil
}

func (c *Cache) stale(table domain.RateTable) bool {
	if !table.Refreshed() {
		return true
	}
	return c.now().Sub(table.LastRefresh) > c.ttl
}

// GetRate converts one unit of from into to through the pivot.
func (c *Cache) GetRate(ctx context.Context, from, to domain.Code) (domain.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "rate-cache.get-rate")
	defer span.End()
	span.SetAttributes(attribute.String("from", string(from)), attribute.String("to", string(to)))

	table, err := c.FreshTable(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.Quote{}, err
	}
	rate, err := Convert(table, from, to)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{From: from, To: to, Rate: rate, UpdatedAt: table.LastRefresh}, nil
}

// Rates returns the rate of every known currency against base, sorted by code.
func (c *Cache) Rates(ctx context.Context, base domain.Code) ([]domain.Quote, error) {
	table, err := c.FreshTable(ctx)
	if err != nil {
		return nil, err
	}
	return quotesAgainst(table, base)
}

// Top returns the n currencies worth the most units of base, descending by
// value with ties broken by code ascending. n <= 0 returns all of them.
func (c *Cache) Top(ctx context.Context, n int, base domain.Code) ([]domain.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "rate-cache.top")
	defer span.End()

	table, err := c.FreshTable(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	quotes, err := quotesAgainst(table, base)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		if cmp := quotes[i].Rate.Cmp(quotes[j].Rate); cmp != 0 {
			return cmp > 0
		}
		return quotes[i].From < quotes[j].From
	})
	if n > 0 && n < len(quotes) {
		quotes = quotes[:n]
	}
	return quotes, nil
}

// Convert computes rate(from,pivot) / rate(to,pivot) on a loaded table.
func Convert(table domain.RateTable, from, to domain.Code) (decimal.Decimal, error) {
	fromRate, ok := table.Rate(from)
	if !ok {
		return decimal.Decimal{}, &domain.UnknownCurrencyError{Code: from}
	}
	toRate, ok := table.Rate(to)
	if !ok {
		return decimal.Decimal{}, &domain.UnknownCurrencyError{Code: to}
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	return fromRate.Div(toRate), nil
}

func quotesAgainst(table domain.RateTable, base domain.Code) ([]domain.Quote, error) {
	if _, ok := table.Rate(base); !ok {
		return nil, &domain.UnknownCurrencyError{Code: base}
	}
	quotes := make([]domain.Quote, 0, len(table.Rates))
	for _, code := range table.Codes() {
		if code == base {
			continue
		}
		rate, err := Convert(table, code, base)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, domain.Quote{From: code, To: base, Rate: rate, UpdatedAt: table.LastRefresh})
	}
	return quotes, nil
}
