package rates

import (
	"context"
	"errors"
	"sync"
	"time"

	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
)

type memStore struct {
	mu      sync.Mutex
	table   domain.RateTable
	saves   int
	saveErr error
	loadErr error
}

func (m *memStore) Load(ctx context.Context) (domain.RateTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.RateTable{}, m.loadErr
	}
	return m.table.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, table domain.RateTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.table = table.Clone()
	return nil
}

type memHistory struct {
	mu        sync.Mutex
	entries   []domain.HistoryEntry
	appendErr error
}

func (m *memHistory) Append(ctx context.Context, entry domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memHistory) List(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.entries
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return append([]domain.HistoryEntry(nil), out...), nil
}

type fakeSource struct {
	name    domain.Source
	points  []domain.RatePoint
	err     error
	noCreds bool
	block   bool
	calls   int
	mu      sync.Mutex
}

func (f *fakeSource) Name() domain.Source  { return f.name }
func (f *fakeSource) HasCredentials() bool { return !f.noCreds }

func (f *fakeSource) FetchQuotes(ctx context.Context, codes ...domain.Code) ([]domain.RatePoint, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		// ignores ctx on purpose
		time.Sleep(500 * time.Millisecond)
		return nil, errors.New("late")
	}
	return f.points, f.err
}

type fakePublisher struct {
	entries []domain.HistoryEntry
	err     error
}

func (p *fakePublisher) PublishRefresh(ctx context.Context, entry domain.HistoryEntry) error {
	p.entries = append(p.entries, entry)
	return p.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func point(from, to domain.Code, value string, source domain.Source, at time.Time) domain.RatePoint {
	return domain.RatePoint{From: from, To: to, Value: dec(value), Source: source, ObservedAt: at}
}

func freshTable(now time.Time, rates map[domain.Code]string) domain.RateTable {
	table := domain.NewRateTable("USD")
	table.LastRefresh = now
	for code, v := range rates {
		table.Rates[code] = domain.RateEntry{Rate: dec(v), Source: domain.SourceCoinGecko, ObservedAt: now}
	}
	return table
}
