package storage

import (
	"context"
	"sync"

	"fxledger/internal/domain"
)

// RateFileStore persists the reconciled rate table as one JSON document:
//
//	{"pivot": "USD", "last_refresh": "...", "rates": {"BTC": {"rate": "65000", ...}}}
type RateFileStore struct {
	path string
	mu   sync.RWMutex
}

func NewRateFileStore(path string) *RateFileStore {
	return &RateFileStore{path: path}
}

func (s *RateFileStore) Load(ctx context.Context) (domain.RateTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var table domain.RateTable
	found, err := readJSON(s.path, &table)
	if err != nil {
		return domain.RateTable{}, err
	}
	if !found || table.Rates == nil {
		table.Rates = make(map[domain.Code]domain.RateEntry)
	}
	return table, nil
}

func (s *RateFileStore) Save(ctx context.Context, table domain.RateTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.path, table)
}

// HistoryFileStore keeps the append-only refresh history as a JSON array.
type HistoryFileStore struct {
	path string
	mu   sync.Mutex
}

func NewHistoryFileStore(path string) *HistoryFileStore {
	return &HistoryFileStore{path: path}
}

// Append adds entry after the existing ones. Earlier entries are written back unchanged.
func (s *HistoryFileStore) Append(ctx context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.HistoryEntry
	if _, err := readJSON(s.path, &entries); err != nil {
		return err
	}
	entries = append(entries, entry)
	return writeJSONAtomic(s.path, entries)
}

func (s *HistoryFileStore) List(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.HistoryEntry
	if _, err := readJSON(s.path, &entries); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
