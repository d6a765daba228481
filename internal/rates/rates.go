// Package rates reconciles quotes from external sources into one pivot-relative
// rate table and answers conversion queries against it.
package rates

import (
	"context"
	"time"

	"fxledger/internal/domain"
)

// QuoteSource fetches raw quotes from one provider.
type QuoteSource interface {
	Name() domain.Source
	HasCredentials() bool
	FetchQuotes(ctx context.Context, codes ...domain.Code) ([]domain.RatePoint, error)
}

// RateStore persists the reconciled table. Save must replace atomically.
type RateStore interface {
	Load(ctx context.Context) (domain.RateTable, error)
	Save(ctx context.Context, table domain.RateTable) error
}

// HistoryStore is append-only.
type HistoryStore interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	List(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// EventPublisher receives each successful refresh after it is persisted.
type EventPublisher interface {
	PublishRefresh(ctx context.Context, entry domain.HistoryEntry) error
}

// Recorder collects refresh metrics.
type Recorder interface {
	ObserveRefresh(outcome string, took time.Duration, stored int)
	ObserveSource(source domain.Source, points int, err error)
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)
