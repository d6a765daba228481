package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RatePoint is one quote: one unit of From costs Value units of To.
type RatePoint struct {
	From       Code            `json:"from"`
	To         Code            `json:"to"`
	Value      decimal.Decimal `json:"value"`
	Source     Source          `json:"source"`
	ObservedAt time.Time       `json:"observed_at"`
}

// RateEntry is a pivot-relative rate: one unit of the keyed code costs Rate units of the pivot.
type RateEntry struct {
	Rate       decimal.Decimal `json:"rate"`
	Source     Source          `json:"source"`
	ObservedAt time.Time       `json:"observed_at"`
}

// RateTable is the persisted, reconciled cache.
type RateTable struct {
	Pivot       Code               `json:"pivot"`
	LastRefresh time.Time          `json:"last_refresh"`
	Rates       map[Code]RateEntry `json:"rates"`
}

// NewRateTable returns an empty table for pivot.
func NewRateTable(pivot Code) RateTable {
	return RateTable{Pivot: pivot, Rates: make(map[Code]RateEntry)}
}

// Refreshed reports whether the table was ever stamped by a refresh.
func (t RateTable) Refreshed() bool {
	return !t.LastRefresh.IsZero()
}

// Rate returns the pivot-relative rate for code. The pivot itself is always 1.
func (t RateTable) Rate(code Code) (decimal.Decimal, bool) {
	if code == t.Pivot {
		return decimal.NewFromInt(1), true
	}
	e, ok := t.Rates[code]
	if !ok {
		return decimal.Decimal{}, false
	}
	return e.Rate, true
}

// Codes lists every known code including the pivot, sorted.
func (t RateTable) Codes() []Code {
	out := make([]Code, 0, len(t.Rates)+1)
	out = append(out, t.Pivot)
	for code := range t.Rates {
		if code != t.Pivot {
			out = append(out, code)
		}
	}
	return SortCodes(out)
}

// Clone deep-copies the rates map.
func (t RateTable) Clone() RateTable {
	out := RateTable{Pivot: t.Pivot, LastRefresh: t.LastRefresh, Rates: make(map[Code]RateEntry, len(t.Rates))}
	for k, v := range t.Rates {
		out.Rates[k] = v
	}
	return out
}

// HistoryEntry is one append-only audit record per successful refresh.
type HistoryEntry struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Pivot         Code            `json:"pivot"`
	Sources       []Source        `json:"sources"`
	FailedSources []SourceFailure `json:"failed_sources,omitempty"`
	Points        []RatePoint     `json:"points"`
}

// Quote is a computed conversion answer.
type Quote struct {
	From      Code            `json:"from"`
	To        Code            `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}
