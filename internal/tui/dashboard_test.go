package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fxledger/internal/domain"
	"fxledger/internal/rates"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
)

var refreshedAt = time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC)

type stubView struct {
	table domain.RateTable
	stale bool
	err   error
}

func (s stubView) Snapshot(context.Context) (domain.RateTable, bool, error) {
	return s.table, s.stale, s.err
}

type stubRefresher struct {
	calls int
}

func (s *stubRefresher) Refresh(context.Context, rates.RefreshOptions) (*rates.RefreshResult, error) {
	s.calls++
	return &rates.RefreshResult{Outcome: rates.OutcomeSuccess, TotalRates: 2}, nil
}

func sampleTable() domain.RateTable {
	t := domain.NewRateTable("USD")
	t.LastRefresh = refreshedAt
	t.Rates["BTC"] = domain.RateEntry{Rate: decimal.NewFromInt(50000), Source: domain.SourceCoinGecko, ObservedAt: refreshedAt}
	t.Rates["EUR"] = domain.RateEntry{Rate: decimal.RequireFromString("1.1"), Source: domain.SourceExchangeRate, ObservedAt: refreshedAt}
	return t
}

func TestLoadFillsRows(t *testing.T) {
	m := NewModel(Services{Rates: stubView{table: sampleTable()}, Base: "USD"})
	msg := m.load()()
	m.Update(msg)

	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "BTC" || rows[0][1] != "50000.0000" || rows[0][3] != "Bitcoin" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	view := m.View()
	if !strings.Contains(view, "last refresh: 2025-10-09 12:00:00") {
		t.Fatalf("missing refresh time in view:\n%s", view)
	}
	if strings.Contains(view, "[STALE]") {
		t.Fatalf("fresh table marked stale:\n%s", view)
	}
}

func TestLoadMarksStale(t *testing.T) {
	m := NewModel(Services{Rates: stubView{table: sampleTable(), stale: true}, Base: "EUR"})
	m.Update(m.load()())
	if !strings.Contains(m.View(), "[STALE]") {
		t.Fatalf("expected stale marker")
	}
	for _, r := range m.table.Rows() {
		if r[0] == "EUR" {
			t.Fatalf("base currency listed against itself")
		}
	}
}

func TestLoadEmptyCache(t *testing.T) {
	m := NewModel(Services{Rates: stubView{table: domain.NewRateTable("USD")}, Base: "USD"})
	m.Update(m.load()())
	if !strings.Contains(m.View(), "rate cache is empty") {
		t.Fatalf("expected empty cache message:\n%s", m.View())
	}
}

func TestLoadError(t *testing.T) {
	m := NewModel(Services{Rates: stubView{err: errors.New("disk gone")}, Base: "USD"})
	m.Update(m.load()())
	if !strings.Contains(m.View(), "disk gone") {
		t.Fatalf("expected error in view")
	}
}

func TestRefreshKey(t *testing.T) {
	ref := &stubRefresher{}
	m := NewModel(Services{Rates: stubView{table: sampleTable()}, Refresher: ref, Base: "USD"})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil || !m.refreshing {
		t.Fatal("expected refresh command")
	}
	// a second press while refreshing is ignored
	if _, again := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); again != nil {
		t.Fatal("expected no command while refreshing")
	}

	done := cmd()
	if ref.calls != 1 {
		t.Fatalf("expected one refresh, got %d", ref.calls)
	}
	m.Update(done)
	if m.refreshing || !strings.Contains(m.status, "refresh success: 2 rates") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestRefreshKeyWithoutRefresher(t *testing.T) {
	m := NewModel(Services{Rates: stubView{table: sampleTable()}, Base: "USD"})
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); cmd != nil {
		t.Fatal("refresh should be disabled")
	}
	if strings.Contains(m.View(), "r refresh") {
		t.Fatal("help should not offer refresh")
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(Services{Rates: stubView{}, Base: "USD"})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}
