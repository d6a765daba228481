package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"fxledger/internal/domain"
	"fxledger/internal/job"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"
)

var refreshedAt = time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC)

type stubRates struct {
	quote  domain.Quote
	quotes []domain.Quote
	err    error
	stale  bool
	topN   int
	from   domain.Code
	to     domain.Code
}

func (s *stubRates) Snapshot(context.Context) (domain.RateTable, bool, error) {
	t := domain.NewRateTable("USD")
	t.LastRefresh = refreshedAt
	t.Rates["BTC"] = domain.RateEntry{Rate: decimal.NewFromInt(50000)}
	return t, s.stale, s.err
}

func (s *stubRates) GetRate(_ context.Context, from, to domain.Code) (domain.Quote, error) {
	s.from, s.to = from, to
	return s.quote, s.err
}

func (s *stubRates) Top(_ context.Context, n int, _ domain.Code) ([]domain.Quote, error) {
	s.topN = n
	return s.quotes, s.err
}

type stubScheduler struct{}

func (stubScheduler) State() job.State { return job.StateIdle }

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	called := false
	orig := newBotFunc
	newBotFunc = func(tele.Settings) (*tele.Bot, error) {
		called = true
		return nil, nil
	}
	defer func() { newBotFunc = orig }()

	b, err := StartTelegramBot("", &Replies{})
	if err != nil || b != nil {
		t.Fatalf("expected no bot, got %v %v", b, err)
	}
	if called {
		t.Fatal("bot should not be created without a token")
	}
}

func TestRateReply(t *testing.T) {
	rates := &stubRates{quote: domain.Quote{From: "BTC", To: "USD", Rate: decimal.NewFromInt(50000), UpdatedAt: refreshedAt}}
	r := &Replies{Rates: rates, Base: "USD"}

	got := r.Rate(context.Background(), []string{"btc"})
	if rates.from != "BTC" || rates.to != "USD" {
		t.Fatalf("unexpected pair %s→%s", rates.from, rates.to)
	}
	for _, want := range []string{"BTC→USD: 50000.0000", "Updated: 2025-10-09 12:00:00", "Bitcoin"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}

	r.Rate(context.Background(), []string{"btc", "eur"})
	if rates.to != "EUR" {
		t.Fatalf("expected explicit target, got %s", rates.to)
	}
}

func TestRateReplyErrors(t *testing.T) {
	r := &Replies{Rates: &stubRates{}, Base: "USD"}
	if got := r.Rate(context.Background(), nil); !strings.HasPrefix(got, "Usage:") {
		t.Fatalf("expected usage, got %q", got)
	}
	if got := r.Rate(context.Background(), []string{"b!"}); !strings.Contains(got, "Invalid currency code") {
		t.Fatalf("expected invalid code, got %q", got)
	}

	stale := &Replies{Rates: &stubRates{err: &domain.StaleCacheError{LastRefresh: refreshedAt, TTL: time.Minute}}, Base: "USD"}
	if got := stale.Rate(context.Background(), []string{"BTC"}); got != "Rates are stale, refresh pending." {
		t.Fatalf("unexpected stale reply %q", got)
	}
}

func TestTopRatesReply(t *testing.T) {
	rates := &stubRates{quotes: []domain.Quote{
		{From: "BTC", To: "USD", Rate: decimal.NewFromInt(50000)},
		{From: "ETH", To: "USD", Rate: decimal.NewFromInt(3000)},
	}}
	r := &Replies{Rates: rates, Base: "USD"}

	got := r.TopRates(context.Background(), nil)
	if rates.topN != defaultTop {
		t.Fatalf("expected default top, got %d", rates.topN)
	}
	if !strings.Contains(got, "Top 2 rates in USD:") || !strings.Contains(got, "ETH: 3000.0000") {
		t.Fatalf("unexpected reply %q", got)
	}

	r.TopRates(context.Background(), []string{"1"})
	if rates.topN != 1 {
		t.Fatalf("expected top 1, got %d", rates.topN)
	}
	if got := r.TopRates(context.Background(), []string{"-3"}); !strings.HasPrefix(got, "Usage:") {
		t.Fatalf("expected usage, got %q", got)
	}
}

func TestStatusReply(t *testing.T) {
	r := &Replies{Rates: &stubRates{stale: true}, Base: "USD", Scheduler: stubScheduler{}}
	got := r.Status(context.Background())
	for _, want := range []string{"Last refresh: 2025-10-09 12:00:00 (stale)", "Rates cached: 1", "Scheduler: idle"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}
