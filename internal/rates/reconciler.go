package rates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fxledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultSourceTimeout = 10 * time.Second

// ReconcilerConfig holds the policy knobs of a Reconciler.
type ReconcilerConfig struct {
	Pivot         domain.Code
	Priority      []domain.Source
	SourceTimeout time.Duration
}

// Reconciler is the only writer of the rate table.
type Reconciler struct {
	tracer    trace.Tracer
	sources   []QuoteSource
	store     RateStore
	history   HistoryStore
	publisher EventPublisher
	recorder  Recorder
	logger    logrus.FieldLogger

	pivot    domain.Code
	priority map[domain.Source]int
	timeout  time.Duration
	now      func() time.Time
	newID    func() string

	mu sync.Mutex
}

type Option func(*Reconciler)

func WithPublisher(p EventPublisher) Option {
	return func(r *Reconciler) { r.publisher = p }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) { r.recorder = rec }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Reconciler) { r.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(tracer trace.Tracer, store RateStore, history HistoryStore, cfg ReconcilerConfig, sources []QuoteSource, opts ...Option) *Reconciler {
	if cfg.Pivot == "" {
		cfg.Pivot = "USD"
	}
	if len(cfg.Priority) == 0 {
		cfg.Priority = domain.DefaultSourcePriority
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	priority := make(map[domain.Source]int, len(cfg.Priority))
	for i, s := range cfg.Priority {
		priority[s] = i
	}
	r := &Reconciler{
		tracer:   tracer,
		sources:  sources,
		store:    store,
		history:  history,
		logger:   logrus.StandardLogger(),
		pivot:    cfg.Pivot,
		priority: priority,
		timeout:  cfg.SourceTimeout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RefreshOptions narrows one refresh. Empty fields mean everything configured.
type RefreshOptions struct {
	Sources []domain.Source
	Codes   []domain.Code
}

// RefreshResult describes a completed cycle. Warnings lists failed sources of a partial refresh.
type RefreshResult struct {
	Outcome     Outcome
	LastRefresh time.Time
	Succeeded   []domain.Source
	Warnings    []domain.SourceFailure
	Accepted    []domain.RatePoint
	Dropped     []domain.RatePoint
	TotalRates  int
}

type fetchResult struct {
	source domain.Source
	points []domain.RatePoint
	err    error
}

// Refresh runs one reconciliation cycle. When no source contributes a usable rate it
// returns *domain.NoSourcesAvailableError and leaves the stored table untouched. A
// failed history append puts the previous table back.
func (r *Reconciler) Refresh(ctx context.Context, opts RefreshOptions) (*RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "reconciler.refresh")
	defer span.End()
	start := r.now()

	sources, missing := r.selectSources(opts.Sources)
	results := r.fetchAll(ctx, sources, opts.Codes)

	var (
		points    []domain.RatePoint
		succeeded []domain.Source
		warnings  = missing
	)
	for _, res := range results {
		if res.err == nil && len(res.points) == 0 {
			res.err = domain.NewFetchError(res.source, domain.ErrMalformedResponse, errors.New("no rates returned"))
		}
		if r.recorder != nil {
			r.recorder.ObserveSource(res.source, len(res.points), res.err)
		}
		if res.err != nil {
			failure := domain.FailureFrom(res.source, res.err)
			warnings = append(warnings, failure)
			r.logger.WithFields(logrus.Fields{
				"source": res.source,
				"kind":   failure.Kind,
			}).Warnf("quote source failed: %v", res.err)
			continue
		}
		succeeded = append(succeeded, res.source)
		points = append(points, res.points...)
	}
	span.SetAttributes(attribute.Int("sources.ok", len(succeeded)), attribute.Int("sources.failed", len(warnings)))

	if len(succeeded) == 0 {
		r.observe(OutcomeFailed, start, 0)
		err := &domain.NoSourcesAvailableError{Failures: warnings}
		span.RecordError(err)
		return nil, err
	}

	existing, err := r.store.Load(ctx)
	previous, restorable := existing, err == nil
	if err != nil {
		r.logger.WithError(err).Warn("rate cache unreadable, rebuilding from this cycle")
		existing = domain.NewRateTable(r.pivot)
	}
	if existing.Pivot != r.pivot {
		if existing.Pivot != "" {
			r.logger.WithFields(logrus.Fields{"old": existing.Pivot, "new": r.pivot}).Warn("pivot changed, discarding cached rates")
		}
		existing = domain.NewRateTable(r.pivot)
	}

	candidates, dropped := r.normalize(points)
	for _, p := range dropped {
		r.logger.WithFields(logrus.Fields{"from": p.From, "to": p.To, "source": p.Source}).Debug("dropping pair without pivot path")
	}
	if len(candidates) == 0 {
		failures := warnings
		for _, src := range succeeded {
			failures = append(failures, domain.FailureFrom(src, domain.NewFetchError(src, domain.ErrMalformedResponse,
				fmt.Errorf("no rates with a path to %s", r.pivot))))
		}
		r.observe(OutcomeFailed, start, 0)
		err := &domain.NoSourcesAvailableError{Failures: failures}
		span.RecordError(err)
		return nil, err
	}

	merged := existing.Clone()
	accepted := make([]domain.RatePoint, 0, len(candidates))
	for _, code := range sortedCandidateCodes(candidates) {
		c := candidates[code]
		if old, ok := merged.Rates[code]; ok && old.ObservedAt.After(c.observed) {
			continue
		}
		merged.Rates[code] = domain.RateEntry{Rate: c.rate, Source: c.source, ObservedAt: c.observed}
		accepted = append(accepted, domain.RatePoint{
			From:       code,
			To:         r.pivot,
			Value:      c.rate,
			Source:     c.source,
			ObservedAt: c.observed,
		})
	}

	now := r.now().UTC()
	merged.LastRefresh = now
	if err := r.store.Save(ctx, merged); err != nil {
		r.observe(OutcomeFailed, start, 0)
		span.RecordError(err)
		return nil, &domain.PersistenceWriteError{Target: "rate table", Err: err}
	}

	entry := domain.HistoryEntry{
		ID:            r.newID(),
		Timestamp:     now,
		Pivot:         r.pivot,
		Sources:       succeeded,
		FailedSources: warnings,
		Points:        accepted,
	}
	if err := r.history.Append(ctx, entry); err != nil {
		if restorable {
			if rerr := r.store.Save(ctx, previous); rerr != nil {
				r.logger.WithError(rerr).Error("restore rate table after history failure")
			}
		}
		r.observe(OutcomeFailed, start, 0)
		span.RecordError(err)
		return nil, &domain.PersistenceWriteError{Target: "rate history", Err: err}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishRefresh(ctx, entry); err != nil {
			r.logger.WithError(err).Warn("publish refresh event failed")
		}
	}

	outcome := OutcomeSuccess
	if len(warnings) > 0 {
		outcome = OutcomePartial
	}
	total := len(merged.Rates)
	r.observe(outcome, start, total)

	r.logger.WithFields(logrus.Fields{
		"total_rates":  total,
		"accepted":     len(accepted),
		"last_refresh": now.Format(time.RFC3339),
		"errors":       len(warnings),
	}).Info("Update OK")

	return &RefreshResult{
		Outcome:     outcome,
		LastRefresh: now,
		Succeeded:   succeeded,
		Warnings:    warnings,
		Accepted:    accepted,
		Dropped:     dropped,
		TotalRates:  total,
	}, nil
}

// History returns the newest limit entries, oldest first. limit <= 0 returns all.
func (r *Reconciler) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	return r.history.List(ctx, limit)
}

func (r *Reconciler) observe(outcome Outcome, start time.Time, stored int) {
	if r.recorder != nil {
		r.recorder.ObserveRefresh(string(outcome), r.now().Sub(start), stored)
	}
}

// selectSources filters configured sources by name. Requested names that are
// not configured become failures.
func (r *Reconciler) selectSources(names []domain.Source) ([]QuoteSource, []domain.SourceFailure) {
	if len(names) == 0 {
		return r.sources, nil
	}
	byName := make(map[domain.Source]QuoteSource, len(r.sources))
	for _, s := range r.sources {
		byName[s.Name()] = s
	}
	var (
		out     []QuoteSource
		missing []domain.SourceFailure
	)
	for _, n := range names {
		if s, ok := byName[n]; ok {
			out = append(out, s)
			continue
		}
		missing = append(missing, domain.SourceFailure{Source: n, Kind: "config", Message: "source is not configured"})
	}
	return out, missing
}

// fetchAll queries every source concurrently. Each call is bounded by the
// source timeout even if the source ignores its context.
func (r *Reconciler) fetchAll(ctx context.Context, sources []QuoteSource, codes []domain.Code) []fetchResult {
	results := make([]fetchResult, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i] = r.fetchOne(ctx, src, codes)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Reconciler) fetchOne(ctx context.Context, src QuoteSource, codes []domain.Code) fetchResult {
	name := src.Name()
	if !src.HasCredentials() {
		return fetchResult{source: name, err: domain.NewFetchError(name, domain.ErrAuth, fmt.Errorf("credentials missing"))}
	}

	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		points, err := src.FetchQuotes(fctx, codes...)
		done <- fetchResult{source: name, points: points, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			var fe *domain.FetchError
			if !errors.As(res.err, &fe) {
				res.err = domain.NewFetchError(name, domain.ErrNetwork, res.err)
			}
		}
		return res
	case <-fctx.Done():
		return fetchResult{source: name, err: domain.NewFetchError(name, domain.ErrNetwork, fmt.Errorf("no answer within %s", r.timeout))}
	}
}

type candidate struct {
	rate     decimal.Decimal
	source   domain.Source
	observed time.Time
	derived  bool
}

// normalize turns raw points into one pivot-relative candidate per currency.
// Pairs quoted against neither the pivot nor a currency with a direct pivot
// rate are returned as dropped.
func (r *Reconciler) normalize(points []domain.RatePoint) (map[domain.Code]candidate, []domain.RatePoint) {
	one := decimal.NewFromInt(1)
	direct := make(map[domain.Code][]candidate)
	var (
		indirect []domain.RatePoint
		dropped  []domain.RatePoint
	)
	for _, p := range points {
		if p.From == p.To || !p.Value.IsPositive() {
			dropped = append(dropped, p)
			continue
		}
		switch {
		case p.To == r.pivot:
			direct[p.From] = append(direct[p.From], candidate{rate: p.Value, source: p.Source, observed: p.ObservedAt})
		case p.From == r.pivot:
			direct[p.To] = append(direct[p.To], candidate{rate: one.Div(p.Value), source: p.Source, observed: p.ObservedAt})
		default:
			indirect = append(indirect, p)
		}
	}

	best := make(map[domain.Code]candidate, len(direct))
	for code, cs := range direct {
		best[code] = r.pick(cs)
	}

	all := direct
	for _, p := range indirect {
		via, ok := best[p.To]
		if !ok {
			dropped = append(dropped, p)
			continue
		}
		all[p.From] = append(all[p.From], candidate{
			rate:     p.Value.Mul(via.rate),
			source:   p.Source,
			observed: p.ObservedAt,
			derived:  true,
		})
	}

	out := make(map[domain.Code]candidate, len(all))
	for code, cs := range all {
		out[code] = r.pick(cs)
	}
	return out, dropped
}

// pick applies the conflict policy: later observed_at wins, then source
// priority, then direct over derived quotes.
func (r *Reconciler) pick(cs []candidate) candidate {
	best := cs[0]
	for _, c := range cs[1:] {
		if r.better(c, best) {
			best = c
		}
	}
	return best
}

func (r *Reconciler) better(a, b candidate) bool {
	if !a.observed.Equal(b.observed) {
		return a.observed.After(b.observed)
	}
	pa, pb := r.rank(a.source), r.rank(b.source)
	if pa != pb {
		return pa < pb
	}
	if a.derived != b.derived {
		return !a.derived
	}
	return a.rate.LessThan(b.rate)
}

func (r *Reconciler) rank(s domain.Source) int {
	if p, ok := r.priority[s]; ok {
		return p
	}
	return len(r.priority)
}

func sortedCandidateCodes(m map[domain.Code]candidate) []domain.Code {
	codes := make([]domain.Code, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
