package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fxledger/internal/rates"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrCycleInProgress is returned by RunOnce while another cycle is running.
var ErrCycleInProgress = errors.New("a refresh cycle is already running")

type Refresher interface {
	Refresh(ctx context.Context, opts rates.RefreshOptions) (*rates.RefreshResult, error)
}

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// CycleStatus is reported after every cycle, successful or not.
type CycleStatus struct {
	Cycle    int
	Started  time.Time
	Finished time.Time
	Outcome  rates.Outcome
	Result   *rates.RefreshResult
	Err      error
}

// RefreshScheduler runs the reconciler on a fixed interval. Cycles never
// overlap: a tick that arrives while a cycle runs is dropped.
type RefreshScheduler struct {
	tracer    trace.Tracer
	refresher Refresher
	interval  time.Duration
	opts      rates.RefreshOptions
	onStatus  func(CycleStatus)
	logger    logrus.FieldLogger
	now       func() time.Time

	cycle  sync.Mutex
	state  atomic.Value // State
	cycles atomic.Int64
}

type SchedulerOption func(*RefreshScheduler)

// WithStatusCallback registers fn to receive every cycle's status.
func WithStatusCallback(fn func(CycleStatus)) SchedulerOption {
	return func(s *RefreshScheduler) { s.onStatus = fn }
}

func WithSchedulerLogger(l logrus.FieldLogger) SchedulerOption {
	return func(s *RefreshScheduler) { s.logger = l }
}

// WithRefreshOptions limits scheduled cycles to some sources or codes.
func WithRefreshOptions(opts rates.RefreshOptions) SchedulerOption {
	return func(s *RefreshScheduler) { s.opts = opts }
}

func NewRefreshScheduler(tracer trace.Tracer, refresher Refresher, interval time.Duration, opts ...SchedulerOption) *RefreshScheduler {
	s := &RefreshScheduler{
		tracer:    tracer,
		refresher: refresher,
		interval:  interval,
		logger:    logrus.StandardLogger(),
		now:       time.Now,
	}
	s.state.Store(StateIdle)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RefreshScheduler) State() State { return s.state.Load().(State) }

func (s *RefreshScheduler) Interval() time.Duration { return s.interval }

// Start runs a cycle immediately and then once per interval. It blocks until
// ctx is cancelled; a cycle already running when that happens is finished first.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", s.interval)
	}
	s.state.Store(StateRunning)
	defer s.state.Store(StateIdle)
	s.logger.WithField("interval", s.interval.String()).Info("refresh scheduler started")

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopped")
			return nil
		case <-ticker.C:
			// Stop requests win over a tick that arrived at the same time.
			if ctx.Err() != nil {
				continue
			}
			s.runCycle(ctx)
		}
	}
}

// RunOnce runs a single cycle now unless one is already running.
func (s *RefreshScheduler) RunOnce(ctx context.Context) (CycleStatus, error) {
	if !s.cycle.TryLock() {
		return CycleStatus{}, ErrCycleInProgress
	}
	defer s.cycle.Unlock()
	return s.execute(ctx), nil
}

func (s *RefreshScheduler) runCycle(ctx context.Context) {
	if !s.cycle.TryLock() {
		s.logger.Warn("previous refresh cycle still running, skipping tick")
		return
	}
	defer s.cycle.Unlock()
	s.execute(ctx)
}

func (s *RefreshScheduler) execute(ctx context.Context) (status CycleStatus) {
	// The cycle owns an atomic write; cancellation only stops future cycles.
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "scheduler.cycle")
	defer span.End()

	status = CycleStatus{Cycle: int(s.cycles.Add(1)), Started: s.now()}
	span.SetAttributes(attribute.Int("cycle", status.Cycle))

	defer func() {
		if r := recover(); r != nil {
			status.Err = fmt.Errorf("refresh cycle panicked: %v", r)
			status.Outcome = rates.OutcomeFailed
			status.Result = nil
		}
		status.Finished = s.now()
		s.report(status)
	}()

	result, err := s.refresher.Refresh(ctx, s.opts)
	status.Result = result
	status.Err = err
	switch {
	case err != nil:
		status.Outcome = rates.OutcomeFailed
		span.RecordError(err)
	case result != nil:
		status.Outcome = result.Outcome
	default:
		status.Outcome = rates.OutcomeSuccess
	}
	return status
}

func (s *RefreshScheduler) report(status CycleStatus) {
	entry := s.logger.WithFields(logrus.Fields{
		"cycle":   status.Cycle,
		"outcome": string(status.Outcome),
		"took":    status.Finished.Sub(status.Started).String(),
	})
	if status.Err != nil {
		entry.WithError(status.Err).Warn("scheduled refresh failed")
	} else if status.Result != nil {
		entry.WithFields(logrus.Fields{
			"total_rates":  status.Result.TotalRates,
			"last_refresh": status.Result.LastRefresh.Format(time.RFC3339),
		}).Info("scheduled refresh done")
	}
	if s.onStatus != nil {
		s.onStatus(status)
	}
}
