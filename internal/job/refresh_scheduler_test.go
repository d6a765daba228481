package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fxledger/internal/logging"
	"fxledger/internal/rates"

	"go.opentelemetry.io/otel/trace"
)

type stubRefresher struct {
	calls   atomic.Int64
	err     error
	panicOn int64
	block   chan struct{}
	started chan struct{}
	ctxErr  atomic.Value
}

func (s *stubRefresher) Refresh(ctx context.Context, opts rates.RefreshOptions) (*rates.RefreshResult, error) {
	n := s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.ctxErr.Store(errBox{ctx.Err()})
	if n == s.panicOn {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &rates.RefreshResult{Outcome: rates.OutcomeSuccess, TotalRates: 4, LastRefresh: time.Now()}, nil
}

type errBox struct{ err error }

type statusLog struct {
	mu       sync.Mutex
	statuses []CycleStatus
}

func (l *statusLog) add(s CycleStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s)
}

func (l *statusLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.statuses)
}

func (l *statusLog) at(i int) CycleStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statuses[i]
}

func newTestScheduler(r Refresher, interval time.Duration, log *statusLog) *RefreshScheduler {
	return NewRefreshScheduler(trace.NewNoopTracerProvider().Tracer("test"), r, interval,
		WithStatusCallback(log.add),
		WithSchedulerLogger(logging.Discard()),
	)
}

func TestSchedulerRunsImmediatelyAndReports(t *testing.T) {
	stub := &stubRefresher{}
	log := &statusLog{}
	s := newTestScheduler(stub, time.Hour, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	eventually(t, func() bool { return log.len() == 1 })
	if s.State() != StateRunning {
		t.Fatalf("expected running state, got %s", s.State())
	}
	status := log.at(0)
	if status.Cycle != 1 || status.Outcome != rates.OutcomeSuccess || status.Result.TotalRates != 4 {
		t.Fatalf("unexpected status %+v", status)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle state, got %s", s.State())
	}
}

func TestSchedulerKeepsRunningAfterFailures(t *testing.T) {
	stub := &stubRefresher{err: errors.New("no sources"), panicOn: 2}
	log := &statusLog{}
	s := newTestScheduler(stub, 5*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	eventually(t, func() bool { return log.len() >= 3 })
	for i := 0; i < 3; i++ {
		st := log.at(i)
		if st.Outcome != rates.OutcomeFailed || st.Err == nil {
			t.Fatalf("cycle %d: expected failure, got %+v", i+1, st)
		}
	}
}

func TestSchedulerFinishesInFlightCycleOnStop(t *testing.T) {
	stub := &stubRefresher{block: make(chan struct{}), started: make(chan struct{}, 1)}
	log := &statusLog{}
	s := newTestScheduler(stub, time.Hour, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	<-stub.started
	cancel()
	select {
	case <-done:
		t.Fatal("scheduler returned before the in-flight cycle finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(stub.block)
	<-done
	if log.len() != 1 || log.at(0).Err != nil {
		t.Fatalf("expected one completed cycle, got %d", log.len())
	}
	if box := stub.ctxErr.Load().(errBox); box.err != nil {
		t.Fatalf("cycle context was cancelled: %v", box.err)
	}
	if stub.calls.Load() != 1 {
		t.Fatalf("expected no further cycles after stop, got %d", stub.calls.Load())
	}
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	stub := &stubRefresher{block: make(chan struct{}), started: make(chan struct{}, 1)}
	log := &statusLog{}
	s := newTestScheduler(stub, time.Hour, log)

	first := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		first <- err
	}()
	<-stub.started

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}
	close(stub.block)
	if err := <-first; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", stub.calls.Load())
	}
}

func TestStartRejectsBadInterval(t *testing.T) {
	s := newTestScheduler(&stubRefresher{}, 0, &statusLog{})
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
