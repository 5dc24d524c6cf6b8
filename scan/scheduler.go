package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/ext"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/schedule"
	"github.com/ermey-enterprises/marketalert/scope"
	"github.com/ermey-enterprises/marketalert/target"
)

// State is the scheduler's pass phase.
type State int32

const (
	// StateIdle means no pass is in flight.
	StateIdle State = iota

	// StateEvaluating means the schedule is being checked for dueness.
	StateEvaluating

	// StateDispatching means per-target scans are running.
	StateDispatching

	// StateRecording means the run is being written back to the schedule.
	StateRecording
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateDispatching:
		return "dispatching"
	case StateRecording:
		return "recording"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TargetSource resolves the distinct scan targets of a pass.
// *target.Resolver satisfies it.
type TargetSource interface {
	Resolve(ctx context.Context) ([]target.Target, error)
}

// DefaultPrincipal names the scheduler in scopes and audit events.
const DefaultPrincipal = "scan-scheduler"

// Scheduler drives scan passes on a tick loop. Each pass moves through
// Evaluating, Dispatching, and Recording before returning to Idle; at
// most one pass runs at a time, and a tick that lands mid-pass is
// dropped rather than queued.
type Scheduler struct {
	schedules    schedule.Store
	targets      TargetSource
	orchestrator Orchestrator
	exts         *ext.Registry
	logger       *slog.Logger

	principal    string
	tickInterval time.Duration
	concurrency  int
	now          func() time.Time

	state atomic.Int32

	// runMu serializes passes; ticks that cannot take it are skipped.
	runMu sync.Mutex

	// passCtx is derived in Start and cancelled by Stop, so shutdown
	// interrupts an in-flight timed pass between targets.
	passCtx    context.Context
	passCancel context.CancelFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler re-evaluates the
// schedule (default 1 minute).
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithConcurrency bounds how many targets scan in parallel (default 1).
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithPrincipal sets the actor name minted into scopes.
func WithPrincipal(name string) SchedulerOption {
	return func(s *Scheduler) { s.principal = name }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	schedules schedule.Store,
	targets TargetSource,
	orchestrator Orchestrator,
	exts *ext.Registry,
	opts ...SchedulerOption,
) *Scheduler {
	if exts == nil {
		exts = ext.NewRegistry(nil)
	}
	s := &Scheduler{
		schedules:    schedules,
		targets:      targets,
		orchestrator: orchestrator,
		exts:         exts,
		logger:       slog.Default(),
		principal:    DefaultPrincipal,
		tickInterval: 1 * time.Minute,
		concurrency:  1,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current pass phase.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// Start launches the tick loop. Timed passes run under a context
// derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	s.passCtx, s.passCancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("scan scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
		slog.Int("concurrency", s.concurrency),
	)
	return nil
}

// Stop cancels any in-flight pass, stops the tick loop and waits for
// it to drain. An interrupted pass skips Recording, so the next Start
// re-evaluates from the prior checkpoint. Safe to call more than once.
func (s *Scheduler) Stop(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.passCancel != nil {
			s.passCancel()
		}
	})
	s.wg.Wait()
	s.logger.Info("scan scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if !s.runMu.TryLock() {
		return // A pass is still running; this tick is dropped.
	}
	defer s.runMu.Unlock()

	if err := s.runPass(s.passCtx, false); err != nil {
		s.logger.Error("scan pass failed", slog.String("error", err.Error()))
	}
}

// RunPass evaluates the schedule and, when due, runs one full pass.
// A pass that is not due is a successful no-op.
func (s *Scheduler) RunPass(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.runPass(ctx, false)
}

// RunNow runs one pass immediately, skipping the dueness check. The
// run is still recorded on the schedule so the cadence resets from it.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.runPass(ctx, true)
}

// runPass is the single-pass state machine. Callers hold runMu.
func (s *Scheduler) runPass(ctx context.Context, force bool) error {
	defer s.setState(StateIdle)

	// ── Evaluating ──────────────────────────────────
	s.setState(StateEvaluating)

	def, err := s.schedules.LoadSchedule(ctx)
	if err != nil {
		if errors.Is(err, marketalert.ErrScheduleNotFound) {
			return nil // Nothing configured; stay idle.
		}
		return fmt.Errorf("scan: load schedule: %w", err)
	}

	triggeredAt := s.now().UTC()
	if !force {
		due, dueErr := def.IsDue(triggeredAt)
		if dueErr != nil {
			return fmt.Errorf("scan: evaluate schedule: %w", dueErr)
		}
		if !due {
			return nil
		}
	}

	// Target resolution needs system-wide read access.
	sysCtx := scope.WithScope(ctx, scope.NewSystemScope(s.principal))
	targets, err := s.targets.Resolve(sysCtx)
	if err != nil {
		// The schedule is not recorded, so the next tick retries.
		return fmt.Errorf("scan: resolve targets: %w", err)
	}

	s.exts.EmitPassStarted(ctx, triggeredAt, len(targets))
	passStart := s.now()

	// ── Dispatching ─────────────────────────────────
	s.setState(StateDispatching)

	var succeeded, failed atomic.Int32
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	canceled := false
	for _, t := range targets {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		sem <- struct{}{}
		if ctx.Err() != nil {
			<-sem
			canceled = true
			break
		}
		wg.Add(1)
		go func(t target.Target) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.scanTarget(ctx, t); err != nil {
				failed.Add(1)
				s.logger.Warn("target scan failed",
					slog.String("tenant_id", t.TenantID.String()),
					slog.String("region", t.Region),
					slog.String("error", err.Error()),
				)
			} else {
				succeeded.Add(1)
			}
		}(t)
	}
	wg.Wait()

	if canceled || ctx.Err() != nil {
		// Recording is skipped so the interrupted pass re-fires.
		return fmt.Errorf("scan: pass interrupted: %w", ctx.Err())
	}

	// ── Recording ───────────────────────────────────
	s.setState(StateRecording)

	def.RecordRun(triggeredAt)
	if saveErr := s.schedules.SaveSchedule(ctx, def); saveErr != nil {
		// The pass already ran; losing the marker means at worst one
		// redundant pass next tick. Matches tolerate re-detection.
		s.logger.Error("failed to record schedule run",
			slog.Time("triggered_at", triggeredAt),
			slog.String("error", saveErr.Error()),
		)
	} else {
		s.exts.EmitScheduleRecorded(ctx, triggeredAt)
	}

	s.exts.EmitPassCompleted(ctx, triggeredAt,
		int(succeeded.Load()), int(failed.Load()), s.now().Sub(passStart))
	return nil
}

// scanTarget runs one orchestrated scan under a tenant scope, with
// panic isolation.
func (s *Scheduler) scanTarget(ctx context.Context, t target.Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			detail := fmt.Sprint(r)
			s.exts.EmitScanPanicked(ctx, t, detail)
			err = fmt.Errorf("scan: target panicked: %s", detail)
		}
	}()

	// The scope is bounded to the tenant, with the first institution
	// as the representative for correlation.
	var rep id.InstitutionID
	if len(t.InstitutionIDs) > 0 {
		rep = t.InstitutionIDs[0]
	}
	tctx := scope.WithScope(ctx, scope.NewTenantScope(s.principal, t.TenantID, rep))

	s.exts.EmitScanTriggered(tctx, t)
	start := s.now()

	matches, scanErr := s.orchestrator.StartScan(tctx, t)
	if scanErr != nil {
		s.exts.EmitScanFailed(tctx, t, scanErr.Error())
		return scanErr
	}

	s.exts.EmitScanSucceeded(tctx, t, matches, s.now().Sub(start))
	return nil
}
