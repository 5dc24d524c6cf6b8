package scan_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/ext"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/scan"
	"github.com/ermey-enterprises/marketalert/schedule"
	"github.com/ermey-enterprises/marketalert/scope"
	"github.com/ermey-enterprises/marketalert/target"
)

// ── Stubs ───────────────────────────────────────────

type stubScheduleStore struct {
	mu      sync.Mutex
	def     *schedule.Definition
	loadErr error
	saveErr error
	saved   []*schedule.Definition
}

func (s *stubScheduleStore) LoadSchedule(context.Context) (*schedule.Definition, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	cp := *s.def
	return &cp, nil
}

func (s *stubScheduleStore) SaveSchedule(_ context.Context, d *schedule.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *d
	s.saved = append(s.saved, &cp)
	return nil
}

type stubTargets struct {
	targets   []target.Target
	err       error
	sawSystem bool
	calls     int
}

func (s *stubTargets) Resolve(ctx context.Context) ([]target.Target, error) {
	s.calls++
	s.sawSystem = scope.IsSystem(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return s.targets, nil
}

type stubOrchestrator struct {
	mu     sync.Mutex
	calls  []target.Target
	scopes []scope.Scope
	fn     func(ctx context.Context, t target.Target) (int, error)
}

func (o *stubOrchestrator) StartScan(ctx context.Context, t target.Target) (int, error) {
	o.mu.Lock()
	o.calls = append(o.calls, t)
	if sc, ok := scope.FromContext(ctx); ok {
		o.scopes = append(o.scopes, sc)
	}
	o.mu.Unlock()
	if o.fn != nil {
		return o.fn(ctx, t)
	}
	return 1, nil
}

func (o *stubOrchestrator) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

// captureExt records every lifecycle event by name.
type captureExt struct {
	mu        sync.Mutex
	events    []string
	succeeded int
	failed    int
}

func (c *captureExt) Name() string { return "capture" }

func (c *captureExt) add(name string) {
	c.mu.Lock()
	c.events = append(c.events, name)
	c.mu.Unlock()
}

func (c *captureExt) OnPassStarted(context.Context, time.Time, int) error {
	c.add("pass_started")
	return nil
}

func (c *captureExt) OnPassCompleted(_ context.Context, _ time.Time, succeeded, failed int, _ time.Duration) error {
	c.mu.Lock()
	c.events = append(c.events, "pass_completed")
	c.succeeded = succeeded
	c.failed = failed
	c.mu.Unlock()
	return nil
}

func (c *captureExt) OnScheduleRecorded(context.Context, time.Time) error {
	c.add("schedule_recorded")
	return nil
}

func (c *captureExt) OnScanTriggered(context.Context, target.Target) error {
	c.add("scan_triggered")
	return nil
}

func (c *captureExt) OnScanSucceeded(context.Context, target.Target, int, time.Duration) error {
	c.add("scan_succeeded")
	return nil
}

func (c *captureExt) OnScanFailed(context.Context, target.Target, string) error {
	c.add("scan_failed")
	return nil
}

func (c *captureExt) OnScanPanicked(context.Context, target.Target, string) error {
	c.add("scan_panicked")
	return nil
}

func (c *captureExt) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e == name {
			n++
		}
	}
	return n
}

// ── Helpers ─────────────────────────────────────────

var fixedNow = time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dueSchedule() *schedule.Definition {
	// Never run, so the first pass is due immediately.
	return &schedule.Definition{Expression: "0 */5 * * * *", Timezone: "UTC"}
}

func notDueSchedule() *schedule.Definition {
	// Last run at 00:00; next occurrence 00:05 is after the clock's 00:01.
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &schedule.Definition{Expression: "0 */5 * * * *", Timezone: "UTC", LastRunAt: &last}
}

func twoTargets() []target.Target {
	return []target.Target{
		{TenantID: id.NewTenantID(), Region: "CA", InstitutionIDs: []id.InstitutionID{id.NewInstitutionID()}},
		{TenantID: id.NewTenantID(), Region: "NV", InstitutionIDs: []id.InstitutionID{id.NewInstitutionID(), id.NewInstitutionID()}},
	}
}

func newScheduler(store *stubScheduleStore, targets *stubTargets, orch *stubOrchestrator, capture *captureExt) *scan.Scheduler {
	reg := ext.NewRegistry(nil)
	if capture != nil {
		reg.Register(capture)
	}
	return scan.NewScheduler(store, targets, orch, reg, scan.WithClock(fixedClock))
}

// ── Tests ───────────────────────────────────────────

func TestScheduler_NotDueIsNoop(t *testing.T) {
	store := &stubScheduleStore{def: notDueSchedule()}
	orch := &stubOrchestrator{}
	capture := &captureExt{}
	s := newScheduler(store, &stubTargets{targets: twoTargets()}, orch, capture)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if orch.callCount() != 0 {
		t.Errorf("orchestrator called %d times, want 0", orch.callCount())
	}
	if len(store.saved) != 0 {
		t.Errorf("schedule saved %d times, want 0", len(store.saved))
	}
	if len(capture.events) != 0 {
		t.Errorf("events emitted: %v, want none", capture.events)
	}
}

func TestScheduler_DuePassDispatchesAndRecords(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	targets := &stubTargets{targets: twoTargets()}
	orch := &stubOrchestrator{}
	capture := &captureExt{}
	s := newScheduler(store, targets, orch, capture)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if orch.callCount() != 2 {
		t.Fatalf("orchestrator called %d times, want 2", orch.callCount())
	}
	if !targets.sawSystem {
		t.Error("target resolution ran without a system scope")
	}
	if len(store.saved) != 1 {
		t.Fatalf("schedule saved %d times, want 1", len(store.saved))
	}
	if got := store.saved[0].LastRunAt; got == nil || !got.Equal(fixedNow) {
		t.Errorf("recorded LastRunAt = %v, want %v", got, fixedNow)
	}

	for _, want := range []struct {
		name  string
		count int
	}{
		{"pass_started", 1},
		{"scan_triggered", 2},
		{"scan_succeeded", 2},
		{"schedule_recorded", 1},
		{"pass_completed", 1},
	} {
		if got := capture.count(want.name); got != want.count {
			t.Errorf("%s emitted %d times, want %d", want.name, got, want.count)
		}
	}
	if capture.succeeded != 2 || capture.failed != 0 {
		t.Errorf("pass completed with %d/%d, want 2/0", capture.succeeded, capture.failed)
	}
}

func TestScheduler_MintsTenantScopePerTarget(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	tgts := twoTargets()
	orch := &stubOrchestrator{}
	s := newScheduler(store, &stubTargets{targets: tgts}, orch, nil)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if len(orch.scopes) != 2 {
		t.Fatalf("captured %d scopes, want 2", len(orch.scopes))
	}
	for i, sc := range orch.scopes {
		if sc.System {
			t.Errorf("scope[%d] is system, want tenant-bounded", i)
		}
		if sc.Principal != scan.DefaultPrincipal {
			t.Errorf("scope[%d].Principal = %q, want %q", i, sc.Principal, scan.DefaultPrincipal)
		}
		if sc.TenantID.IsNil() {
			t.Errorf("scope[%d] missing tenant", i)
		}
		// The representative must be the target's first institution.
		if sc.InstitutionID.String() != orch.calls[i].InstitutionIDs[0].String() {
			t.Errorf("scope[%d].InstitutionID = %v, want first institution of target", i, sc.InstitutionID)
		}
		if !sc.Allows(orch.calls[i].TenantID) {
			t.Errorf("scope[%d] does not allow its own tenant", i)
		}
	}
}

func TestScheduler_ZeroTargetsStillRecords(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	orch := &stubOrchestrator{}
	capture := &captureExt{}
	s := newScheduler(store, &stubTargets{}, orch, capture)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if len(store.saved) != 1 {
		t.Errorf("schedule saved %d times, want 1 (empty pass still records)", len(store.saved))
	}
	if capture.count("pass_completed") != 1 {
		t.Error("pass_completed not emitted for empty pass")
	}
}

func TestScheduler_PanicIsolatedPerTarget(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	tgts := twoTargets()
	orch := &stubOrchestrator{
		fn: func(_ context.Context, t target.Target) (int, error) {
			if t.Region == "CA" {
				panic("corrupt address data")
			}
			return 1, nil
		},
	}
	capture := &captureExt{}
	s := newScheduler(store, &stubTargets{targets: tgts}, orch, capture)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v (a panicking target must not fail the pass)", err)
	}
	if orch.callCount() != 2 {
		t.Errorf("orchestrator called %d times, want 2 (panic must not stop siblings)", orch.callCount())
	}
	if capture.count("scan_panicked") != 1 {
		t.Errorf("scan_panicked emitted %d times, want 1", capture.count("scan_panicked"))
	}
	if capture.count("scan_succeeded") != 1 {
		t.Errorf("scan_succeeded emitted %d times, want 1", capture.count("scan_succeeded"))
	}
	if len(store.saved) != 1 {
		t.Errorf("schedule saved %d times, want 1", len(store.saved))
	}
	if capture.failed != 1 || capture.succeeded != 1 {
		t.Errorf("pass completed with %d/%d succeeded/failed, want 1/1", capture.succeeded, capture.failed)
	}
}

func TestScheduler_ScanErrorMarksTargetFailed(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	orch := &stubOrchestrator{
		fn: func(context.Context, target.Target) (int, error) {
			return 0, errors.New("address store unreachable")
		},
	}
	capture := &captureExt{}
	s := newScheduler(store, &stubTargets{targets: twoTargets()}, orch, capture)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if capture.count("scan_failed") != 2 {
		t.Errorf("scan_failed emitted %d times, want 2", capture.count("scan_failed"))
	}
	if capture.failed != 2 {
		t.Errorf("pass completed with failed = %d, want 2", capture.failed)
	}
	if len(store.saved) != 1 {
		t.Error("failed scans must not prevent schedule recording")
	}
}

func TestScheduler_CancellationSkipsRecording(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	ctx, cancel := context.WithCancel(context.Background())
	orch := &stubOrchestrator{
		fn: func(context.Context, target.Target) (int, error) {
			cancel() // Shutdown arrives mid-pass.
			return 0, nil
		},
	}
	capture := &captureExt{}
	s := newScheduler(store, &stubTargets{targets: twoTargets()}, orch, capture)

	err := s.RunPass(ctx)
	if err == nil {
		t.Fatal("RunPass returned nil, want interruption error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunPass error = %v, want context.Canceled", err)
	}
	if orch.callCount() != 1 {
		t.Errorf("orchestrator called %d times, want 1 (remaining targets skipped)", orch.callCount())
	}
	if len(store.saved) != 0 {
		t.Error("interrupted pass must not record the schedule")
	}
	if capture.count("schedule_recorded") != 0 {
		t.Error("schedule_recorded emitted for interrupted pass")
	}
}

func TestScheduler_StopInterruptsTimedPass(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	dispatched := make(chan struct{})
	var once sync.Once
	orch := &stubOrchestrator{
		fn: func(ctx context.Context, _ target.Target) (int, error) {
			once.Do(func() { close(dispatched) })
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(2 * time.Second):
				return 0, errors.New("scan ran to completion during shutdown")
			}
		},
	}
	tgt := []target.Target{{
		TenantID:       id.NewTenantID(),
		Region:         "CA",
		InstitutionIDs: []id.InstitutionID{id.NewInstitutionID()},
	}}
	s := scan.NewScheduler(store, &stubTargets{targets: tgt}, orch, ext.NewRegistry(nil),
		scan.WithClock(fixedClock),
		scan.WithTickInterval(10*time.Millisecond),
	)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("timed pass never dispatched a target")
	}

	begin := time.Now()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("Stop blocked %v waiting out an in-flight scan", elapsed)
	}
	if len(store.saved) != 0 {
		t.Error("interrupted timed pass must not record the schedule")
	}
}

func TestScheduler_StopTwiceIsSafe(t *testing.T) {
	s := newScheduler(&stubScheduleStore{def: notDueSchedule()}, &stubTargets{}, &stubOrchestrator{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestScheduler_SaveFailureTolerated(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule(), saveErr: errors.New("db down")}
	capture := &captureExt{}
	s := newScheduler(store, &stubTargets{targets: twoTargets()}, &stubOrchestrator{}, capture)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v (a failed schedule save is not fatal)", err)
	}
	if capture.count("schedule_recorded") != 0 {
		t.Error("schedule_recorded emitted despite save failure")
	}
	if capture.count("pass_completed") != 1 {
		t.Error("pass_completed not emitted despite save failure")
	}
}

func TestScheduler_ResolutionFailureAbortsWithoutRecording(t *testing.T) {
	store := &stubScheduleStore{def: dueSchedule()}
	orch := &stubOrchestrator{}
	s := newScheduler(store, &stubTargets{err: errors.New("institutions unavailable")}, orch, nil)

	if err := s.RunPass(context.Background()); err == nil {
		t.Fatal("RunPass returned nil, want resolution error")
	}
	if orch.callCount() != 0 {
		t.Error("orchestrator called despite resolution failure")
	}
	if len(store.saved) != 0 {
		t.Error("schedule recorded despite resolution failure; the pass must retry next tick")
	}
}

func TestScheduler_RunNowBypassesDueCheck(t *testing.T) {
	store := &stubScheduleStore{def: notDueSchedule()}
	orch := &stubOrchestrator{}
	s := newScheduler(store, &stubTargets{targets: twoTargets()}, orch, nil)

	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if orch.callCount() != 2 {
		t.Errorf("orchestrator called %d times, want 2 (manual run skips dueness)", orch.callCount())
	}
	if len(store.saved) != 1 {
		t.Error("manual run must still record the schedule")
	}
}

func TestScheduler_MissingScheduleIsNoop(t *testing.T) {
	store := &stubScheduleStore{loadErr: marketalert.ErrScheduleNotFound}
	orch := &stubOrchestrator{}
	s := newScheduler(store, &stubTargets{targets: twoTargets()}, orch, nil)

	if err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v (no configured schedule is not an error)", err)
	}
	if orch.callCount() != 0 {
		t.Error("orchestrator called with no schedule configured")
	}
}

func TestScheduler_InvalidScheduleSurfaces(t *testing.T) {
	store := &stubScheduleStore{def: &schedule.Definition{Expression: "not a cron", Timezone: "UTC"}}
	s := newScheduler(store, &stubTargets{}, &stubOrchestrator{}, nil)

	err := s.RunPass(context.Background())
	if err == nil {
		t.Fatal("RunPass returned nil for an invalid expression")
	}
	if !strings.Contains(err.Error(), "evaluate schedule") {
		t.Errorf("error = %v, want schedule evaluation failure", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state scan.State
		want  string
	}{
		{scan.StateIdle, "idle"},
		{scan.StateEvaluating, "evaluating"},
		{scan.StateDispatching, "dispatching"},
		{scan.StateRecording, "recording"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
