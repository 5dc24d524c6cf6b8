package ext_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ermey-enterprises/marketalert/ext"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/target"
)

// recorder implements every hook and records which fired.
type recorder struct {
	fired []string
	err   error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnPassStarted(context.Context, time.Time, int) error {
	r.fired = append(r.fired, "pass_started")
	return r.err
}

func (r *recorder) OnPassCompleted(context.Context, time.Time, int, int, time.Duration) error {
	r.fired = append(r.fired, "pass_completed")
	return r.err
}

func (r *recorder) OnScanTriggered(context.Context, target.Target) error {
	r.fired = append(r.fired, "scan_triggered")
	return r.err
}

func (r *recorder) OnScanFailed(context.Context, target.Target, string) error {
	r.fired = append(r.fired, "scan_failed")
	return r.err
}

// startOnly opts in to a single hook.
type startOnly struct {
	fired int
}

func (s *startOnly) Name() string { return "start-only" }

func (s *startOnly) OnPassStarted(context.Context, time.Time, int) error {
	s.fired++
	return nil
}

func sampleTarget() target.Target {
	return target.Target{
		TenantID:       id.NewTenantID(),
		Region:         "CA",
		InstitutionIDs: []id.InstitutionID{id.NewInstitutionID()},
	}
}

func TestRegistry_FansOutToImplementedHooks(t *testing.T) {
	reg := ext.NewRegistry(nil)
	rec := &recorder{}
	reg.Register(rec)

	ctx := context.Background()
	reg.EmitPassStarted(ctx, time.Now(), 2)
	reg.EmitScanTriggered(ctx, sampleTarget())
	reg.EmitScanFailed(ctx, sampleTarget(), "provider down")
	reg.EmitPassCompleted(ctx, time.Now(), 1, 1, time.Second)

	want := []string{"pass_started", "scan_triggered", "scan_failed", "pass_completed"}
	if len(rec.fired) != len(want) {
		t.Fatalf("fired = %v, want %v", rec.fired, want)
	}
	for i := range want {
		if rec.fired[i] != want[i] {
			t.Errorf("fired[%d] = %q, want %q", i, rec.fired[i], want[i])
		}
	}
}

func TestRegistry_UnimplementedHooksNotCalled(t *testing.T) {
	reg := ext.NewRegistry(nil)
	s := &startOnly{}
	reg.Register(s)

	ctx := context.Background()
	// These events have no subscriber in startOnly; they must be no-ops.
	reg.EmitScanTriggered(ctx, sampleTarget())
	reg.EmitScanSucceeded(ctx, sampleTarget(), 0, time.Second)
	reg.EmitShutdown(ctx)

	reg.EmitPassStarted(ctx, time.Now(), 1)
	if s.fired != 1 {
		t.Errorf("start hook fired %d times, want 1", s.fired)
	}
}

func TestRegistry_HookErrorDoesNotStopSiblings(t *testing.T) {
	reg := ext.NewRegistry(nil)
	failing := &recorder{err: errors.New("audit backend down")}
	healthy := &startOnly{}
	reg.Register(failing)
	reg.Register(healthy)

	reg.EmitPassStarted(context.Background(), time.Now(), 1)

	if healthy.fired != 1 {
		t.Errorf("healthy extension fired %d times, want 1 (failing sibling must not block)", healthy.fired)
	}
}
