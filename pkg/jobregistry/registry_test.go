package jobregistry

import (
	"errors"
	"sync"
	"testing"
)

func newTestJob(id, name string) *Job {
	return NewJob(id, "ibm-mq", "9.4.0", name, ConfigSnapshot{HomeDir: "/opt/cp4i"})
}

func TestRegistry_InsertGetRemove(t *testing.T) {
	r := New()

	job := newTestJob("mq-100", "mq")
	if err := r.Insert(job); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, ok := r.Get("mq-100")
	if !ok {
		t.Fatalf("Get() returned not found")
	}
	if got.Status != StatusRunning {
		t.Fatalf("status mismatch: got=%q want=%q", got.Status, StatusRunning)
	}
	if got.Kind != KindCase {
		t.Fatalf("kind mismatch: got=%q want=%q", got.Kind, KindCase)
	}
	if got.RunID == "" {
		t.Fatalf("run_id not assigned")
	}

	r.Remove("mq-100")
	if _, ok := r.Get("mq-100"); ok {
		t.Fatalf("job still present after Remove")
	}
}

func TestRegistry_DuplicateInsert(t *testing.T) {
	r := New()

	first := newTestJob("mq-100", "mq")
	if err := r.Insert(first); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	err := r.Insert(newTestJob("mq-100", "mq-other"))
	if err == nil {
		t.Fatalf("expected DuplicateJobError, got nil")
	}
	var dup *DuplicateJobError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateJobError, got %T: %v", err, err)
	}

	// The original job is untouched.
	got, ok := r.Get("mq-100")
	if !ok || got.Name != "mq" {
		t.Fatalf("original job affected by duplicate insert: %+v", got)
	}
}

func TestRegistry_ProgressMonotonicCapped(t *testing.T) {
	r := New()
	if err := r.Insert(newTestJob("mq-100", "mq")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	var last int
	for i := 0; i < 25; i++ {
		snap, ok := r.SetProgressing("mq-100", 5)
		if !ok {
			t.Fatalf("SetProgressing() job not found")
		}
		if snap.Progress < last {
			t.Fatalf("progress decreased: %d -> %d", last, snap.Progress)
		}
		if snap.Progress > 95 {
			t.Fatalf("progress exceeded cap: %d", snap.Progress)
		}
		last = snap.Progress
	}
	if last != 95 {
		t.Fatalf("progress should settle at 95, got %d", last)
	}
}

func TestRegistry_FinalizeOnce(t *testing.T) {
	r := New()
	if err := r.Insert(newTestJob("mq-100", "mq")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	snap, ok := r.Finalize("mq-100", StatusCompleted, 0)
	if !ok {
		t.Fatalf("first Finalize() refused")
	}
	if snap.Status != StatusCompleted || snap.Progress != 100 {
		t.Fatalf("unexpected terminal snapshot: %+v", snap)
	}
	if snap.EndTime.IsZero() {
		t.Fatalf("end time not stamped")
	}

	if _, ok := r.Finalize("mq-100", StatusFailed, 1); ok {
		t.Fatalf("second Finalize() succeeded; terminal transition must be unique")
	}
}

func TestRegistry_FinalizeKeepsStickyTerminalStatus(t *testing.T) {
	r := New()
	if err := r.Insert(newTestJob("mq-100", "mq")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if !r.MarkStopped("mq-100") {
		t.Fatalf("MarkStopped() refused")
	}

	// Process later exits nonzero; classification proposes Failed but the
	// stop verdict stands.
	snap, ok := r.Finalize("mq-100", StatusFailed, 143)
	if !ok {
		t.Fatalf("Finalize() refused")
	}
	if snap.Status != StatusStopped {
		t.Fatalf("sticky status lost: got=%q want=%q", snap.Status, StatusStopped)
	}
	if snap.ExitCode != 143 {
		t.Fatalf("exit code not carried: %d", snap.ExitCode)
	}
}

func TestRegistry_FinalizeRace(t *testing.T) {
	r := New()
	if err := r.Insert(newTestJob("mq-100", "mq")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	var wg sync.WaitGroup
	wins := make(chan Status, 8)
	for _, st := range []Status{StatusCompleted, StatusFailed, StatusDismissed, StatusStopped} {
		wg.Add(1)
		go func(st Status) {
			defer wg.Done()
			if _, ok := r.Finalize("mq-100", st, 0); ok {
				wins <- st
			}
		}(st)
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("expected exactly one finalizer to win, got %d", n)
	}
}

func TestRegistry_RemoveByName(t *testing.T) {
	r := New()
	for _, id := range []string{"mq-100", "mq-200"} {
		if err := r.Insert(newTestJob(id, "mq")); err != nil {
			t.Fatalf("Insert(%s) error: %v", id, err)
		}
	}
	if err := r.Insert(newTestJob("nav-100", "nav")); err != nil {
		t.Fatalf("Insert(nav-100) error: %v", err)
	}

	removed := r.RemoveByName("mq")
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d", len(removed))
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", r.Len())
	}
	if _, ok := r.Get("nav-100"); !ok {
		t.Fatalf("unrelated job removed")
	}
}

func TestRegistry_MirrorPIDFirstCaptureWins(t *testing.T) {
	r := New()
	if err := r.Insert(newTestJob("mq-100", "mq")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	if !r.CaptureMirrorPID("mq-100", 4242) {
		t.Fatalf("first capture refused")
	}
	if r.CaptureMirrorPID("mq-100", 9999) {
		t.Fatalf("second capture should be ignored")
	}
	snap, _ := r.Get("mq-100")
	if snap.MirrorPID != 4242 {
		t.Fatalf("mirror pid mismatch: got=%d want=4242", snap.MirrorPID)
	}
}

func TestRegistry_ListActiveNewestFirst(t *testing.T) {
	r := New()
	a := newTestJob("mq-100", "mq")
	b := newTestJob("nav-100", "nav")
	b.StartTime = a.StartTime.Add(1)
	if err := r.Insert(a); err != nil {
		t.Fatalf("Insert(a) error: %v", err)
	}
	if err := r.Insert(b); err != nil {
		t.Fatalf("Insert(b) error: %v", err)
	}

	list := r.ListActive()
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != "nav-100" {
		t.Fatalf("expected newest job first, got %s", list[0].ID)
	}
}
