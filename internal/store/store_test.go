package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a ledger in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s.BeginRun(ctx, "run-1", t0, ""); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	s.Close()

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := s.GetRun(ctx, "run-1"); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		got, err := s.pragma(tt.name)
		if err != nil {
			t.Fatalf("pragma(%s) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRunLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.BeginRun(ctx, "run-1", t0, "http://engine:4000"); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != StatusRunning || run.FinishedAt != nil {
		t.Errorf("new run = %+v, want running and unfinished", run)
	}
	if !run.StartedAt.Equal(t0) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, t0)
	}

	rec := TrialRecord{
		RunID:        "run-1",
		Seq:          1,
		Trial:        "baseline",
		Queryset:     "mihai_simple_sys_up",
		QuerysetHash: "abc",
		Level:        "country_month",
		Fetched:      true,
		Rows:         64_000,
		Passed:       true,
		StartedAt:    t0,
		Duration:     1500 * time.Millisecond,
	}
	if err := s.RecordTrial(ctx, rec); err != nil {
		t.Fatalf("RecordTrial() failed: %v", err)
	}
	failed := rec
	failed.Seq, failed.Trial, failed.Passed, failed.Error = 2, "alpha", false, "row count"
	if err := s.RecordTrial(ctx, failed); err != nil {
		t.Fatalf("RecordTrial() failed: %v", err)
	}

	finished := t0.Add(time.Minute)
	if err := s.FinishRun(ctx, "run-1", StatusFailed, finished, "trial alpha failed"); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	run, err = s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != StatusFailed || run.Error != "trial alpha failed" || run.Trials != 2 {
		t.Errorf("finished run = %+v", run)
	}
	if run.FinishedAt == nil || !run.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", run.FinishedAt, finished)
	}

	trials, err := s.ReadTrials(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadTrials() failed: %v", err)
	}
	if len(trials) != 2 {
		t.Fatalf("got %d trials, want 2", len(trials))
	}
	if trials[0] != rec {
		t.Errorf("trial[0] = %+v, want %+v", trials[0], rec)
	}
	if trials[1].Trial != "alpha" || trials[1].Passed {
		t.Errorf("trial[1] = %+v", trials[1])
	}
}

func TestRecordTrial_ReplacesSameSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.BeginRun(ctx, "run-1", t0, ""); err != nil {
		t.Fatal(err)
	}

	rec := TrialRecord{RunID: "run-1", Seq: 1, Trial: "baseline", StartedAt: t0}
	if err := s.RecordTrial(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Passed = true
	if err := s.RecordTrial(ctx, rec); err != nil {
		t.Fatal(err)
	}

	trials, err := s.ReadTrials(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 1 || !trials[0].Passed {
		t.Errorf("trials = %+v, want one passing record", trials)
	}
}

func TestRecordTrial_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordTrial(context.Background(), TrialRecord{RunID: "nope", Seq: 1, StartedAt: t0})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestFinishRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	err := s.FinishRun(context.Background(), "nope", StatusPassed, t0, "")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := s.BeginRun(ctx, id, t0.Add(time.Duration(i)*time.Hour), ""); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "run-c" || ids[2] != "run-a" {
		t.Errorf("ids = %v, want [run-c run-b run-a]", ids)
	}

	runs, err = s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("limit 2 returned %d runs", len(runs))
	}
}

func TestLastPassingRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LastPassingRows(ctx, "hash-1", "")
	if err != nil || ok {
		t.Fatalf("empty ledger: ok=%v err=%v", ok, err)
	}

	record := func(runID string, start time.Time, rows int64, passed bool) {
		t.Helper()
		if err := s.BeginRun(ctx, runID, start, ""); err != nil {
			t.Fatal(err)
		}
		rec := TrialRecord{RunID: runID, Seq: 1, Trial: "beta", QuerysetHash: "hash-1", Fetched: true, Rows: rows, Passed: passed, StartedAt: start}
		if err := s.RecordTrial(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	record("run-1", t0, 13510, true)
	record("run-2", t0.Add(time.Hour), 13511, false)
	record("run-3", t0.Add(2*time.Hour), 13509, true)

	rows, ok, err := s.LastPassingRows(ctx, "hash-1", "")
	if err != nil || !ok || rows != 13509 {
		t.Errorf("LastPassingRows = %d, %v, %v; want 13509", rows, ok, err)
	}

	rows, ok, err = s.LastPassingRows(ctx, "hash-1", "run-3")
	if err != nil || !ok || rows != 13510 {
		t.Errorf("excluding run-3 = %d, %v, %v; want 13510", rows, ok, err)
	}
}

func TestNewRunID_TimeOrdered(t *testing.T) {
	a := NewRunID()
	time.Sleep(2 * time.Millisecond)
	b := NewRunID()
	if len(a) != 36 || a >= b {
		t.Errorf("ids %q, %q not time ordered", a, b)
	}
}
