package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/narrative-recall/internal/simulation"
)

func newTestStore(t *testing.T) *SQLiteRunStore {
	t.Helper()
	s, err := NewSQLiteRunStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(id string, model simulation.Model, created time.Time) *simulation.Result {
	return &simulation.Result{
		RunID:         id,
		Scenario:      "fisherman",
		Model:         model,
		Seed:          42,
		Steps:         -1,
		CreatedAt:     created,
		Presentations: []int{0, 1, 2, 3},
		Recalls:       []int{2, 0},
		Stopped:       true,
		Activations:   []float64{0.2, 0.2, 1, 0.5},
		Connections:   [][]float64{{0, 1}, {1, 0}},
	}
}

func TestNewSQLiteRunStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	s, err := NewSQLiteRunStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	defer s.Close()

	if s.Path() != filepath.Join(dir, DBFile) {
		t.Errorf("Path() = %s", s.Path())
	}
	if _, err := os.Stat(s.Path()); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestSQLiteRunStore_SaveGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := sampleResult("run-1", simulation.ModelLandscape, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	if err := s.SaveRun(ctx, want); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !reflect.DeepEqual(got.Recalls, want.Recalls) || !reflect.DeepEqual(got.Connections, want.Connections) {
		t.Errorf("GetRun() = %+v, want %+v", got, want)
	}
	if got.Seed != 42 || got.Model != simulation.ModelLandscape || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("metadata not preserved: %+v", got)
	}
}

func TestSQLiteRunStore_SaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveRun(context.Background(), &simulation.Result{}); err == nil {
		t.Error("SaveRun() should require a run ID")
	}
}

func TestSQLiteRunStore_GetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteRunStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	runs := []*simulation.Result{
		sampleResult("a", simulation.ModelLandscape, base),
		sampleResult("b", simulation.ModelCMR, base.Add(time.Minute)),
		sampleResult("c", simulation.ModelLandscape, base.Add(2*time.Minute)),
	}
	runs[2].Recalls = []int{3, 1, 0}
	runs[2].Stopped = false
	for _, r := range runs {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", r.RunID, err)
		}
	}

	all, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	var ids []string
	for _, sum := range all {
		ids = append(ids, sum.ID)
	}
	if !reflect.DeepEqual(ids, []string{"c", "b", "a"}) {
		t.Errorf("ListRuns() order = %v, want [c b a]", ids)
	}
	if all[0].Recalls != 3 || all[0].Stopped || all[1].Recalls != 2 || !all[1].Stopped {
		t.Errorf("unexpected summaries: %+v", all)
	}
	if all[0].Seed != 42 {
		t.Errorf("Seed = %d, want 42", all[0].Seed)
	}

	landscape, err := s.ListRuns(ctx, string(simulation.ModelLandscape))
	if err != nil {
		t.Fatalf("ListRuns(landscape) error = %v", err)
	}
	if len(landscape) != 2 {
		t.Errorf("ListRuns(landscape) returned %d runs, want 2", len(landscape))
	}
}

func TestSQLiteRunStore_SaveReplacesEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	res := sampleResult("run-1", simulation.ModelCMR, time.Now().UTC())

	if err := s.SaveRun(ctx, res); err != nil {
		t.Fatal(err)
	}
	res.Recalls = []int{1}
	if err := s.SaveRun(ctx, res); err != nil {
		t.Fatalf("second SaveRun() error = %v", err)
	}

	events, err := s.Events(ctx, "run-1")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if !reflect.DeepEqual(events, EventsOf(res)) {
		t.Errorf("Events() = %v, want %v", events, EventsOf(res))
	}
	if events[0].Type != simulation.EventStudy || events[len(events)-1].Type != simulation.EventRecall {
		t.Errorf("events not in study-then-recall order: %v", events)
	}
}

func TestSQLiteRunStore_DeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SaveRun(ctx, sampleResult("run-1", simulation.ModelLandscape, time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	if _, err := s.GetRun(ctx, "run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() after delete error = %v, want ErrRunNotFound", err)
	}
	events, err := s.Events(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("events survived delete: %v", events)
	}
	if err := s.DeleteRun(ctx, "run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second DeleteRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteRunStore_ExportImportJSONL(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b"} {
		if err := src.SaveRun(ctx, sampleResult(id, simulation.ModelLandscape, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "runs.jsonl")
	n, err := src.ExportJSONL(ctx, path)
	if err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ExportJSONL() wrote %d runs, want 2", n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"run_id":"a"`) {
		t.Errorf("unexpected export contents: %q", string(data))
	}

	// A malformed line is skipped.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n")
	f.Close()

	dst := newTestStore(t)
	n, err = dst.ImportJSONL(ctx, path)
	if err != nil {
		t.Fatalf("ImportJSONL() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ImportJSONL() imported %d runs, want 2", n)
	}
	got, err := dst.GetRun(ctx, "b")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !reflect.DeepEqual(got.Recalls, []int{2, 0}) {
		t.Errorf("imported Recalls = %v", got.Recalls)
	}
}

func TestSQLiteRunStore_ImportMissingFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ImportJSONL(context.Background(), "/nonexistent/runs.jsonl"); err == nil {
		t.Error("ImportJSONL() should fail for a missing file")
	}
}

func TestSQLiteRunStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteRunStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, sampleResult("persisted", simulation.ModelCMR, time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteRunStore(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.GetRun(ctx, "persisted"); err != nil {
		t.Errorf("GetRun() after reopen error = %v", err)
	}
}

func TestSQLiteRunStore_LargeSeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := sampleResult("run-big-seed", simulation.ModelCMR, time.Now().UTC())
	res.Seed = math.MaxUint64
	if err := s.SaveRun(ctx, res); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	runs, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Seed != math.MaxUint64 {
		t.Fatalf("ListRuns() = %+v, want seed %d", runs, uint64(math.MaxUint64))
	}

	var column string
	if err := s.db.QueryRowContext(ctx, `SELECT seed FROM runs WHERE id = ?`, res.RunID).Scan(&column); err != nil {
		t.Fatalf("query seed column: %v", err)
	}
	if column != "18446744073709551615" {
		t.Errorf("seed column = %q, want %q", column, "18446744073709551615")
	}
}
