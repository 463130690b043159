package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	_ "github.com/mattn/go-sqlite3"
)

func setupExecutionDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// :memory: databases are per-connection
	db.SetMaxOpenConns(1)

	query := `
	CREATE TABLE executions (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		execution_date TEXT NOT NULL,
		total_count INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(workflow_id, execution_date)
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	return db
}

func day(s string) time.Time {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestUpsertMergeReplacesCounts(t *testing.T) {
	db := setupExecutionDB(t)
	defer db.Close()

	repo := NewExecutionRepository(db)

	first := &models.Execution{
		WorkflowID:    "wf_1",
		ClientID:      "cl_1",
		ExecutionDate: day("2026-08-14"),
		TotalCount:    10,
		SuccessCount:  9,
		ErrorCount:    1,
	}
	if err := repo.UpsertMerge(first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// The remote corrected the same day upward. Counts must be
	// replaced, not added.
	second := &models.Execution{
		WorkflowID:    "wf_1",
		ClientID:      "cl_1",
		ExecutionDate: day("2026-08-14"),
		TotalCount:    12,
		SuccessCount:  10,
		ErrorCount:    2,
	}
	if err := repo.UpsertMerge(second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByWorkflowAndDate("wf_1", day("2026-08-14"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("aggregate not found")
	}
	if got.TotalCount != 12 || got.SuccessCount != 10 || got.ErrorCount != 2 {
		t.Errorf("counts = %d/%d/%d, want 12/10/2", got.TotalCount, got.SuccessCount, got.ErrorCount)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM executions WHERE workflow_id = 'wf_1'`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Errorf("row count = %d, want 1", rows)
	}
}

func TestUpsertMergeIsIdempotent(t *testing.T) {
	db := setupExecutionDB(t)
	defer db.Close()

	repo := NewExecutionRepository(db)

	exec := &models.Execution{
		WorkflowID:    "wf_1",
		ClientID:      "cl_1",
		ExecutionDate: day("2026-08-15"),
		TotalCount:    7,
		SuccessCount:  7,
	}
	for i := 0; i < 3; i++ {
		e := *exec
		e.ID = ""
		if err := repo.UpsertMerge(&e); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	got, err := repo.GetByWorkflowAndDate("wf_1", day("2026-08-15"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalCount != 7 || got.SuccessCount != 7 || got.ErrorCount != 0 {
		t.Errorf("counts = %d/%d/%d, want 7/7/0", got.TotalCount, got.SuccessCount, got.ErrorCount)
	}
}

func TestSumRangeBoundaries(t *testing.T) {
	db := setupExecutionDB(t)
	defer db.Close()

	repo := NewExecutionRepository(db)

	days := []struct {
		date    string
		total   int
		success int
	}{
		{"2026-08-10", 5, 5},  // before window
		{"2026-08-11", 10, 9}, // window start
		{"2026-08-14", 10, 3},
		{"2026-08-17", 4, 4}, // window end
		{"2026-08-18", 9, 9}, // after window
	}
	for _, d := range days {
		err := repo.UpsertMerge(&models.Execution{
			WorkflowID:    "wf_1",
			ClientID:      "cl_1",
			ExecutionDate: day(d.date),
			TotalCount:    d.total,
			SuccessCount:  d.success,
			ErrorCount:    d.total - d.success,
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", d.date, err)
		}
	}

	total, success, errored, err := repo.SumRange("wf_1", day("2026-08-11"), day("2026-08-17"))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 24 || success != 16 || errored != 8 {
		t.Errorf("sums = %d/%d/%d, want 24/16/8", total, success, errored)
	}

	// Empty window reports zeros without error.
	total, success, errored, err = repo.SumRange("wf_other", day("2026-08-11"), day("2026-08-17"))
	if err != nil {
		t.Fatalf("sum empty: %v", err)
	}
	if total != 0 || success != 0 || errored != 0 {
		t.Errorf("empty sums = %d/%d/%d, want zeros", total, success, errored)
	}
}

func TestLastActiveDateSkipsEmptyDays(t *testing.T) {
	db := setupExecutionDB(t)
	defer db.Close()

	repo := NewExecutionRepository(db)

	if err := repo.UpsertMerge(&models.Execution{
		WorkflowID: "wf_1", ClientID: "cl_1", ExecutionDate: day("2026-08-12"), TotalCount: 3, SuccessCount: 3,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// A later day that recorded nothing must not count as activity.
	if err := repo.UpsertMerge(&models.Execution{
		WorkflowID: "wf_1", ClientID: "cl_1", ExecutionDate: day("2026-08-16"), TotalCount: 0,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	last, err := repo.LastActiveDate("wf_1")
	if err != nil {
		t.Fatalf("last active: %v", err)
	}
	if last == nil || !last.Equal(day("2026-08-12")) {
		t.Errorf("last active = %v, want 2026-08-12", last)
	}

	none, err := repo.LastActiveDate("wf_never")
	if err != nil {
		t.Fatalf("last active none: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil for workflow with no runs, got %v", none)
	}
}
