package reconcile

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/n8n"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/notify"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	_ "github.com/mattn/go-sqlite3"
)

func setupReconcileDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// :memory: databases are per-connection
	db.SetMaxOpenConns(1)

	query := `
	CREATE TABLE workflows (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		external_id TEXT NOT NULL UNIQUE,
		external_url TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		last_execution_at TEXT,
		recent_success_rate REAL NOT NULL DEFAULT 0,
		execution_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
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
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

func insertWorkflow(t *testing.T, db *sql.DB, id, clientID, externalID string, status models.WorkflowStatus, createdAt int64) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO workflows (id, client_id, name, external_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, clientID, id, externalID, status, createdAt, createdAt)
	if err != nil {
		t.Fatalf("insert workflow %s: %v", id, err)
	}
}

type stubEngine struct {
	records map[string][]n8n.ExecutionRecord
	errs    map[string]error
	calls   []string
}

func (s *stubEngine) ListExecutions(_ context.Context, externalID string, _, _ time.Time) ([]n8n.ExecutionRecord, error) {
	s.calls = append(s.calls, externalID)
	if err := s.errs[externalID]; err != nil {
		return nil, err
	}
	return s.records[externalID], nil
}

type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureSink) Publish(_ context.Context, event notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) ofType(eventType string) []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []notify.Event
	for _, e := range c.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func day(s string) time.Time {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

// newReconciler wires a reconciler with serial execution so call order
// is deterministic in tests.
func newReconciler(db *sql.DB, engine EngineClient, sink notify.Sink) *Reconciler {
	r := New(
		config.ReconcilerConfig{WindowDays: 7, Concurrency: 1},
		repositories.NewWorkflowRepository(db),
		repositories.NewExecutionRepository(db),
		EngineFactoryFunc(func(string) (EngineClient, error) { return engine, nil }),
		sink,
	)
	// Mid-afternoon on the 20th; the window must cover the 14th
	// through the 20th.
	r.now = func() time.Time { return day("2026-08-20").Add(15 * time.Hour) }
	return r
}

func TestRunMergesWindow(t *testing.T) {
	db := setupReconcileDB(t)
	defer db.Close()

	insertWorkflow(t, db, "wf_1", "cl_1", "ext-1", models.WorkflowActive, 100)
	insertWorkflow(t, db, "wf_paused", "cl_1", "ext-paused", models.WorkflowPaused, 200)

	engine := &stubEngine{records: map[string][]n8n.ExecutionRecord{
		"ext-1": {
			{Date: day("2026-08-18"), Succeeded: true},
			{Date: day("2026-08-18"), Succeeded: true},
			{Date: day("2026-08-18"), Succeeded: false},
			{Date: day("2026-08-19"), Succeeded: true},
			{Date: day("2026-08-19"), Succeeded: true},
		},
	}}
	sink := &captureSink{}

	summary, err := newReconciler(db, engine, sink).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Workflows != 1 || summary.Reconciled != 1 || summary.Skipped != 0 {
		t.Errorf("summary = %+v, want 1 workflow reconciled", summary)
	}
	if summary.DaysMerged != 2 || summary.Executions != 5 {
		t.Errorf("merged %d days / %d executions, want 2 / 5", summary.DaysMerged, summary.Executions)
	}
	if !summary.Since.Equal(day("2026-08-14")) || !summary.Until.Equal(day("2026-08-20")) {
		t.Errorf("window = %s..%s, want 2026-08-14..2026-08-20",
			summary.Since.Format(time.DateOnly), summary.Until.Format(time.DateOnly))
	}

	for _, called := range engine.calls {
		if called == "ext-paused" {
			t.Error("paused workflow was polled")
		}
	}

	execs := repositories.NewExecutionRepository(db)
	agg, err := execs.GetByWorkflowAndDate("wf_1", day("2026-08-18"))
	if err != nil || agg == nil {
		t.Fatalf("aggregate for 08-18 missing: %v", err)
	}
	if agg.TotalCount != 3 || agg.SuccessCount != 2 || agg.ErrorCount != 1 {
		t.Errorf("08-18 counts = %d/%d/%d, want 3/2/1", agg.TotalCount, agg.SuccessCount, agg.ErrorCount)
	}
	agg, err = execs.GetByWorkflowAndDate("wf_1", day("2026-08-19"))
	if err != nil || agg == nil {
		t.Fatalf("aggregate for 08-19 missing: %v", err)
	}
	if agg.TotalCount != 2 || agg.SuccessCount != 2 || agg.ErrorCount != 0 {
		t.Errorf("08-19 counts = %d/%d/%d, want 2/2/0", agg.TotalCount, agg.SuccessCount, agg.ErrorCount)
	}
}

func TestRunReplacesStaleCounts(t *testing.T) {
	db := setupReconcileDB(t)
	defer db.Close()

	insertWorkflow(t, db, "wf_1", "cl_1", "ext-1", models.WorkflowActive, 100)

	execs := repositories.NewExecutionRepository(db)
	err := execs.UpsertMerge(&models.Execution{
		WorkflowID: "wf_1", ClientID: "cl_1", ExecutionDate: day("2026-08-18"),
		TotalCount: 10, SuccessCount: 9, ErrorCount: 1,
	})
	if err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}

	// The remote now reports 12 runs for the same day. The row must end
	// at 12, not 22.
	records := make([]n8n.ExecutionRecord, 0, 12)
	for i := 0; i < 10; i++ {
		records = append(records, n8n.ExecutionRecord{Date: day("2026-08-18"), Succeeded: true})
	}
	records = append(records,
		n8n.ExecutionRecord{Date: day("2026-08-18"), Succeeded: false},
		n8n.ExecutionRecord{Date: day("2026-08-18"), Succeeded: false},
	)
	engine := &stubEngine{records: map[string][]n8n.ExecutionRecord{"ext-1": records}}

	if _, err := newReconciler(db, engine, &captureSink{}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	agg, err := execs.GetByWorkflowAndDate("wf_1", day("2026-08-18"))
	if err != nil || agg == nil {
		t.Fatalf("aggregate missing: %v", err)
	}
	if agg.TotalCount != 12 || agg.SuccessCount != 10 || agg.ErrorCount != 2 {
		t.Errorf("counts = %d/%d/%d, want 12/10/2", agg.TotalCount, agg.SuccessCount, agg.ErrorCount)
	}
}

func TestAuthFailureAbortsRestOfClient(t *testing.T) {
	db := setupReconcileDB(t)
	defer db.Close()

	// Client A: first workflow healthy, second hits a revoked
	// credential. Client B must be unaffected.
	insertWorkflow(t, db, "wf_a1", "cl_a", "ext-a1", models.WorkflowActive, 100)
	insertWorkflow(t, db, "wf_a2", "cl_a", "ext-a2", models.WorkflowActive, 200)
	insertWorkflow(t, db, "wf_a3", "cl_a", "ext-a3", models.WorkflowActive, 300)
	insertWorkflow(t, db, "wf_b1", "cl_b", "ext-b1", models.WorkflowActive, 400)

	engine := &stubEngine{
		records: map[string][]n8n.ExecutionRecord{
			"ext-a1": {{Date: day("2026-08-19"), Succeeded: true}},
			"ext-b1": {{Date: day("2026-08-19"), Succeeded: true}},
		},
		errs: map[string]error{
			"ext-a2": &n8n.Error{Kind: n8n.KindAuthFailed, Op: "list executions", StatusCode: 401},
		},
	}
	sink := &captureSink{}

	summary, err := newReconciler(db, engine, sink).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Reconciled != 2 {
		t.Errorf("reconciled = %d, want 2 (wf_a1 and wf_b1)", summary.Reconciled)
	}
	if summary.Skipped != 2 {
		t.Errorf("skipped = %d, want 2 (wf_a2 and aborted wf_a3)", summary.Skipped)
	}

	for _, called := range engine.calls {
		if called == "ext-a3" {
			t.Error("workflow after the auth failure was still polled")
		}
	}

	// The committed merge for wf_a1 survives the abort.
	execs := repositories.NewExecutionRepository(db)
	agg, err := execs.GetByWorkflowAndDate("wf_a1", day("2026-08-19"))
	if err != nil || agg == nil {
		t.Fatalf("wf_a1 aggregate missing: %v", err)
	}

	events := sink.ofType(notify.TypeEngineAuthFailed)
	if len(events) != 1 {
		t.Fatalf("auth events = %d, want exactly 1", len(events))
	}
	payload, ok := events[0].Data.(notify.EngineAuthFailedPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].Data)
	}
	if payload.ClientID != "cl_a" {
		t.Errorf("event client = %s, want cl_a", payload.ClientID)
	}
}

func TestFactoryFailureSkipsWholeClient(t *testing.T) {
	db := setupReconcileDB(t)
	defer db.Close()

	insertWorkflow(t, db, "wf_1", "cl_1", "ext-1", models.WorkflowActive, 100)
	insertWorkflow(t, db, "wf_2", "cl_1", "ext-2", models.WorkflowActive, 200)

	engine := &stubEngine{}
	sink := &captureSink{}
	r := New(
		config.ReconcilerConfig{WindowDays: 7, Concurrency: 1},
		repositories.NewWorkflowRepository(db),
		repositories.NewExecutionRepository(db),
		EngineFactoryFunc(func(clientID string) (EngineClient, error) {
			return nil, &n8n.Error{Kind: n8n.KindAuthFailed, Op: "build client"}
		}),
		sink,
	)
	r.now = func() time.Time { return day("2026-08-20") }

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 2 || summary.Reconciled != 0 {
		t.Errorf("summary = %+v, want both workflows skipped", summary)
	}
	if len(engine.calls) != 0 {
		t.Errorf("engine was called %d times, want 0", len(engine.calls))
	}
	if len(sink.ofType(notify.TypeEngineAuthFailed)) != 1 {
		t.Errorf("auth events = %d, want 1", len(sink.ofType(notify.TypeEngineAuthFailed)))
	}
}

func TestMissingRemoteWorkflowSkipsOnlyItself(t *testing.T) {
	db := setupReconcileDB(t)
	defer db.Close()

	insertWorkflow(t, db, "wf_1", "cl_1", "ext-1", models.WorkflowActive, 100)
	insertWorkflow(t, db, "wf_2", "cl_1", "ext-2", models.WorkflowActive, 200)

	engine := &stubEngine{
		records: map[string][]n8n.ExecutionRecord{
			"ext-2": {{Date: day("2026-08-19"), Succeeded: true}},
		},
		errs: map[string]error{
			"ext-1": &n8n.Error{Kind: n8n.KindNotFound, Op: "list executions", StatusCode: 404},
		},
	}
	sink := &captureSink{}

	summary, err := newReconciler(db, engine, sink).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 1 || summary.Reconciled != 1 {
		t.Errorf("summary = %+v, want 1 skipped and 1 reconciled", summary)
	}
	if len(engine.calls) != 2 {
		t.Errorf("engine calls = %d, want both workflows polled", len(engine.calls))
	}
	if len(sink.events) != 0 {
		t.Errorf("events = %d, want none for a missing remote workflow", len(sink.events))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := setupReconcileDB(t)
	defer db.Close()

	insertWorkflow(t, db, "wf_1", "cl_1", "ext-1", models.WorkflowActive, 100)

	engine := &stubEngine{records: map[string][]n8n.ExecutionRecord{
		"ext-1": {
			{Date: day("2026-08-18"), Succeeded: true},
			{Date: day("2026-08-18"), Succeeded: false},
		},
	}}

	r := newReconciler(db, engine, &captureSink{})
	for i := 0; i < 3; i++ {
		if _, err := r.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM executions`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Errorf("row count = %d, want 1 after repeated runs", rows)
	}

	agg, err := repositories.NewExecutionRepository(db).GetByWorkflowAndDate("wf_1", day("2026-08-18"))
	if err != nil || agg == nil {
		t.Fatalf("aggregate missing: %v", err)
	}
	if agg.TotalCount != 2 || agg.SuccessCount != 1 || agg.ErrorCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", agg.TotalCount, agg.SuccessCount, agg.ErrorCount)
	}
}
