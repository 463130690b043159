package repositories

import (
	"database/sql"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/google/uuid"
)

type ExecutionRepository struct {
	db *sql.DB
}

func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

const executionColumns = `id, workflow_id, client_id, execution_date, total_count, success_count, error_count, created_at, updated_at`

// UpsertMerge writes one daily aggregate. An existing row for the same
// (workflow, date) has its counts replaced, not added to, so re-running
// a reconciliation converges instead of double counting.
func (r *ExecutionRepository) UpsertMerge(exec *models.Execution) error {
	if exec.ID == "" {
		exec.ID = "ex_" + uuid.New().String()
	}
	now := time.Now().Unix()

	query := `
		INSERT INTO executions (id, workflow_id, client_id, execution_date, total_count, success_count, error_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workflow_id, execution_date) DO UPDATE SET
			total_count = excluded.total_count,
			success_count = excluded.success_count,
			error_count = excluded.error_count,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query,
		exec.ID, exec.WorkflowID, exec.ClientID, formatDate(exec.ExecutionDate),
		exec.TotalCount, exec.SuccessCount, exec.ErrorCount, now, now)
	return wrapConflict(err)
}

func (r *ExecutionRepository) scanExecution(row interface{ Scan(...interface{}) error }) (*models.Execution, error) {
	exec := &models.Execution{}
	var date string
	err := row.Scan(&exec.ID, &exec.WorkflowID, &exec.ClientID, &date,
		&exec.TotalCount, &exec.SuccessCount, &exec.ErrorCount, &exec.CreatedAt, &exec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	exec.ExecutionDate, err = parseDate(date)
	if err != nil {
		return nil, err
	}
	return exec, nil
}

func (r *ExecutionRepository) GetByWorkflowAndDate(workflowID string, date time.Time) (*models.Execution, error) {
	exec, err := r.scanExecution(r.db.QueryRow(
		`SELECT `+executionColumns+` FROM executions WHERE workflow_id = ? AND execution_date = ?`,
		workflowID, formatDate(date)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return exec, err
}

// ListRange returns the aggregates for [from, to] inclusive, oldest
// first.
func (r *ExecutionRepository) ListRange(workflowID string, from, to time.Time) ([]*models.Execution, error) {
	rows, err := r.db.Query(`
		SELECT `+executionColumns+`
		FROM executions
		WHERE workflow_id = ? AND execution_date >= ? AND execution_date <= ?
		ORDER BY execution_date
	`, workflowID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*models.Execution
	for rows.Next() {
		exec, err := r.scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

// SumRange totals the window [from, to] inclusive for one workflow.
// All zeros with no error means no aggregates exist in the window.
func (r *ExecutionRepository) SumRange(workflowID string, from, to time.Time) (total, success, errored int, err error) {
	err = r.db.QueryRow(`
		SELECT COALESCE(SUM(total_count), 0), COALESCE(SUM(success_count), 0), COALESCE(SUM(error_count), 0)
		FROM executions
		WHERE workflow_id = ? AND execution_date >= ? AND execution_date <= ?
	`, workflowID, formatDate(from), formatDate(to)).Scan(&total, &success, &errored)
	return total, success, errored, err
}

// SumRangeByClient totals the window across all of a client's
// workflows, for dashboard aggregates.
func (r *ExecutionRepository) SumRangeByClient(clientID string, from, to time.Time) (total, success int, err error) {
	err = r.db.QueryRow(`
		SELECT COALESCE(SUM(total_count), 0), COALESCE(SUM(success_count), 0)
		FROM executions
		WHERE client_id = ? AND execution_date >= ? AND execution_date <= ?
	`, clientID, formatDate(from), formatDate(to)).Scan(&total, &success)
	return total, success, err
}

// LastActiveDate is the most recent aggregate day that saw at least
// one run, across all recorded history.
func (r *ExecutionRepository) LastActiveDate(workflowID string) (*time.Time, error) {
	var date sql.NullString
	err := r.db.QueryRow(`
		SELECT MAX(execution_date) FROM executions WHERE workflow_id = ? AND total_count > 0
	`, workflowID).Scan(&date)
	if err != nil {
		return nil, err
	}
	return scanDatePtr(date)
}

// LifetimeTotal is the all-time run count for one workflow.
func (r *ExecutionRepository) LifetimeTotal(workflowID string) (int64, error) {
	var total int64
	err := r.db.QueryRow(`
		SELECT COALESCE(SUM(total_count), 0) FROM executions WHERE workflow_id = ?
	`, workflowID).Scan(&total)
	return total, err
}
