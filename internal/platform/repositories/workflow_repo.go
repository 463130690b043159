package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/google/uuid"
)

type WorkflowRepository struct {
	db *sql.DB
}

func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

const workflowColumns = `id, client_id, name, external_id, external_url, description, status, last_execution_at, recent_success_rate, execution_count, created_at, updated_at`

func (r *WorkflowRepository) Create(wf *models.Workflow) error {
	if wf.ID == "" {
		wf.ID = "wf_" + uuid.New().String()
	}
	now := time.Now().Unix()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	if wf.Status == "" {
		wf.Status = models.WorkflowActive
	}

	var lastExec interface{}
	if wf.LastExecutionAt != nil {
		lastExec = formatDate(*wf.LastExecutionAt)
	}

	_, err := r.db.Exec(`
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, wf.ID, wf.ClientID, wf.Name, wf.ExternalID, wf.ExternalURL, wf.Description,
		wf.Status, lastExec, wf.RecentSuccessRate, wf.ExecutionCount, wf.CreatedAt, wf.UpdatedAt)
	return wrapConflict(err)
}

func (r *WorkflowRepository) scanWorkflow(row interface{ Scan(...interface{}) error }) (*models.Workflow, error) {
	wf := &models.Workflow{}
	var lastExec sql.NullString
	err := row.Scan(&wf.ID, &wf.ClientID, &wf.Name, &wf.ExternalID, &wf.ExternalURL,
		&wf.Description, &wf.Status, &lastExec, &wf.RecentSuccessRate, &wf.ExecutionCount,
		&wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	wf.LastExecutionAt, err = scanDatePtr(lastExec)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func (r *WorkflowRepository) GetByID(id string) (*models.Workflow, error) {
	wf, err := r.scanWorkflow(r.db.QueryRow(`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return wf, err
}

func (r *WorkflowRepository) GetByExternalID(externalID string) (*models.Workflow, error) {
	wf, err := r.scanWorkflow(r.db.QueryRow(`SELECT `+workflowColumns+` FROM workflows WHERE external_id = ?`, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return wf, err
}

func (r *WorkflowRepository) ListByClient(clientID string) ([]*models.Workflow, error) {
	return r.list(`SELECT `+workflowColumns+` FROM workflows WHERE client_id = ? ORDER BY created_at`, clientID)
}

// ListByStatuses returns workflows in any of the given statuses,
// ordered by client so per-client batches stay contiguous.
func (r *WorkflowRepository) ListByStatuses(statuses ...models.WorkflowStatus) ([]*models.Workflow, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?, ", len(statuses)-1) + "?"
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	query := fmt.Sprintf(`SELECT %s FROM workflows WHERE status IN (%s) ORDER BY client_id, created_at`,
		workflowColumns, placeholders)
	return r.list(query, args...)
}

func (r *WorkflowRepository) list(query string, args ...interface{}) ([]*models.Workflow, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		wf, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (r *WorkflowRepository) Update(wf *models.Workflow) error {
	wf.UpdatedAt = time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE workflows
		SET name = ?, external_url = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, wf.Name, wf.ExternalURL, wf.Description, wf.UpdatedAt, wf.ID)
	return err
}

func (r *WorkflowRepository) SetStatus(id string, status models.WorkflowStatus) error {
	_, err := r.db.Exec(`UPDATE workflows SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id)
	return err
}

// UpdateHealth writes the denormalized health fields. Only the health
// monitor calls this.
func (r *WorkflowRepository) UpdateHealth(id string, lastExecutionAt *time.Time, successRate float64, executionCount int64) error {
	var lastExec interface{}
	if lastExecutionAt != nil {
		lastExec = formatDate(*lastExecutionAt)
	}
	_, err := r.db.Exec(`
		UPDATE workflows
		SET last_execution_at = ?, recent_success_rate = ?, execution_count = ?, updated_at = ?
		WHERE id = ?
	`, lastExec, successRate, executionCount, time.Now().Unix(), id)
	return err
}
