package repositories

import (
	"database/sql"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/google/uuid"
)

type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, client_id, subject, description, status, priority, resolved_at, created_at, updated_at`

func (r *TicketRepository) Create(ticket *models.SupportTicket) error {
	if ticket.ID == "" {
		ticket.ID = "tk_" + uuid.New().String()
	}
	now := time.Now().Unix()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityMedium
	}

	_, err := r.db.Exec(`
		INSERT INTO support_tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ticket.ID, ticket.ClientID, ticket.Subject, ticket.Description, ticket.Status,
		ticket.Priority, ticket.ResolvedAt, ticket.CreatedAt, ticket.UpdatedAt)
	return wrapConflict(err)
}

func (r *TicketRepository) GetByID(id string) (*models.SupportTicket, error) {
	ticket := &models.SupportTicket{}
	err := r.db.QueryRow(`SELECT `+ticketColumns+` FROM support_tickets WHERE id = ?`, id).
		Scan(&ticket.ID, &ticket.ClientID, &ticket.Subject, &ticket.Description, &ticket.Status,
			&ticket.Priority, &ticket.ResolvedAt, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return ticket, nil
}

func (r *TicketRepository) List() ([]*models.SupportTicket, error) {
	return r.list(`SELECT ` + ticketColumns + ` FROM support_tickets ORDER BY created_at DESC`)
}

func (r *TicketRepository) ListByClient(clientID string) ([]*models.SupportTicket, error) {
	return r.list(`SELECT `+ticketColumns+` FROM support_tickets WHERE client_id = ? ORDER BY created_at DESC`, clientID)
}

func (r *TicketRepository) ListByStatus(status models.TicketStatus) ([]*models.SupportTicket, error) {
	return r.list(`SELECT `+ticketColumns+` FROM support_tickets WHERE status = ? ORDER BY created_at DESC`, status)
}

func (r *TicketRepository) list(query string, args ...interface{}) ([]*models.SupportTicket, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*models.SupportTicket
	for rows.Next() {
		ticket := &models.SupportTicket{}
		if err := rows.Scan(&ticket.ID, &ticket.ClientID, &ticket.Subject, &ticket.Description,
			&ticket.Status, &ticket.Priority, &ticket.ResolvedAt, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (r *TicketRepository) SetStatus(id string, status models.TicketStatus, resolvedAt *int64) error {
	_, err := r.db.Exec(`
		UPDATE support_tickets SET status = ?, resolved_at = ?, updated_at = ? WHERE id = ?
	`, status, resolvedAt, time.Now().Unix(), id)
	return err
}

func (r *TicketRepository) CountByStatus(status models.TicketStatus, clientID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM support_tickets WHERE status = ? AND client_id = ?`,
		status, clientID).Scan(&n)
	return n, err
}
