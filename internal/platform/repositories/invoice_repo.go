package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/google/uuid"
)

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, client_id, invoice_number, amount, type, status, due_date, paid_date, created_at, updated_at`

// Create assigns the next sequential invoice number and inserts the
// row in one transaction. The per-year counter row is bumped with a
// single upsert, so two racing creations serialize on the write lock
// and can never observe the same previous value.
func (r *InvoiceRepository) Create(inv *models.Invoice) error {
	if inv.ID == "" {
		inv.ID = "inv_" + uuid.New().String()
	}
	now := time.Now().Unix()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = models.InvoicePending
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	year := time.Now().UTC().Year()
	var seq int
	err = tx.QueryRow(`
		INSERT INTO invoice_sequences (year, last_number) VALUES (?, 1)
		ON CONFLICT(year) DO UPDATE SET last_number = last_number + 1
		RETURNING last_number
	`, year).Scan(&seq)
	if err != nil {
		return wrapConflict(err)
	}
	inv.InvoiceNumber = fmt.Sprintf("INV-%d-%03d", year, seq)

	_, err = tx.Exec(`
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.ClientID, inv.InvoiceNumber, inv.Amount, inv.Type, inv.Status,
		formatDate(inv.DueDate), nil, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return wrapConflict(err)
	}

	return tx.Commit()
}

func (r *InvoiceRepository) scanInvoice(row interface{ Scan(...interface{}) error }) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var due string
	var paid sql.NullString
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.InvoiceNumber, &inv.Amount, &inv.Type,
		&inv.Status, &due, &paid, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if inv.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if inv.PaidDate, err = scanDatePtr(paid); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *InvoiceRepository) GetByID(id string) (*models.Invoice, error) {
	inv, err := r.scanInvoice(r.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func (r *InvoiceRepository) GetByNumber(number string) (*models.Invoice, error) {
	inv, err := r.scanInvoice(r.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = ?`, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func (r *InvoiceRepository) ListByClient(clientID string) ([]*models.Invoice, error) {
	return r.list(`SELECT `+invoiceColumns+` FROM invoices WHERE client_id = ? ORDER BY created_at DESC`, clientID)
}

func (r *InvoiceRepository) ListByStatus(status models.InvoiceStatus) ([]*models.Invoice, error) {
	return r.list(`SELECT `+invoiceColumns+` FROM invoices WHERE status = ? ORDER BY due_date`, status)
}

// ListOpen returns every invoice that still needs lifecycle attention,
// pending and overdue alike, oldest due date first.
func (r *InvoiceRepository) ListOpen() ([]*models.Invoice, error) {
	return r.list(`SELECT `+invoiceColumns+` FROM invoices WHERE status IN ('pending', 'overdue') ORDER BY due_date`)
}

func (r *InvoiceRepository) list(query string, args ...interface{}) ([]*models.Invoice, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// SetStatus applies a guarded status write: the row must still be in
// fromStatus or nothing changes and ErrConflict is returned. Lifecycle
// legality is checked by the caller through the model transition
// functions before this point.
func (r *InvoiceRepository) SetStatus(id string, fromStatus, toStatus models.InvoiceStatus, paidDate *time.Time) error {
	var paid interface{}
	if paidDate != nil {
		paid = formatDate(*paidDate)
	}
	res, err := r.db.Exec(`
		UPDATE invoices SET status = ?, paid_date = COALESCE(?, paid_date), updated_at = ?
		WHERE id = ? AND status = ?
	`, toStatus, paid, time.Now().Unix(), id, fromStatus)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("invoice %s no longer in status %s: %w", id, fromStatus, ErrConflict)
	}
	return nil
}
