package repositories

import (
	"database/sql"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/google/uuid"
)

// Dates with day precision are stored as TEXT in YYYY-MM-DD form so
// range scans stay ordinary string comparisons.
func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

func scanDatePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type ClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id, company_name, contact_name, email, phone, status, plan_tier, setup_fee, monthly_fee, billing_cycle, next_billing_date, notes, created_at, updated_at`

func (r *ClientRepository) Create(client *models.Client) error {
	if client.ID == "" {
		client.ID = "cl_" + uuid.New().String()
	}
	now := time.Now().Unix()
	client.CreatedAt = now
	client.UpdatedAt = now
	if client.Status == "" {
		client.Status = models.ClientActive
	}

	var nextBilling interface{}
	if client.NextBillingDate != nil {
		nextBilling = formatDate(*client.NextBillingDate)
	}

	_, err := r.db.Exec(`
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, client.ID, client.CompanyName, client.ContactName, client.Email, client.Phone,
		client.Status, client.PlanTier, client.SetupFee, client.MonthlyFee,
		client.BillingCycle, nextBilling, client.Notes, client.CreatedAt, client.UpdatedAt)
	return wrapConflict(err)
}

func (r *ClientRepository) scanClient(row interface{ Scan(...interface{}) error }) (*models.Client, error) {
	client := &models.Client{}
	var nextBilling sql.NullString
	err := row.Scan(&client.ID, &client.CompanyName, &client.ContactName, &client.Email,
		&client.Phone, &client.Status, &client.PlanTier, &client.SetupFee, &client.MonthlyFee,
		&client.BillingCycle, &nextBilling, &client.Notes, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return nil, err
	}
	client.NextBillingDate, err = scanDatePtr(nextBilling)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *ClientRepository) GetByID(id string) (*models.Client, error) {
	client, err := r.scanClient(r.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return client, err
}

func (r *ClientRepository) GetByEmail(email string) (*models.Client, error) {
	client, err := r.scanClient(r.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return client, err
}

func (r *ClientRepository) List() ([]*models.Client, error) {
	rows, err := r.db.Query(`SELECT ` + clientColumns + ` FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := r.scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *ClientRepository) Update(client *models.Client) error {
	client.UpdatedAt = time.Now().Unix()

	var nextBilling interface{}
	if client.NextBillingDate != nil {
		nextBilling = formatDate(*client.NextBillingDate)
	}

	_, err := r.db.Exec(`
		UPDATE clients
		SET company_name = ?, contact_name = ?, email = ?, phone = ?, plan_tier = ?,
		    setup_fee = ?, monthly_fee = ?, billing_cycle = ?, next_billing_date = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, client.CompanyName, client.ContactName, client.Email, client.Phone, client.PlanTier,
		client.SetupFee, client.MonthlyFee, client.BillingCycle, nextBilling, client.Notes,
		client.UpdatedAt, client.ID)
	return wrapConflict(err)
}

func (r *ClientRepository) SetStatus(id string, status models.ClientStatus) error {
	_, err := r.db.Exec(`UPDATE clients SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id)
	return err
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, role, client_id, last_login_at, created_at, updated_at`

func (r *UserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = "usr_" + uuid.New().String()
	}
	now := time.Now().Unix()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.FullName, user.Role,
		user.ClientID, user.LastLoginAt, user.CreatedAt, user.UpdatedAt)
	return wrapConflict(err)
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role,
			&user.ClientID, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role,
			&user.ClientID, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdateLastLogin(userID string, timestamp int64) error {
	_, err := r.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, timestamp, userID)
	return err
}
