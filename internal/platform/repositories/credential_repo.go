package repositories

import (
	"database/sql"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/google/uuid"
)

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `id, client_id, service_name, credential_type, encrypted_data, status, last_verified_at, created_at, updated_at`

func (r *CredentialRepository) Create(cred *models.Credential) error {
	if cred.ID == "" {
		cred.ID = "cred_" + uuid.New().String()
	}
	now := time.Now().Unix()
	cred.CreatedAt = now
	cred.UpdatedAt = now
	if cred.Status == "" {
		cred.Status = models.CredentialActive
	}

	_, err := r.db.Exec(`
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cred.ID, cred.ClientID, cred.ServiceName, cred.CredentialType, cred.EncryptedData,
		cred.Status, cred.LastVerifiedAt, cred.CreatedAt, cred.UpdatedAt)
	return wrapConflict(err)
}

func (r *CredentialRepository) scanCredential(row interface{ Scan(...interface{}) error }) (*models.Credential, error) {
	cred := &models.Credential{}
	err := row.Scan(&cred.ID, &cred.ClientID, &cred.ServiceName, &cred.CredentialType,
		&cred.EncryptedData, &cred.Status, &cred.LastVerifiedAt, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func (r *CredentialRepository) GetByID(id string) (*models.Credential, error) {
	cred, err := r.scanCredential(r.db.QueryRow(`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cred, err
}

// GetActiveByClientService returns the client's usable credential for
// one upstream service, or nil when the client has none.
func (r *CredentialRepository) GetActiveByClientService(clientID, serviceName string) (*models.Credential, error) {
	cred, err := r.scanCredential(r.db.QueryRow(`
		SELECT `+credentialColumns+` FROM credentials
		WHERE client_id = ? AND service_name = ? AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, clientID, serviceName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cred, err
}

func (r *CredentialRepository) ListByClient(clientID string) ([]*models.Credential, error) {
	rows, err := r.db.Query(`SELECT `+credentialColumns+` FROM credentials WHERE client_id = ? ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func (r *CredentialRepository) SetStatus(id string, status models.CredentialStatus) error {
	_, err := r.db.Exec(`UPDATE credentials SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id)
	return err
}

func (r *CredentialRepository) UpdateLastVerified(id string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`UPDATE credentials SET last_verified_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	return err
}

func (r *CredentialRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM credentials WHERE id = ?`, id)
	return err
}
