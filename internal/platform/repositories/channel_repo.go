package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/google/uuid"
)

type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) Create(ch *models.NotificationChannel) error {
	if ch.ID == "" {
		ch.ID = "ch_" + uuid.New().String()
	}
	now := time.Now().Unix()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	if ch.Status == "" {
		ch.Status = "active"
	}

	eventsJSON, err := json.Marshal(ch.Events)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO notification_channels (id, name, url, events, secret, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ch.ID, ch.Name, ch.URL, string(eventsJSON), ch.Secret, ch.Status, ch.CreatedAt, ch.UpdatedAt)
	return wrapConflict(err)
}

func (r *ChannelRepository) scanChannel(row interface{ Scan(...interface{}) error }) (*models.NotificationChannel, error) {
	ch := &models.NotificationChannel{}
	var eventsStr string
	var lastError sql.NullString
	err := row.Scan(&ch.ID, &ch.Name, &ch.URL, &eventsStr, &ch.Secret, &ch.Status,
		&ch.LastTriggeredAt, &lastError, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastError.Valid {
		ch.LastError = lastError.String
	}
	json.Unmarshal([]byte(eventsStr), &ch.Events)
	return ch, nil
}

const channelColumns = `id, name, url, events, secret, status, last_triggered_at, last_error, created_at, updated_at`

func (r *ChannelRepository) GetByID(id string) (*models.NotificationChannel, error) {
	ch, err := r.scanChannel(r.db.QueryRow(`SELECT `+channelColumns+` FROM notification_channels WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ch, err
}

func (r *ChannelRepository) List() ([]*models.NotificationChannel, error) {
	return r.list(`SELECT ` + channelColumns + ` FROM notification_channels ORDER BY created_at DESC`)
}

// ListActiveForEvent returns active channels subscribed to eventType.
// A channel with no event filter receives everything.
func (r *ChannelRepository) ListActiveForEvent(eventType string) ([]*models.NotificationChannel, error) {
	channels, err := r.list(`SELECT ` + channelColumns + ` FROM notification_channels WHERE status = 'active'`)
	if err != nil {
		return nil, err
	}

	var matched []*models.NotificationChannel
	for _, ch := range channels {
		if len(ch.Events) == 0 {
			matched = append(matched, ch)
			continue
		}
		for _, e := range ch.Events {
			if e == eventType {
				matched = append(matched, ch)
				break
			}
		}
	}
	return matched, nil
}

func (r *ChannelRepository) list(query string, args ...interface{}) ([]*models.NotificationChannel, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*models.NotificationChannel
	for rows.Next() {
		ch, err := r.scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *ChannelRepository) SetStatus(id, status string) error {
	_, err := r.db.Exec(`UPDATE notification_channels SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id)
	return err
}

func (r *ChannelRepository) RecordDelivery(id string, deliveredAt int64, lastError string) error {
	_, err := r.db.Exec(`UPDATE notification_channels SET last_triggered_at = ?, last_error = ? WHERE id = ?`,
		deliveredAt, lastError, id)
	return err
}

func (r *ChannelRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM notification_channels WHERE id = ?`, id)
	return err
}
