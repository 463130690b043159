package audit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Entry is one recorded status transition. The trail is append-only.
type Entry struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
	Note       string `json:"note,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

type Trail struct {
	db *sql.DB
}

func NewTrail(db *sql.DB) *Trail {
	return &Trail{db: db}
}

// RecordTransition writes one audit row. A failed write is logged and
// swallowed; the state change it describes has already happened.
func (t *Trail) RecordTransition(entityType, entityID, fromStatus, toStatus, actor, note string) {
	entry := &Entry{
		ID:         "audit_" + uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Actor:      actor,
		Note:       note,
		CreatedAt:  time.Now().Unix(),
	}

	_, err := t.db.Exec(`
		INSERT INTO audit_log (id, entity_type, entity_id, from_status, to_status, actor, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.EntityType, entry.EntityID, entry.FromStatus, entry.ToStatus,
		entry.Actor, entry.Note, entry.CreatedAt)
	if err != nil {
		log.Error().Err(err).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("failed to write audit entry")
	}
}

func (t *Trail) ListByEntity(entityType, entityID string, limit int) ([]*Entry, error) {
	return t.list(`
		SELECT id, entity_type, entity_id, from_status, to_status, actor, note, created_at
		FROM audit_log WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, entityType, entityID, limit)
}

func (t *Trail) ListRecent(limit int) ([]*Entry, error) {
	return t.list(`
		SELECT id, entity_type, entity_id, from_status, to_status, actor, note, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT ?
	`, limit)
}

func (t *Trail) list(query string, args ...interface{}) ([]*Entry, error) {
	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.FromStatus, &e.ToStatus,
			&e.Actor, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
