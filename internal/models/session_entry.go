package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionEntry is one persisted key of a browser session. The portal keeps
// here what the admin SPA used to keep in the browser's local storage.
type SessionEntry struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SessionID string         `gorm:"type:uuid;not null;uniqueIndex:idx_session_entries_session_key,priority:1" json:"session_id"`
	Key       string         `gorm:"column:entry_key;size:64;not null;uniqueIndex:idx_session_entries_session_key,priority:2;index" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null" json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
}
