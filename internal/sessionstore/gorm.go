package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists session entries in the session_entries table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, sessionID string, key Key) ([]byte, bool, error) {
	var entry models.SessionEntry
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND entry_key = ?", sessionID, string(key)).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session entry %s: %w", key, err)
	}
	return []byte(entry.Value), true, nil
}

func (s *GormStore) Set(ctx context.Context, sessionID string, key Key, value []byte) error {
	return s.upsert(ctx, sessionID, key, value, time.Now())
}

func (s *GormStore) upsert(ctx context.Context, sessionID string, key Key, value []byte, at time.Time) error {
	entry := models.SessionEntry{
		SessionID: sessionID,
		Key:       string(key),
		Value:     datatypes.JSON(value),
		UpdatedAt: at,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set session entry %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, sessionID string, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND entry_key IN ?", sessionID, names).
		Delete(&models.SessionEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete session entries: %w", err)
	}
	return nil
}

func (s *GormStore) Keys(ctx context.Context, sessionID string) ([]Key, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.SessionEntry{}).
		Where("session_id = ? AND entry_key <> ?", sessionID, string(KeyLastSeen)).
		Pluck("entry_key", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list session keys: %w", err)
	}
	keys := make([]Key, len(names))
	for i, n := range names {
		keys[i] = Key(n)
	}
	return keys, nil
}

func (s *GormStore) ClearNamespace(ctx context.Context, sessionID string, ns Namespace) error {
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND entry_key LIKE ?", sessionID, namespacePrefix(ns)+"%").
		Delete(&models.SessionEntry{}).Error
	if err != nil {
		return fmt.Errorf("clear %s namespace: %w", ns, err)
	}
	return nil
}

func (s *GormStore) ClearAll(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.SessionEntry{}).Error
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *GormStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	value, err := json.Marshal(at.UTC())
	if err != nil {
		return err
	}
	return s.upsert(ctx, sessionID, KeyLastSeen, value, at)
}

func (s *GormStore) LastSeen(ctx context.Context, sessionID string) (time.Time, bool, error) {
	raw, ok, err := s.Get(ctx, sessionID, KeyLastSeen)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	var at time.Time
	if err := json.Unmarshal(raw, &at); err != nil {
		return time.Time{}, false, fmt.Errorf("decode last seen: %w", err)
	}
	return at, true, nil
}

func (s *GormStore) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	idle := s.db.Model(&models.SessionEntry{}).
		Select("session_id").
		Where("entry_key = ? AND updated_at < ?", string(KeyLastSeen), before)

	result := s.db.WithContext(ctx).
		Where("session_id IN (?)", idle).
		Delete(&models.SessionEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
