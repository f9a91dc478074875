// Package jobs holds the portal's periodic maintenance work.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/logging"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/sessionstore"
)

const jobTimeout = time.Minute

type Jobs struct {
	store       sessionstore.Store
	db          *gorm.DB
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewJobs wires the jobs. db may be nil when sessions live in memory, in
// which case there are no stored logs to clean up.
func NewJobs(store sessionstore.Store, db *gorm.DB, idleTimeout time.Duration, logger *slog.Logger) *Jobs {
	return &Jobs{
		store:       store,
		db:          db,
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// PurgeIdleSessions drops every session not seen within the idle timeout.
func (j *Jobs) PurgeIdleSessions() {
	if j.idleTimeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	before := j.now().Add(-j.idleTimeout)
	n, err := j.store.PurgeIdle(ctx, before)
	if err != nil {
		j.logger.Error("idle session purge failed", "action", "purge_idle_sessions", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("idle sessions purged", "entries", n, "before", before)
	}
}

// CleanupLogs applies the system log retention window.
func (j *Jobs) CleanupLogs() {
	if j.db == nil {
		return
	}
	if _, err := logging.PurgeOldLogs(j.db, j.now()); err != nil {
		j.logger.Error("log cleanup failed", "action", "cleanup_logs", "error", err)
	}
}
