package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/models"
	"gorm.io/gorm"
)

const LogRetention = 30 * 24 * time.Hour

// PurgeOldLogs deletes system_logs older than the retention window.
func PurgeOldLogs(db *gorm.DB, now time.Time) (int64, error) {
	cutoff := now.Add(-LogRetention)
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
