package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dbBatchSize = 50

// DBHandler is an slog.Handler that batches ERROR+ logs into system_logs.
type DBHandler struct {
	db     *gorm.DB
	mu     sync.Mutex
	buffer []models.SystemLog
	attrs  []slog.Attr
	shared *dbFlusher
}

type dbFlusher struct {
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func NewDBHandler(db *gorm.DB) *DBHandler {
	h := &DBHandler{
		db:     db,
		buffer: make([]models.SystemLog, 0, dbBatchSize),
		shared: &dbFlusher{
			ticker: time.NewTicker(5 * time.Second),
			done:   make(chan struct{}),
		},
	}
	go h.flushLoop()
	return h
}

func (h *DBHandler) flushLoop() {
	for {
		select {
		case <-h.shared.ticker.C:
			h.flush()
		case <-h.shared.done:
			h.flush()
			return
		}
	}
}

func (h *DBHandler) flush() {
	h.mu.Lock()
	if len(h.buffer) == 0 {
		h.mu.Unlock()
		return
	}
	batch := h.buffer
	h.buffer = make([]models.SystemLog, 0, dbBatchSize)
	h.mu.Unlock()

	if err := h.db.CreateInBatches(batch, dbBatchSize).Error; err != nil {
		slog.Warn("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

func (h *DBHandler) Stop() {
	h.shared.stopOnce.Do(func() {
		h.shared.ticker.Stop()
		close(h.shared.done)
	})
}

// Enabled only handles ERROR and above.
func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *DBHandler) Handle(_ context.Context, record slog.Record) error {
	entry := newSystemLog(record, h.attrs)

	h.mu.Lock()
	h.buffer = append(h.buffer, entry)
	needFlush := len(h.buffer) >= dbBatchSize
	h.mu.Unlock()

	if needFlush {
		go h.flush()
	}
	return nil
}

// WithAttrs returns a handler sharing this handler's buffer, so request-scoped
// loggers (slog.With("session_id", ...)) still land in the same batch.
func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dbAttrHandler{parent: h, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *DBHandler) WithGroup(string) slog.Handler {
	return h
}

type dbAttrHandler struct {
	parent *DBHandler
	attrs  []slog.Attr
}

func (a *dbAttrHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return a.parent.Enabled(ctx, level)
}

func (a *dbAttrHandler) Handle(_ context.Context, record slog.Record) error {
	entry := newSystemLog(record, a.attrs)
	p := a.parent
	p.mu.Lock()
	p.buffer = append(p.buffer, entry)
	needFlush := len(p.buffer) >= dbBatchSize
	p.mu.Unlock()
	if needFlush {
		go p.flush()
	}
	return nil
}

func (a *dbAttrHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dbAttrHandler{parent: a.parent, attrs: append(append([]slog.Attr{}, a.attrs...), attrs...)}
}

func (a *dbAttrHandler) WithGroup(string) slog.Handler {
	return a
}

func newSystemLog(record slog.Record, preset []slog.Attr) models.SystemLog {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "":
		case "session_id":
			entry.SessionID = a.Value.String()
		case "request_id":
			entry.RequestID = a.Value.String()
		case "principal":
			if s := a.Value.String(); s != "" {
				entry.Principal = &s
			}
		case "path":
			entry.Path = a.Value.String()
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		case "latency_ms":
			switch v := a.Value.Any().(type) {
			case float64:
				entry.LatencyMs = int(math.Round(v))
			case int64:
				entry.LatencyMs = int(v)
			}
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range preset {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}
	return entry
}
