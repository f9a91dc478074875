package sessionstore

import (
	"context"
	"time"
)

// Store persists raw JSON values per browser session.
type Store interface {
	Get(ctx context.Context, sessionID string, key Key) ([]byte, bool, error)
	Set(ctx context.Context, sessionID string, key Key, value []byte) error
	Delete(ctx context.Context, sessionID string, keys ...Key) error
	// Keys lists the stored keys of a session, excluding its last-seen mark.
	Keys(ctx context.Context, sessionID string) ([]Key, error)
	ClearNamespace(ctx context.Context, sessionID string, ns Namespace) error
	// ClearAll removes every entry of a session, last-seen mark included.
	ClearAll(ctx context.Context, sessionID string) error
	Touch(ctx context.Context, sessionID string, at time.Time) error
	LastSeen(ctx context.Context, sessionID string) (time.Time, bool, error)
	// PurgeIdle removes every session last seen before the cutoff.
	PurgeIdle(ctx context.Context, before time.Time) (int64, error)
}
