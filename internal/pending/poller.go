// Package pending watches a submitted payment until the backend grants access.
package pending

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
)

const DefaultInterval = 5 * time.Second

// CheckFunc reports whether access has been granted.
type CheckFunc func(ctx context.Context) (bool, error)

type AccessAPI interface {
	CheckAccess(ctx context.Context, token string) (*backend.AccessResponse, error)
}

// AccessCheck polls the same access endpoint the gate uses.
func AccessCheck(api AccessAPI, token string) CheckFunc {
	return func(ctx context.Context) (bool, error) {
		resp, err := api.CheckAccess(ctx, token)
		if err != nil {
			return false, err
		}
		return resp.HasAccess, nil
	}
}

type Poller struct {
	Interval  time.Duration
	Check     CheckFunc
	OnGranted func()
	Logger    *slog.Logger
}

// Run checks once per interval until access is granted or ctx ends. On grant
// it calls OnGranted once and returns nil. Checks never overlap, and each one
// is cut off after one interval.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !p.tick(ctx, interval, logger) {
				continue
			}
			if p.OnGranted != nil {
				p.OnGranted()
			}
			return nil
		}
	}
}

func (p *Poller) tick(ctx context.Context, interval time.Duration, logger *slog.Logger) bool {
	checkCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	granted, err := p.Check(checkCtx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Debug("pending access check failed", "error", err)
		}
		return false
	}
	return granted
}
