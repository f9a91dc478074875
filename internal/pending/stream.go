package pending

import (
	"context"
	"time"
)

const (
	EventElapsed   = "elapsed"
	EventGranted   = "granted"
	EventHeartbeat = "heartbeat"
)

// Event is one update pushed to the pending page.
type Event struct {
	Name string
	Data string
}

// Stream runs poller and emits an event every tick: the elapsed time when
// clock is set, a heartbeat otherwise. Consumers write every event so a gone
// client is noticed within a tick. It emits a single granted event carrying
// location and closes the channel when access is granted or ctx ends.
func Stream(ctx context.Context, poller Poller, clock *Clock, tick time.Duration, location string) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		granted := make(chan struct{})
		onGranted := poller.OnGranted
		poller.OnGranted = func() {
			if onGranted != nil {
				onGranted()
			}
			close(granted)
		}
		go func() { _ = poller.Run(ctx) }()

		send := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if tick <= 0 {
			tick = time.Second
		}
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		next := func() Event {
			if clock != nil {
				return Event{Name: EventElapsed, Data: clock.String()}
			}
			return Event{Name: EventHeartbeat}
		}

		if !send(next()) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-granted:
				send(Event{Name: EventGranted, Data: location})
				return
			case <-ticker.C:
				if !send(next()) {
					return
				}
			}
		}
	}()

	return out
}
