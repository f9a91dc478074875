package pending

import (
	"fmt"
	"time"
)

// FormatElapsed renders d as MM:SS. Minutes keep counting past 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Clock counts up from a fixed submission time.
type Clock struct {
	Since time.Time
	Now   func() time.Time
}

func NewClock(since time.Time) *Clock {
	return &Clock{Since: since, Now: time.Now}
}

func (c *Clock) Elapsed() time.Duration {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().Sub(c.Since)
}

func (c *Clock) String() string {
	return FormatElapsed(c.Elapsed())
}
