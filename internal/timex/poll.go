package timex

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned by Poll when the deadline passes without the
// attempt function reporting completion.
var ErrDeadline = errors.New("poll deadline reached")

// Poller repeats an attempt every Interval until the attempt reports done,
// returns an error, or the wall-clock Deadline passes. Interval may be
// raised between attempts with Slow.
type Poller struct {
	Clock    Clock
	Interval time.Duration
	Deadline time.Time
}

// Slow raises the interval used for the following waits.
func (p *Poller) Slow(by time.Duration) {
	p.Interval += by
}

// Poll sleeps for the current interval, then calls attempt, until attempt
// returns done or an error. The wait is cut short at the deadline and the
// deadline is checked again after it, so an attempt never starts once the
// deadline has passed.
func (p *Poller) Poll(ctx context.Context, attempt func(ctx context.Context) (bool, error)) error {
	clock := Or(p.Clock)

	for {
		left := p.Deadline.Sub(clock.Now())
		if left <= 0 {
			return ErrDeadline
		}
		if err := clock.Sleep(ctx, min(p.Interval, left)); err != nil {
			return err
		}
		if !clock.Now().Before(p.Deadline) {
			return ErrDeadline
		}

		done, err := attempt(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
