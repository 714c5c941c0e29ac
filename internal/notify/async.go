package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// DefaultSendTimeout bounds a single background delivery.
const DefaultSendTimeout = 10 * time.Second

// Async hands each message to a goroutine and returns at once. Errors are
// logged as warnings and otherwise dropped.
type Async struct {
	next    Notifier
	logger  logging.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func NewAsync(next Notifier, logger logging.Logger) *Async {
	if next == nil {
		next = Nop()
	}
	return &Async{next: next, logger: logging.Or(logger), timeout: DefaultSendTimeout}
}

// Notify never blocks on delivery and always returns nil.
func (a *Async) Notify(ctx context.Context, msg Message) error {
	// delivery outlives the caller's cancellation, bounded by timeout
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()

		if err := a.next.Notify(sendCtx, msg); err != nil {
			a.logger.Warn(sendCtx, "notification not delivered", "title", msg.Title, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched message finished or ctx is done.
// It reports whether all deliveries completed.
func (a *Async) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
