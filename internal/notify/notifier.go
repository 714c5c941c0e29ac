// Package notify delivers best-effort operator messages to a webhook.
// Nothing waits for an acknowledgement and delivery failures never stop
// the entrypoint.
package notify

import (
	"context"
	"sync"
)

// Embed colors.
const (
	ColorInfo    = 0x3498DB
	ColorSuccess = 0x2ECC71
	ColorFailure = 0xE74C3C
)

// Message is one operator notification.
type Message struct {
	Title       string
	Description string
	Color       int
	URL         string
}

// Notifier sends a message. Implementations may block on the network;
// callers that must not block wrap them in Async.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type nop struct{}

// Nop returns a Notifier that drops every message.
func Nop() Notifier { return nop{} }

func (nop) Notify(context.Context, Message) error { return nil }

// Recorder keeps every message it receives. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.Err
}

// Messages returns a copy of what was received so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}
