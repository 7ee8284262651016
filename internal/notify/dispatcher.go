// Package notify delivers member notifications without blocking the caller.
package notify

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultTimeout = 5 * time.Second

// Publisher pushes a stored notification to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// Dispatcher persists notifications to the inbox and optionally publishes them.
// Delivery runs in the background; failures are logged and never reach the caller.
type Dispatcher struct {
	store     repository.NotificationRepository
	publisher Publisher
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. publisher may be nil.
func NewDispatcher(store repository.NotificationRepository, publisher Publisher, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{store: store, publisher: publisher, timeout: timeout}
}

// Notify queues a message for memberID and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, memberID primitive.ObjectID, severity domain.Severity, message string) {
	n := domain.Notification{
		MemberID:  memberID,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	// Detach from the request so delivery survives the response being written.
	deliverCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("ERROR: notification delivery panicked for member %s: %v", memberID.Hex(), r)
			}
		}()
		d.deliver(deliverCtx, n)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if _, err := d.store.Create(ctx, &n); err != nil {
		log.Printf("WARN: Failed to store %s notification for member %s: %v", n.Severity, n.MemberID.Hex(), err)
		return
	}

	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, n); err != nil {
		log.Printf("WARN: Failed to publish notification %s: %v", n.ID.Hex(), err)
	}
}

// Wait blocks until every queued notification has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
