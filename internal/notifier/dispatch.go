package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	maxAttempts = 3
	sendLimit   = 8
)

// Check polls the queue every interval and hands each non-empty batch of due
// notifications to out. It returns when ctx ends.
func Check(ctx context.Context, q *Queue, interval time.Duration, out chan<- []Notification) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := q.Due(ctx, now)
			if err != nil {
				log.WithError(err).Error("checking notification queue")
				continue
			}
			if len(due) == 0 {
				continue
			}
			select {
			case out <- due:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Dispatcher sends due notifications and takes them off the queue.
type Dispatcher struct {
	queue    *Queue
	notifier Notifier
	retryIn  time.Duration
	now      func() time.Time
}

func NewDispatcher(q *Queue, n Notifier, retryIn time.Duration) *Dispatcher {
	return &Dispatcher{queue: q, notifier: n, retryIn: retryIn, now: time.Now}
}

// DispatchDue delivers everything due now.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := d.queue.Due(ctx, d.now())
	if err != nil {
		return 0, err
	}
	return d.Deliver(ctx, due)
}

// Deliver sends a batch concurrently. Each entry is claimed before it is
// sent, so overlapping polls never send it twice. Failed entries are requeued
// after retryIn until they have failed maxAttempts times.
func (d *Dispatcher) Deliver(ctx context.Context, batch []Notification) (int, error) {
	var (
		mu     sync.Mutex
		sent   int
		failed []Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sendLimit)

	for _, n := range batch {
		n := n
		g.Go(func() error {
			claimed, err := d.queue.Claim(gctx, n)
			if err != nil {
				return err
			}
			if !claimed {
				return nil
			}

			if err := d.notifier.Send(gctx, n.Recipient, n.Text); err != nil {
				log.WithFields(log.Fields{
					"notification": n.ID,
					"recipient":    n.Recipient,
					"attempt":      n.Attempts + 1,
				}).WithError(err).Error("failed to send notification")
				mu.Lock()
				failed = append(failed, n)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			sent++
			mu.Unlock()
			return nil
		})
	}
	errs := []error{g.Wait()}

	for _, n := range failed {
		n.Attempts++
		if n.Attempts >= maxAttempts {
			log.WithField("notification", n.ID).Warn("dropping notification after repeated failures")
			continue
		}
		n.DueAt = d.now().Add(d.retryIn)
		if _, err := d.queue.Enqueue(ctx, n); err != nil {
			log.WithField("notification", n.ID).WithError(err).Error("failed to requeue notification")
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}
