package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evidence-portal/internal/notifier"
	log "github.com/sirupsen/logrus"
)

type App struct {
	portal     *Portal
	queue      *notifier.Queue
	dispatcher *notifier.Dispatcher
	interval   time.Duration
}

func NewApp(portal *Portal, queue *notifier.Queue, dispatcher *notifier.Dispatcher, interval time.Duration) *App {
	return &App{portal: portal, queue: queue, dispatcher: dispatcher, interval: interval}
}

// Run delivers queued notifications until ctx ends or the process gets
// SIGINT/SIGTERM, then waits for in-flight review side effects.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	due := make(chan []notifier.Notification)
	go notifier.Check(ctx, a.queue, a.interval, due)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	log.WithField("interval", a.interval).Info("portal running")
	for {
		select {
		case batch := <-due:
			sent, err := a.dispatcher.Deliver(ctx, batch)
			if err != nil {
				log.WithError(err).Error("delivering notifications")
			}
			log.WithFields(log.Fields{"due": len(batch), "sent": sent}).Debug("notifications delivered")
		case sig := <-quit:
			log.Infof("Received signal: %s. Shutting down...", sig)
			cancel()
			a.portal.Drain()
			return nil
		case <-ctx.Done():
			a.portal.Drain()
			return nil
		}
	}
}
