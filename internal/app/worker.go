package app

import (
	"context"
	"sync"
)

// StartWorkers runs background jobs until ctx is cancelled. The returned
// WaitGroup is done once they have all stopped.
func (a *App) StartWorkers(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		// first refresh runs immediately, then on the interval
		a.Rates.Run(ctx, a.cfg.RatesRefreshInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Registry.Run(ctx, a.cfg.ClientSweepInterval)
	}()

	if a.Outbox != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Outbox.Start(ctx)
		}()
	}

	a.logger.Info("workers started")
	return &wg
}
