// Package task contains the periodic loops: temperature control, pressure
// control, input scan and safety monitor. Each loop owns its hardware and
// controllers outright and communicates only through the state store, so a
// stalled loop can never block another.
package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ticker is one periodic loop body. Tick is called from a single goroutine.
type Ticker interface {
	Name() string
	Period() time.Duration
	Tick(now time.Time)
}

// Run drives a Ticker until the context is cancelled.
func Run(ctx context.Context, t Ticker, log *zap.Logger) error {
	log.Info("loop started", zap.String("loop", t.Name()), zap.Duration("period", t.Period()))
	tick := time.NewTicker(t.Period())
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("loop stopped", zap.String("loop", t.Name()))
			return nil
		case now := <-tick.C:
			t.Tick(now)
		}
	}
}

// Group supervises a set of loops. If any loop returns an error the whole
// group's context is cancelled.
func Group(ctx context.Context, log *zap.Logger, tickers ...Ticker) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tickers {
		t := t
		g.Go(func() error {
			return Run(ctx, t, log)
		})
	}
	return g.Wait()
}
