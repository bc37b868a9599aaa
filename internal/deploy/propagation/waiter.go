package propagation

import (
	"context"
	"log/slog"
	"time"

	"github.com/compose-network/crossdeploy/internal/logger"
)

type (
	// Sleeper blocks for d or until ctx is done.
	Sleeper func(ctx context.Context, d time.Duration) error

	// Waiter holds the run until explorer indexers have seen the new contract
	Waiter struct {
		sleep  Sleeper
		logger *slog.Logger
	}
)

// NewWaiter returns a waiter backed by sleep, or by a wall-clock timer when
// sleep is nil.
func NewWaiter(sleep Sleeper) *Waiter {
	if sleep == nil {
		sleep = TimerSleep
	}
	return &Waiter{
		sleep:  sleep,
		logger: logger.Named("propagation_waiter"),
	}
}

func (w *Waiter) Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	w.logger.With("delay", delay.String()).Info("waiting for explorer to index the contract")

	if err := w.sleep(ctx, delay); err != nil {
		return err
	}

	w.logger.Info("propagation delay elapsed")
	return nil
}

func TimerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
