package propagation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_ElapsesAtLeastDelay(t *testing.T) {
	const delay = 60 * time.Millisecond

	start := time.Now()
	require.NoError(t, NewWaiter(nil).Wait(context.Background(), delay))
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

func TestWait_UsesInjectedSleeper(t *testing.T) {
	var slept []time.Duration
	waiter := NewWaiter(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	require.NoError(t, waiter.Wait(context.Background(), 40*time.Second))
	assert.Equal(t, []time.Duration{40 * time.Second}, slept)
}

func TestWait_ZeroDelaySkipsSleeper(t *testing.T) {
	called := false
	waiter := NewWaiter(func(context.Context, time.Duration) error {
		called = true
		return nil
	})

	require.NoError(t, waiter.Wait(context.Background(), 0))
	assert.False(t, called)
}

func TestTimerSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := TimerSleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
