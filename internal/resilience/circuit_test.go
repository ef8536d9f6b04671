package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/resilience"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	breaker := resilience.NewBreaker(2, 0.5, 50*time.Millisecond)

	for i := 0; i < 2; i++ {
		require.True(t, breaker.Allow(ctx))
		breaker.Report(ctx, false)
	}
	require.False(t, breaker.Allow(ctx), "breaker should open once the failure ratio is hit")

	time.Sleep(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "breaker should admit a probe after cool-off")

	breaker.Report(ctx, true)
	require.True(t, breaker.Allow(ctx), "successful probe should close the breaker")
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	breaker := resilience.NewBreaker(1, 0.5, 30*time.Millisecond)

	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx))

	time.Sleep(40 * time.Millisecond)
	require.True(t, breaker.Allow(ctx))

	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx), "failed probe should reopen the breaker")
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond

	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	// 20% jitter keeps the delay within one fifth of the nominal value.
	nominal := base * 2
	got := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, got, nominal-nominal/5)
	require.LessOrEqual(t, got, nominal+nominal/5)
}
