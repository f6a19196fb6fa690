package pace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayBounds(t *testing.T) {
	c := New(5*time.Second, 15*time.Second, time.Minute, 3)

	for i := 0; i < 100; i++ {
		d := c.Delay(1.0)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 15*time.Second)
	}

	// The multiplier scales both bounds.
	for i := 0; i < 100; i++ {
		d := c.Delay(0.5)
		assert.GreaterOrEqual(t, d, 2500*time.Millisecond)
		assert.LessOrEqual(t, d, 7500*time.Millisecond)
	}
}

func TestDelayDegenerateRange(t *testing.T) {
	c := New(3*time.Second, 3*time.Second, time.Minute, 3)
	assert.Equal(t, 3*time.Second, c.Delay(1.0))
}

func TestOnFailureFatalAborts(t *testing.T) {
	c := New(0, 0, time.Minute, 3)
	err := fmt.Errorf("browser gone: %w", ErrSessionFatal)
	assert.Equal(t, ActionAbort, c.OnFailure(err, 1))
}

func TestOnFailureRetriesExhausted(t *testing.T) {
	c := New(0, 0, time.Minute, 3)
	err := errors.New("some transient problem")
	assert.Equal(t, ActionRetry, c.OnFailure(err, 1))
	assert.Equal(t, ActionRetry, c.OnFailure(err, 2))
	assert.Equal(t, ActionGiveUp, c.OnFailure(err, 3))
}

func TestOnFailureRepeatedTimeoutsCooldown(t *testing.T) {
	c := New(0, 0, time.Minute, 5)
	err := fmt.Errorf("feed wait: %w", ErrNavigationTimeout)

	// A single timeout is a flaky page, not a ban.
	assert.Equal(t, ActionRetry, c.OnFailure(err, 1))
	// A second one inside the window looks like rate limiting.
	assert.Equal(t, ActionCooldown, c.OnFailure(err, 2))
}

func TestOnFailureTimeoutByMessage(t *testing.T) {
	c := New(0, 0, time.Minute, 5)
	err := errors.New("locator not found after 30000ms")
	assert.Equal(t, ActionRetry, c.OnFailure(err, 1))
	assert.Equal(t, ActionCooldown, c.OnFailure(err, 2))
}

func TestCooldownCountsSoftBans(t *testing.T) {
	c := New(0, 0, time.Millisecond, 3)
	assert.Equal(t, 0, c.SoftBanCount())
	assert.NoError(t, c.Cooldown(context.Background()))
	assert.Equal(t, 1, c.SoftBanCount())
}

func TestPaceRespectsCancellation(t *testing.T) {
	c := New(time.Hour, time.Hour, time.Minute, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Pace(ctx, 1.0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBoundPacerIgnoresCancellationErrors(t *testing.T) {
	c := New(time.Millisecond, 2*time.Millisecond, time.Minute, 3)
	b := c.Bind(context.Background())
	// Just exercises the no-error path; Bound swallows the return.
	b.Pace(1.0)
}
