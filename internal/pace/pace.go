package pace

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"mapleads/internal/logger"
)

// Sentinel errors forming the crawler's failure taxonomy. Components wrap
// these so classification does not depend on library error strings alone.
var (
	// ErrNavigationTimeout means a page or element wait exceeded its bound.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrSessionFatal means the browser session itself is unusable.
	ErrSessionFatal = errors.New("session fatal")
)

// Action tells the run loop what to do with a failed task attempt.
type Action int

const (
	// ActionRetry: pause briefly, then retry the same task.
	ActionRetry Action = iota
	// ActionCooldown: suspected soft ban; take an extended cooldown, then retry.
	ActionCooldown
	// ActionGiveUp: retries exhausted; mark the task completed with whatever
	// it yielded rather than looping forever on a broken query.
	ActionGiveUp
	// ActionAbort: the session is gone; stop the whole run after a flush.
	ActionAbort
)

// softBanWindow is how far back repeated timeouts count toward the
// soft-ban heuristic.
const softBanWindow = 5 * time.Minute

// Controller owns inter-action pacing, retry classification and the
// soft-ban cooldown escalation.
type Controller struct {
	log        *logger.Logger
	min        time.Duration
	max        time.Duration
	cooldown   time.Duration
	maxRetries int
	retryPause time.Duration

	mu             sync.Mutex
	recentTimeouts []time.Time
	softBans       int
}

func New(min, max, cooldown time.Duration, maxRetries int) *Controller {
	if max < min {
		max = min
	}
	return &Controller{
		log:        logger.New("Pace"),
		min:        min,
		max:        max,
		cooldown:   cooldown,
		maxRetries: maxRetries,
		retryPause: 10 * time.Second,
	}
}

// Delay picks the next pacing duration: uniform random in
// [min*multiplier, max*multiplier].
func (c *Controller) Delay(multiplier float64) time.Duration {
	lo := time.Duration(float64(c.min) * multiplier)
	hi := time.Duration(float64(c.max) * multiplier)
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

// Pace sleeps for a randomized duration, scaled by multiplier. Returns early
// with the context's error on cancellation.
func (c *Controller) Pace(ctx context.Context, multiplier float64) error {
	return sleep(ctx, c.Delay(multiplier))
}

// Cooldown sleeps the extended soft-ban pause and counts the event.
func (c *Controller) Cooldown(ctx context.Context) error {
	c.mu.Lock()
	c.softBans++
	c.mu.Unlock()
	c.log.LogWarnf("suspected soft ban, cooling down for %s", c.cooldown)
	return sleep(ctx, c.cooldown)
}

// Bound ties the controller to a context so layers that pause between DOM
// interactions do not have to thread one through every call.
type Bound struct {
	c   *Controller
	ctx context.Context
}

func (c *Controller) Bind(ctx context.Context) *Bound {
	return &Bound{c: c, ctx: ctx}
}

func (b *Bound) Pace(multiplier float64) {
	_ = b.c.Pace(b.ctx, multiplier)
}

// RetryPause is the short fixed pause between retries of the same task.
func (c *Controller) RetryPause(ctx context.Context) error {
	return sleep(ctx, c.retryPause)
}

// MaxRetries is the per-task retry budget.
func (c *Controller) MaxRetries() int { return c.maxRetries }

// SoftBanCount reports how many cooldowns this run has taken.
func (c *Controller) SoftBanCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.softBans
}

// OnFailure classifies a task failure. attempt is 1-based.
func (c *Controller) OnFailure(err error, attempt int) Action {
	if err == nil {
		return ActionGiveUp
	}
	if errors.Is(err, ErrSessionFatal) {
		return ActionAbort
	}
	if attempt >= c.maxRetries {
		return ActionGiveUp
	}
	if isTimeoutClass(err) && c.noteTimeout() {
		return ActionCooldown
	}
	return ActionRetry
}

// noteTimeout records a timeout-class failure and reports whether the recent
// window now looks like rate limiting: more than one timeout close together
// is treated as a soft ban rather than a flaky page.
func (c *Controller) noteTimeout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	kept := c.recentTimeouts[:0]
	for _, t := range c.recentTimeouts {
		if now.Sub(t) <= softBanWindow {
			kept = append(kept, t)
		}
	}
	c.recentTimeouts = append(kept, now)
	return len(c.recentTimeouts) >= 2
}

// isTimeoutClass matches both our sentinel and the message shapes the
// browser driver produces for waits that never resolved.
func isTimeoutClass(err error) bool {
	if errors.Is(err, ErrNavigationTimeout) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "visible")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
