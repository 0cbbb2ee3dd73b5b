// Package lazyload scrolls a rendered page so deferred content materializes.
package lazyload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
)

// SleepFunc pauses for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// Trigger walks the viewport from the top to the bottom of the page.
type Trigger struct {
	Policy profile.ScrollPolicy
	Logger *log.Logger
	Sleep  SleepFunc
	// Rand drives step jitter. nil uses the global source.
	Rand *rand.Rand
}

// Stats describes one scroll run.
type Stats struct {
	Steps       int
	FinalHeight int
	Grew        int
}

// New returns a Trigger with real-time sleeps.
func New(policy profile.ScrollPolicy, logger *log.Logger) *Trigger {
	if logger == nil {
		logger = log.Default()
	}
	return &Trigger{Policy: policy, Logger: logger, Sleep: Sleep}
}

// Run scrolls in fixed steps, re-reading the scroll height every
// RecheckEvery steps and extending the bound when it grew by at least
// GrowthThreshold. The loop never exceeds MaxSteps, so the total wait is
// bounded by MaxSteps*Pause plus the settle and bounce pauses.
func (t *Trigger) Run(ctx context.Context, sess render.Session) (Stats, error) {
	p := t.Policy
	var st Stats
	if p.Disabled {
		return st, nil
	}
	sleep := t.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	height, err := scrollHeight(ctx, sess)
	if err != nil {
		return st, err
	}

	pos := 0
	for pos < height && st.Steps < p.MaxSteps {
		pos += p.Step + t.jitter()
		if err := sess.Eval(ctx, render.ScrollToScript(pos), nil); err != nil {
			return st, fmt.Errorf("scroll to %d: %w", pos, err)
		}
		st.Steps++
		if err := sleep(ctx, p.Pause); err != nil {
			return st, err
		}

		if st.Steps%p.RecheckEvery != 0 {
			continue
		}
		h, err := scrollHeight(ctx, sess)
		if err != nil {
			return st, err
		}
		if h-height >= p.GrowthThreshold {
			t.logger().Debug("page grew while scrolling", "from", height, "to", h, "step", st.Steps)
			height = h
			st.Grew++
		}
	}
	st.FinalHeight = height

	if err := sess.Eval(ctx, render.ScrollBottomScript, nil); err != nil {
		return st, fmt.Errorf("scroll to bottom: %w", err)
	}
	if err := sleep(ctx, p.Settle); err != nil {
		return st, err
	}
	if p.Bounce > 0 {
		if err := sess.Eval(ctx, render.ScrollByScript(-p.Bounce), nil); err != nil {
			return st, fmt.Errorf("bounce: %w", err)
		}
		if err := sleep(ctx, p.BouncePause); err != nil {
			return st, err
		}
	}

	t.logger().Debug("lazy load finished", "steps", st.Steps, "height", st.FinalHeight)
	return st, nil
}

func (t *Trigger) jitter() int {
	if t.Policy.StepJitter <= 0 {
		return 0
	}
	if t.Rand != nil {
		return t.Rand.IntN(t.Policy.StepJitter + 1)
	}
	return rand.IntN(t.Policy.StepJitter + 1)
}

func (t *Trigger) logger() *log.Logger {
	if t.Logger == nil {
		return log.Default()
	}
	return t.Logger
}

func scrollHeight(ctx context.Context, sess render.Session) (int, error) {
	var h float64
	if err := sess.Eval(ctx, render.ScrollHeightScript, &h); err != nil {
		return 0, fmt.Errorf("read scroll height: %w", err)
	}
	return int(h), nil
}
