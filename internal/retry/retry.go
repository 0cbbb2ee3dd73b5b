// Package retry runs one page fetch as a bounded series of attempts.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/harvest/internal/block"
	"github.com/go-scripts/harvest/internal/extract"
	"github.com/go-scripts/harvest/internal/lazyload"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/types"
)

// Fetcher fetches and extracts pages for one site.
type Fetcher struct {
	Profile  *profile.SiteProfile
	Trigger  *lazyload.Trigger
	Detector block.Detector
	Pipeline *extract.Pipeline
	Logger   *log.Logger
	Sleep    lazyload.SleepFunc
	// Rand drives backoff jitter. nil uses the global source.
	Rand *rand.Rand
}

// New wires a Fetcher from a profile with real-time sleeps.
func New(p *profile.SiteProfile, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{
		Profile:  p,
		Trigger:  lazyload.New(p.Scroll, logger),
		Detector: block.New(p.Block),
		Pipeline: extract.New(p),
		Logger:   logger,
		Sleep:    lazyload.Sleep,
	}
}

// Fetch runs up to Profile.Retry.Attempts attempts for page:
//   - the first attempt navigates, later ones wait a random backoff and
//     reload; pages reached by interaction are re-read without reloading
//   - a blocked page returns at once with Blocked set
//   - running out of attempts without cards returns with Exhausted set
//
// Errors are reserved for session failures and ctx cancellation between
// attempts.
func (f *Fetcher) Fetch(ctx context.Context, sess render.Session, page types.PageRef) (types.PageResult, error) {
	res := types.PageResult{Page: page}
	attempts := f.Profile.Retry.Attempts
	logger := f.Logger.With("page", page.Index)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if attempt == 1 {
			if !page.Interactive() {
				if err := sess.Navigate(ctx, page.URL); err != nil {
					return res, err
				}
			}
		} else {
			delay := f.Backoff()
			logger.Debug("Backing off before retry", "attempt", attempt, "delay", delay)
			if err := f.sleep(ctx, delay); err != nil {
				return res, err
			}
			if !page.Interactive() {
				if err := sess.Reload(ctx); err != nil {
					return res, err
				}
			}
		}
		res.Attempts = attempt

		out, err := f.attempt(ctx, sess, page)
		if err != nil {
			return res, err
		}
		res.Transient += out.Transient

		if out.Blocked {
			res.Blocked, res.Signature = true, out.Signature
			res.Records, res.CardCount = nil, 0
			logger.Warn("page blocked", "signature", out.Signature, "attempt", attempt)
			return res, nil
		}
		if out.CardCount > 0 {
			res.Records, res.CardCount = out.Records, out.CardCount
			return res, nil
		}
		logger.Info("no cards on page", "attempt", attempt, "of", attempts)
	}

	res.Exhausted = true
	return res, nil
}

func (f *Fetcher) attempt(ctx context.Context, sess render.Session, page types.PageRef) (types.PageResult, error) {
	var out types.PageResult
	p := f.Profile

	if p.Wait.Selector != "" {
		found, err := sess.WaitFor(ctx, p.Wait.Selector, p.Wait.Timeout)
		if err != nil {
			return out, err
		}
		if !found {
			out.Transient++
			f.Logger.Warn("content did not appear", "page", page.Index, "selector", p.Wait.Selector, "timeout", p.Wait.Timeout)
		}
	}

	if _, err := f.Trigger.Run(ctx, sess); err != nil {
		if render.IsFatal(err) || ctx.Err() != nil {
			return out, fmt.Errorf("lazy load: %w", err)
		}
		// A failing page script leaves whatever already rendered.
		f.Logger.Warn("lazy load interrupted", "page", page.Index, "err", err)
	}

	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return out, err
	}

	if blocked, sig := f.Detector.DetectSnapshot(snap); blocked {
		out.Blocked, out.Signature = true, sig
		return out, nil
	}

	ext := f.Pipeline.Extract(snap, page)
	out.Records, out.CardCount = ext.Records, ext.CardCount()
	f.Logger.Debug("extracted cards", "page", page.Index, "selector", ext.Selector, "matched", ext.Matched, "noise", ext.Noise)
	return out, nil
}

// Backoff draws a delay uniformly from the profile's backoff range.
func (f *Fetcher) Backoff() time.Duration {
	lo, hi := f.Profile.Retry.BackoffMin, f.Profile.Retry.BackoffMax
	if hi <= lo {
		return lo
	}
	span := int64(hi - lo)
	if f.Rand != nil {
		return lo + time.Duration(f.Rand.Int64N(span+1))
	}
	return lo + time.Duration(rand.Int64N(span+1))
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep == nil {
		return lazyload.Sleep(ctx, d)
	}
	return f.Sleep(ctx, d)
}
