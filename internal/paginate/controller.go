// Package paginate drives a site through its pages as an explicit state
// machine:
//
//	Idle -> FetchingPage -> (Blocked | EmptyCandidate | HasRecords) -> Advancing -> FetchingPage | Done
//
// Every page reference is fetched at most once and strategies are bounded
// by a page count, so Run always reaches Done, or returns early with an
// error when the render session fails.
package paginate

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/harvest/internal/dedup"
	"github.com/go-scripts/harvest/internal/lazyload"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/types"
)

// PageFetcher fetches one page with retries.
type PageFetcher interface {
	Fetch(ctx context.Context, sess render.Session, page types.PageRef) (types.PageResult, error)
}

// PageObserver is told about every fetched page and how many of its records
// were new.
type PageObserver func(res types.PageResult, added int)

// Summary of a pagination run.
type Summary struct {
	Pages       int
	WithRecords int
	Empty       int
	Blocked     int
	Added       int
	Transitions int
	Final       State
}

// Controller paginates one site.
type Controller struct {
	Profile    *profile.SiteProfile
	Fetcher    PageFetcher
	Aggregator *dedup.Aggregator
	Logger     *log.Logger
	Sleep      lazyload.SleepFunc
	Pacer      *Pacer
	OnPage     PageObserver
}

// New returns a Controller with real-time sleeps and profile pacing.
func New(p *profile.SiteProfile, fetcher PageFetcher, agg *dedup.Aggregator, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		Profile:    p,
		Fetcher:    fetcher,
		Aggregator: agg,
		Logger:     logger,
		Sleep:      lazyload.Sleep,
		Pacer:      NewPacer(p.Pacing, lazyload.Sleep),
	}
}

// Run paginates until Done. Records flow into the Aggregator as pages
// arrive, so they survive an early error return.
func (c *Controller) Run(ctx context.Context, sess render.Session) (Summary, error) {
	var sum Summary
	sleep := c.Sleep
	if sleep == nil {
		sleep = lazyload.Sleep
	}
	strat, err := newStrategy(c.Profile, sleep, c.Logger)
	if err != nil {
		return sum, err
	}
	fixed := c.Profile.Pagination.Fixed()
	threshold := c.Profile.EmptyThreshold

	state := Idle
	to := func(next State) {
		c.Logger.Debug("pagination", "from", state, "to", next)
		sum.Transitions++
		state = next
	}

	var (
		page    types.PageRef
		res     types.PageResult
		empties int
	)
	for state != Done {
		switch state {
		case Idle:
			page = strat.First()
			to(FetchingPage)

		case FetchingPage:
			if c.Pacer != nil {
				if _, err := c.Pacer.Wait(ctx); err != nil {
					sum.Final = state
					return sum, err
				}
			}
			res, err = c.Fetcher.Fetch(ctx, sess, page)
			if c.Pacer != nil {
				c.Pacer.Done()
			}
			sum.Pages++
			if err != nil {
				sum.Final = state
				return sum, fmt.Errorf("page %d: %w", page.Index, err)
			}
			switch {
			case res.Blocked:
				to(Blocked)
			case res.CardCount > 0:
				to(HasRecords)
			default:
				to(EmptyCandidate)
			}

		case HasRecords:
			added := c.Aggregator.Add(res.Records...)
			sum.WithRecords++
			sum.Added += added
			empties = 0
			c.Logger.Info("page harvested", "page", page.Index, "label", page.Label, "cards", res.CardCount, "new", added, "attempts", res.Attempts)
			c.notify(res, added)
			to(Advancing)

		case EmptyCandidate:
			empties++
			sum.Empty++
			c.Logger.Info("page empty", "page", page.Index, "label", page.Label, "consecutive", empties, "attempts", res.Attempts)
			c.notify(res, 0)
			if !fixed && empties >= threshold {
				c.Logger.Info("pagination exhausted", "empty_pages", empties)
				to(Done)
			} else {
				to(Advancing)
			}

		case Blocked:
			sum.Blocked++
			c.Logger.Warn("page blocked", "page", page.Index, "label", page.Label, "signature", res.Signature)
			c.notify(res, 0)
			to(Advancing)

		case Advancing:
			next, ok, err := strat.Next(ctx, sess, page)
			switch {
			case err != nil && (render.IsFatal(err) || errors.Is(err, ctx.Err())):
				sum.Final = state
				return sum, fmt.Errorf("advance from page %d: %w", page.Index, err)
			case err != nil:
				c.Logger.Warn("could not advance, pagination ends", "page", page.Index, "err", err)
				to(Done)
			case !ok:
				to(Done)
			default:
				page = next
				to(FetchingPage)
			}
		}
	}

	sum.Final = Done
	return sum, nil
}

func (c *Controller) notify(res types.PageResult, added int) {
	if c.OnPage != nil {
		c.OnPage(res, added)
	}
}
