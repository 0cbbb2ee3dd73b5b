// Package harvest runs site profiles end to end: it owns the render
// session, wires the page pipeline together and persists what was
// gathered.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/harvest/internal/dedup"
	"github.com/go-scripts/harvest/internal/lazyload"
	"github.com/go-scripts/harvest/internal/paginate"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/progress"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/retry"
	"github.com/go-scripts/harvest/internal/types"
	"github.com/go-scripts/harvest/internal/writer"
)

// ErrNoPagesAttempted marks a session that failed before any page
// produced an outcome.
var ErrNoPagesAttempted = errors.New("no pages attempted")

// Report summarizes one site's session.
type Report struct {
	Site        string
	RunID       string
	Pages       int
	WithRecords int
	Empty       int
	Blocked     int
	Records     int
	Dropped     int
	Duration    time.Duration
	Err         error
}

// Session harvests one site.
type Session struct {
	Profile  *profile.SiteProfile
	Open     render.Opener
	Sink     writer.Sink
	Logger   *log.Logger
	Observer progress.Observer
	RunID    string
	Worker   int
	// Sleep replaces every timed wait of the pipeline when set.
	Sleep lazyload.SleepFunc

	now func() time.Time
}

func (s *Session) observe(e progress.Event) {
	if s.Observer == nil {
		return
	}
	e.Site = s.Profile.Name
	e.Worker = s.Worker
	e.Bound = s.Profile.Pagination.Bound()
	e.At = s.clock()
	s.Observer.Observe(e)
}

func (s *Session) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Run acquires a render session, paginates the site and hands the
// accumulated records to the sink. The render session is closed on every
// path, and records gathered before a failure are still written.
func (s *Session) Run(ctx context.Context) (rep Report) {
	start := s.clock()
	rep = Report{Site: s.Profile.Name, RunID: s.RunID}
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("site", s.Profile.Name, "run", s.RunID)

	s.observe(progress.Event{Kind: progress.SiteStarted})
	defer func() {
		rep.Duration = s.clock().Sub(start)
		s.observe(progress.Event{Kind: progress.SiteFinished, Total: rep.Records, Err: rep.Err})
	}()

	sess, err := s.Open(ctx)
	if err != nil {
		if render.IsFatal(err) {
			err = fmt.Errorf("%w: %w", ErrNoPagesAttempted, err)
		}
		rep.Err = err
		return rep
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("closing render session", "err", err)
		}
	}()

	agg := dedup.New()
	fetcher := retry.New(s.Profile, logger)
	ctrl := paginate.New(s.Profile, fetcher, agg, logger)
	if s.Sleep != nil {
		fetcher.Sleep = s.Sleep
		fetcher.Trigger.Sleep = s.Sleep
		ctrl.Sleep = s.Sleep
		ctrl.Pacer = paginate.NewPacer(s.Profile.Pacing, s.Sleep)
	}
	ctrl.OnPage = func(res types.PageResult, added int) {
		s.observe(progress.Event{
			Kind:      progress.PageFetched,
			Page:      res.Page.Index,
			URL:       res.Page.URL,
			Label:     res.Page.Label,
			Cards:     res.CardCount,
			Added:     added,
			Blocked:   res.Blocked,
			Signature: res.Signature,
			Exhausted: res.Exhausted,
			Attempts:  res.Attempts,
			Total:     agg.Len(),
		})
	}

	sum, runErr := ctrl.Run(ctx, sess)
	rep.Pages = sum.WithRecords + sum.Empty + sum.Blocked
	rep.WithRecords = sum.WithRecords
	rep.Empty = sum.Empty
	rep.Blocked = sum.Blocked
	rep.Records = agg.Len()
	rep.Dropped = agg.Dropped()

	if runErr != nil {
		if rep.Pages == 0 && render.IsFatal(runErr) {
			rep.Err = fmt.Errorf("%w: %w", ErrNoPagesAttempted, runErr)
			logger.Error("render session failed before any page", "err", runErr)
			return rep
		}
		rep.Err = runErr
		logger.Error("session ended early, keeping partial records", "records", rep.Records, "err", runErr)
	}

	if s.Sink != nil {
		// the session may be ending because ctx was cancelled; the flush
		// must still happen
		if err := s.Sink.Write(context.WithoutCancel(ctx), s.Profile.Name, agg.Records()); err != nil {
			logger.Error("writing records", "err", err)
			rep.Err = errors.Join(rep.Err, fmt.Errorf("persist %s: %w", s.Profile.Name, err))
		}
	}
	logger.Info("session done", "pages", rep.Pages, "records", rep.Records, "duplicates", rep.Dropped, "blocked", rep.Blocked)
	return rep
}
