package harvest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-scripts/harvest/internal/lazyload"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/progress"
	"github.com/go-scripts/harvest/internal/queue"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/writer"
)

// Runner harvests several sites. Sites share nothing; each worker opens
// its own render session per site.
type Runner struct {
	Open        render.Opener
	Sink        writer.Sink
	Logger      *log.Logger
	Observer    progress.Observer
	Concurrency int
	RunID       string
	Sleep       lazyload.SleepFunc
}

// NewRunner returns a Runner with a fresh run ID and one worker.
func NewRunner(open render.Opener, sink writer.Sink, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Open:        open,
		Sink:        sink,
		Logger:      logger,
		Concurrency: 1,
		RunID:       uuid.NewString(),
	}
}

// Run harvests sites and returns one report per distinct site in the order
// given. A failing site never stops the others. The returned error is
// ctx's error when the run was interrupted; sites that never started
// report it too.
func (r *Runner) Run(ctx context.Context, sites []*profile.SiteProfile) ([]Report, error) {
	q := queue.New()
	index := make(map[string]int)
	var reports []Report
	for _, site := range sites {
		if !q.Add(site) {
			r.Logger.Warn("site listed twice, running once", "site", site.Name)
			continue
		}
		index[siteKey(site.Name)] = len(reports)
		reports = append(reports, Report{Site: site.Name, RunID: r.RunID})
		r.notify(progress.Event{Kind: progress.SiteQueued, Site: site.Name, Bound: site.Pagination.Bound()})
	}

	workers := max(1, min(r.Concurrency, len(reports)))
	r.Logger.Info("harvest started", "run", r.RunID, "sites", len(reports), "workers", workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= workers; w++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				site, ok := q.Next()
				if !ok {
					return nil
				}
				sess := &Session{
					Profile:  site,
					Open:     r.Open,
					Sink:     r.Sink,
					Logger:   r.Logger,
					Observer: r.Observer,
					RunID:    r.RunID,
					Worker:   w,
					Sleep:    r.Sleep,
				}
				rep := sess.Run(gctx)
				mu.Lock()
				reports[index[siteKey(site.Name)]] = rep
				mu.Unlock()
			}
			return gctx.Err()
		})
	}
	err := g.Wait()

	for _, name := range q.Pending() {
		reports[index[siteKey(name)]].Err = err
	}
	if err != nil {
		r.Logger.Warn("harvest interrupted", "run", r.RunID, "not_started", q.Len())
	}
	return reports, err
}

func siteKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Runner) notify(e progress.Event) {
	if r.Observer != nil {
		r.Observer.Observe(e)
	}
}

// ExitCode is 1 when some site's render session failed before any page was
// attempted, 0 otherwise.
func ExitCode(reports []Report) int {
	for _, rep := range reports {
		if errors.Is(rep.Err, ErrNoPagesAttempted) {
			return 1
		}
	}
	return 0
}
