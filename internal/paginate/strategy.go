package paginate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/harvest/internal/lazyload"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/types"
)

// strategy produces successive page references. Next reports false when
// the pagination is exhausted.
type strategy interface {
	First() types.PageRef
	Next(ctx context.Context, sess render.Session, cur types.PageRef) (types.PageRef, bool, error)
}

func newStrategy(p *profile.SiteProfile, sleep lazyload.SleepFunc, logger *log.Logger) (strategy, error) {
	pg := p.Pagination
	switch pg.Strategy {
	case profile.StrategyQuery:
		base, err := url.Parse(pg.URL)
		if err != nil {
			return nil, fmt.Errorf("pagination url: %w", err)
		}
		return &queryStrategy{base: base, param: pg.Param, start: pg.Start, bound: pg.Bound()}, nil
	case profile.StrategyList:
		return &listStrategy{entries: pg.List}, nil
	case profile.StrategyClick:
		return &clickStrategy{url: pg.URL, next: pg.Next, settle: pg.Settle, bound: pg.Bound(), sleep: sleep, logger: logger}, nil
	case profile.StrategyScroll:
		return &scrollStrategy{pg: pg, bound: pg.Bound(), sleep: sleep, logger: logger}, nil
	}
	return nil, fmt.Errorf("unsupported pagination strategy %q", pg.Strategy)
}

// queryStrategy sets a page number query parameter.
type queryStrategy struct {
	base  *url.URL
	param string
	start int
	bound int
}

func (s *queryStrategy) pageURL(index int) string {
	u := *s.base
	q := u.Query()
	q.Set(s.param, strconv.Itoa(s.start+index-1))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *queryStrategy) First() types.PageRef {
	return types.PageRef{Index: 1, URL: s.pageURL(1)}
}

func (s *queryStrategy) Next(_ context.Context, _ render.Session, cur types.PageRef) (types.PageRef, bool, error) {
	if cur.Index >= s.bound {
		return types.PageRef{}, false, nil
	}
	return types.PageRef{Index: cur.Index + 1, URL: s.pageURL(cur.Index + 1)}, true, nil
}

// listStrategy walks fixed URLs.
type listStrategy struct {
	entries []profile.ListEntry
}

func (s *listStrategy) ref(i int) types.PageRef {
	e := s.entries[i]
	return types.PageRef{Index: i + 1, URL: e.URL, Label: e.Label}
}

func (s *listStrategy) First() types.PageRef { return s.ref(0) }

func (s *listStrategy) Next(_ context.Context, _ render.Session, cur types.PageRef) (types.PageRef, bool, error) {
	if cur.Index >= len(s.entries) {
		return types.PageRef{}, false, nil
	}
	return s.ref(cur.Index), true, nil
}

// clickStrategy presses a "next" control and waits for the page to settle.
type clickStrategy struct {
	url    string
	next   profile.Control
	settle time.Duration
	bound  int
	sleep  lazyload.SleepFunc
	logger *log.Logger
}

func (s *clickStrategy) First() types.PageRef {
	return types.PageRef{Index: 1, URL: s.url}
}

func (s *clickStrategy) Next(ctx context.Context, sess render.Session, cur types.PageRef) (types.PageRef, bool, error) {
	if cur.Index >= s.bound {
		return types.PageRef{}, false, nil
	}
	target := cur.Index + 1
	clicked, err := click(ctx, sess, s.next, target)
	if err != nil {
		return types.PageRef{}, false, err
	}
	if !clicked {
		s.logger.Info("next control not found, pagination ends", "page", cur.Index)
		return types.PageRef{}, false, nil
	}
	if err := s.sleep(ctx, s.settle); err != nil {
		return types.PageRef{}, false, err
	}
	return types.PageRef{Index: target}, true, nil
}

// scrollStrategy expands an infinite listing. Each probe presses the
// load-more control when present, otherwise scrolls to the bottom and
// checks for growth. MaxProbes consecutive fruitless probes end it.
type scrollStrategy struct {
	pg     profile.Pagination
	bound  int
	sleep  lazyload.SleepFunc
	logger *log.Logger
}

func (s *scrollStrategy) First() types.PageRef {
	return types.PageRef{Index: 1, URL: s.pg.URL}
}

func (s *scrollStrategy) Next(ctx context.Context, sess render.Session, cur types.PageRef) (types.PageRef, bool, error) {
	if cur.Index >= s.bound {
		return types.PageRef{}, false, nil
	}
	next := types.PageRef{Index: cur.Index + 1}

	for probe := 1; probe <= s.pg.MaxProbes; probe++ {
		if s.pg.LoadMore.Selector != "" {
			clicked, err := click(ctx, sess, s.pg.LoadMore, next.Index)
			if err != nil {
				return types.PageRef{}, false, err
			}
			if clicked {
				s.logger.Debug("pressed load more", "probe", probe)
				return next, true, s.sleep(ctx, s.pg.Settle)
			}
		}

		before, err := height(ctx, sess)
		if err != nil {
			return types.PageRef{}, false, err
		}
		if err := sess.Eval(ctx, render.ScrollBottomScript, nil); err != nil {
			return types.PageRef{}, false, err
		}
		if err := s.sleep(ctx, s.pg.ProbePause); err != nil {
			return types.PageRef{}, false, err
		}
		after, err := height(ctx, sess)
		if err != nil {
			return types.PageRef{}, false, err
		}
		if after > before {
			s.logger.Debug("listing grew", "from", before, "to", after, "probe", probe)
			return next, true, nil
		}

		if err := sess.Eval(ctx, render.ScrollByScript(-s.pg.Nudge), nil); err != nil {
			return types.PageRef{}, false, err
		}
		if err := s.sleep(ctx, s.pg.ProbePause); err != nil {
			return types.PageRef{}, false, err
		}
	}
	s.logger.Info("listing stopped growing", "probes", s.pg.MaxProbes)
	return types.PageRef{}, false, nil
}

func height(ctx context.Context, sess render.Session) (int, error) {
	var h float64
	if err := sess.Eval(ctx, render.ScrollHeightScript, &h); err != nil {
		return 0, err
	}
	return int(h), nil
}

// ClickScript returns a script that clicks the first element matching c
// and reports whether it did. Disabled or hidden controls do not count.
func ClickScript(c profile.Control, page int) string {
	text := strings.ReplaceAll(c.Text, "{page}", strconv.Itoa(page))
	sel, _ := json.Marshal(c.Selector)
	want, _ := json.Marshal(text)
	return fmt.Sprintf(`(() => {
	const want = %s;
	const el = Array.from(document.querySelectorAll(%s))
		.find(e => want === "" || e.textContent.trim() === want);
	if (!el || el.disabled || el.getAttribute("aria-disabled") === "true" || el.offsetParent === null) {
		return false;
	}
	el.scrollIntoView({block: "center"});
	el.click();
	return true;
})()`, want, sel)
}

func click(ctx context.Context, sess render.Session, c profile.Control, page int) (bool, error) {
	var clicked bool
	if err := sess.Eval(ctx, ClickScript(c, page), &clicked); err != nil {
		return false, fmt.Errorf("click %s: %w", c.Selector, err)
	}
	return clicked, nil
}
