package paginate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/harvest/internal/dedup"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/render/rendertest"
	"github.com/go-scripts/harvest/internal/retry"
	"github.com/go-scripts/harvest/internal/types"
)

const header = `
name: shop
origin: https://shop.example
cards: [div.card]
fields: {name: [h2], price: [.price], image_url: [img@src], url: [a@href]}
block_signatures: [Robot Check]
`

func noSleep(context.Context, time.Duration) error { return nil }

func newController(t *testing.T, doc string) (*Controller, *dedup.Aggregator) {
	t.Helper()
	p, err := profile.Parse([]byte(header + doc))
	require.NoError(t, err)

	logger := log.New(io.Discard)
	f := retry.New(p, logger)
	f.Sleep = noSleep
	f.Trigger.Sleep = noSleep

	agg := dedup.New()
	c := New(p, f, agg, logger)
	c.Sleep = noSleep
	c.Pacer = NewPacer(profile.Pacing{}, noSleep)
	return c, agg
}

func cards(ids ...int) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Laptops</title></head><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<div class="card"><h2>Item %d</h2><span class="price">S/ %d</span><a href="/p/%d">x</a></div>`, id, id*10, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func names(recs []types.Record) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.Name())
	}
	return out
}

func TestRunFixedPagesWithOverlap(t *testing.T) {
	c, agg := newController(t, `
empty_threshold: 1
pagination: {strategy: query, url: "https://shop.example/laptops", pages: 3}
`)
	sess := rendertest.New().
		Serve("https://shop.example/laptops?page=1", cards(1, 2, 3, 4, 5)).
		Serve("https://shop.example/laptops?page=2", cards(4, 5, 6, 7, 8)).
		Serve("https://shop.example/laptops?page=3", cards())

	sum, err := c.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, Done, sum.Final)
	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, 2, sum.WithRecords)
	assert.Equal(t, 1, sum.Empty)
	assert.Equal(t, 8, sum.Added)
	assert.Equal(t, 8, agg.Len())
	assert.Equal(t, 2, agg.Dropped())
	assert.Equal(t, []string{
		"Item 1", "Item 2", "Item 3", "Item 4", "Item 5", "Item 6", "Item 7", "Item 8",
	}, names(agg.Records()))
	assert.Equal(t, []string{
		"https://shop.example/laptops?page=1",
		"https://shop.example/laptops?page=2",
		"https://shop.example/laptops?page=3",
	}, sess.Navigations())
}

func TestRunFixedContinuesPastEmptyPages(t *testing.T) {
	c, agg := newController(t, `
empty_threshold: 1
retry: {attempts: 1}
pagination:
  strategy: list
  list:
    - {label: Zephyrus, url: "https://shop.example/z"}
    - {label: Flow, url: "https://shop.example/f"}
    - {label: Strix, url: "https://shop.example/s"}
`)
	sess := rendertest.New().
		Serve("https://shop.example/z", cards(1)).
		Serve("https://shop.example/f", cards()).
		Serve("https://shop.example/s", cards(2))

	sum, err := c.Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, 1, sum.Empty)
	assert.Equal(t, []string{"Item 1", "Item 2"}, names(agg.Records()))
}

func TestRunOpenEndedStopsAtEmptyThreshold(t *testing.T) {
	c, agg := newController(t, `
empty_threshold: 2
pagination: {strategy: query, url: "https://shop.example/laptops", param: p}
`)
	sess := rendertest.New()

	sum, err := c.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, Done, sum.Final)
	assert.Equal(t, 2, sum.Pages)
	assert.Equal(t, 2, sum.Empty)
	assert.Zero(t, agg.Len())
	// Idle->Fetching, then Fetching->Empty, Empty->Advancing, Advancing->Fetching,
	// Fetching->Empty, Empty->Done.
	assert.Equal(t, 6, sum.Transitions)
}

func TestRunOpenEndedResetsCounterOnRecords(t *testing.T) {
	c, agg := newController(t, `
empty_threshold: 2
retry: {attempts: 1}
pagination: {strategy: query, url: "https://shop.example/l", limit: 10}
`)
	sess := rendertest.New().
		Serve("https://shop.example/l?page=1", cards(1)).
		Serve("https://shop.example/l?page=3", cards(3))

	sum, err := c.Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Pages)
	assert.Equal(t, []string{"Item 1", "Item 3"}, names(agg.Records()))
}

func TestRunAlwaysEmptyTerminatesForEveryStrategy(t *testing.T) {
	docs := map[string]string{
		"query open":  `pagination: {strategy: query, url: "https://shop.example/l"}`,
		"query fixed": `pagination: {strategy: query, url: "https://shop.example/l", pages: 4}`,
		"list":        `pagination: {strategy: list, list: ["https://shop.example/a", "https://shop.example/b"]}`,
		"click":       `pagination: {strategy: click, url: "https://shop.example/l", next: {selector: a.next}}`,
		"scroll":      `pagination: {strategy: scroll, url: "https://shop.example/l", load_more: {selector: button.more}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			c, _ := newController(t, doc)
			sess := rendertest.New()
			sess.EvalFunc = func(*rendertest.Session, string) (any, error) { return true, nil }

			sum, err := c.Run(context.Background(), sess)
			require.NoError(t, err)
			assert.Equal(t, Done, sum.Final)
			assert.LessOrEqual(t, sum.Pages, c.Profile.Pagination.Bound())
			assert.LessOrEqual(t, sum.Transitions, 1+4*c.Profile.Pagination.Bound())
		})
	}
}

func TestRunBlockedPageIsSkipped(t *testing.T) {
	c, agg := newController(t, `
pagination: {strategy: query, url: "https://shop.example/l", pages: 3}
`)
	sess := rendertest.New().
		Serve("https://shop.example/l?page=1", cards(1, 2)).
		Serve("https://shop.example/l?page=2", `<html><head><title>Robot Check</title></head><body></body></html>`).
		Serve("https://shop.example/l?page=3", cards(3))

	var seen []types.PageResult
	c.OnPage = func(res types.PageResult, _ int) { seen = append(seen, res) }

	sum, err := c.Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Blocked)
	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, []string{"Item 1", "Item 2", "Item 3"}, names(agg.Records()))
	require.Len(t, seen, 3)
	assert.True(t, seen[1].Blocked)
	assert.Zero(t, sess.Reloads())
}

func TestRunClickStrategy(t *testing.T) {
	c, agg := newController(t, `
pagination:
  strategy: click
  url: https://shop.example/list
  next: {selector: "li.paginate a", text: "{page}"}
`)
	more := []string{cards(3, 4), cards(5)}
	var clickScripts []string
	sess := rendertest.New().Serve("https://shop.example/list", cards(1, 2))
	sess.EvalFunc = func(s *rendertest.Session, script string) (any, error) {
		if !strings.Contains(script, "querySelectorAll") {
			return nil, nil
		}
		clickScripts = append(clickScripts, script)
		if len(more) == 0 {
			return false, nil
		}
		s.SetDocument(more[0])
		more = more[1:]
		return true, nil
	}

	sum, err := c.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, []string{"Item 1", "Item 2", "Item 3", "Item 4", "Item 5"}, names(agg.Records()))
	assert.Equal(t, []string{"https://shop.example/list"}, sess.Navigations())
	require.Len(t, clickScripts, 3)
	assert.Contains(t, clickScripts[0], `const want = "2"`)
	assert.Contains(t, clickScripts[2], `const want = "4"`)
}

func TestRunScrollStrategy(t *testing.T) {
	c, agg := newController(t, `
pagination:
  strategy: scroll
  url: https://shop.example/deals
  load_more: {selector: button.pc_more}
  max_probes: 2
`)
	more := []string{cards(1, 2, 3, 4), cards(1, 2, 3, 4, 5, 6)}
	nudges := 0
	sess := rendertest.New().Serve("https://shop.example/deals", cards(1, 2))
	sess.EvalFunc = func(s *rendertest.Session, script string) (any, error) {
		switch {
		case strings.Contains(script, "button.pc_more"):
			if len(more) == 0 {
				return false, nil
			}
			s.SetDocument(more[0])
			more = more[1:]
			return true, nil
		case script == render.ScrollByScript(-300):
			nudges++
		}
		return nil, nil
	}

	sum, err := c.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, 6, agg.Len())
	assert.Equal(t, 6, agg.Dropped())
	assert.Equal(t, 2, nudges)
}

func TestRunSessionFailureKeepsEarlierRecords(t *testing.T) {
	c, agg := newController(t, `
pagination: {strategy: query, url: "https://shop.example/l", pages: 3}
`)
	sess := rendertest.New().Serve("https://shop.example/l?page=1", cards(1, 2))
	c.OnPage = func(types.PageResult, int) { sess.NavigateErr = errors.New("browser crashed") }

	sum, err := c.Run(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, render.IsFatal(err))
	assert.Equal(t, FetchingPage, sum.Final)
	assert.Equal(t, 2, sum.Pages)
	assert.Equal(t, 2, agg.Len())
}

func TestRunPacesPages(t *testing.T) {
	c, _ := newController(t, `
retry: {attempts: 1}
pagination: {strategy: query, url: "https://shop.example/l", pages: 3}
`)
	var waits []time.Duration
	c.Pacer = NewPacer(profile.Pacing{DelayMin: 2 * time.Second, DelayMax: 2 * time.Second}, func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})

	_, err := c.Run(context.Background(), rendertest.New())
	require.NoError(t, err)
	require.Len(t, waits, 3)
	assert.Zero(t, waits[0])
	assert.InDelta(t, 2*time.Second, waits[1], float64(500*time.Millisecond))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "fetching", FetchingPage.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "unknown", State(42).String())
}
