package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/render/rendertest"
	"github.com/go-scripts/harvest/internal/types"
)

const listURL = "https://shop.example/laptops?page=1"

func loadProfile(t *testing.T, attempts int) *profile.SiteProfile {
	t.Helper()
	doc := fmt.Sprintf(`
name: shop
origin: https://shop.example
wait: {selector: div.card, timeout: 20s}
cards: [div.card]
fields: {name: [h2], price: [.price], image_url: [img@src], url: [a@href]}
block_signatures: [Robot Check]
retry: {attempts: %d, backoff_min: 8s, backoff_max: 12s}
pagination: {strategy: query, url: "https://shop.example/laptops"}
`, attempts)
	p, err := profile.Parse([]byte(doc))
	require.NoError(t, err)
	return p
}

func page(n int) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Laptops</title></head><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div class="card"><h2>Item %d</h2><span class="price">S/ %d</span><a href="/p/%d">x</a></div>`, i, 100+i, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const emptyPage = "<html><head><title>Laptops</title></head><body><p>loading</p></body></html>"

type sleeps struct{ d []time.Duration }

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.d = append(s.d, d)
	return nil
}

func newFetcher(t *testing.T, attempts int) (*Fetcher, *sleeps) {
	t.Helper()
	f := New(loadProfile(t, attempts), log.New(io.Discard))
	s := &sleeps{}
	f.Sleep = s.sleep
	f.Trigger.Sleep = func(context.Context, time.Duration) error { return nil }
	f.Rand = rand.New(rand.NewPCG(1, 2))
	return f, s
}

func TestFetchSucceedsFirstAttempt(t *testing.T) {
	f, s := newFetcher(t, 3)
	sess := rendertest.New().Serve(listURL, page(5))

	res, err := f.Fetch(context.Background(), sess, types.PageRef{Index: 1, URL: listURL})
	require.NoError(t, err)

	assert.Equal(t, 5, res.CardCount)
	assert.Len(t, res.Records, 5)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Blocked)
	assert.False(t, res.Exhausted)
	assert.Empty(t, s.d)
	assert.Equal(t, []string{listURL}, sess.Navigations())
	assert.Zero(t, sess.Reloads())
}

func TestFetchRecoversAfterTransientFailures(t *testing.T) {
	f, s := newFetcher(t, 4)
	sess := rendertest.New().Serve(listURL, emptyPage, emptyPage, emptyPage, page(4))

	res, err := f.Fetch(context.Background(), sess, types.PageRef{Index: 1, URL: listURL})
	require.NoError(t, err)

	assert.Equal(t, 4, res.CardCount)
	require.Len(t, res.Records, 4)
	assert.Equal(t, "Item 0", res.Records[0].Name())
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 3, res.Transient)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 3, sess.Reloads())
	assert.Len(t, sess.Navigations(), 1)

	require.Len(t, s.d, 3)
	for _, d := range s.d {
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}

func TestFetchRespectsAttemptBound(t *testing.T) {
	f, _ := newFetcher(t, 3)
	sess := rendertest.New().Serve(listURL, emptyPage, emptyPage, emptyPage, page(4))

	res, err := f.Fetch(context.Background(), sess, types.PageRef{Index: 1, URL: listURL})
	require.NoError(t, err)

	assert.True(t, res.Exhausted)
	assert.Zero(t, res.CardCount)
	assert.Empty(t, res.Records)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, sess.Reloads())
}

func TestFetchBlockedIsNotRetried(t *testing.T) {
	f, s := newFetcher(t, 3)
	blocked := `<html><head><title>Robot Check</title></head><body><div class="card"><h2>decoy</h2></div></body></html>`
	sess := rendertest.New().Serve(listURL, blocked, page(3))

	res, err := f.Fetch(context.Background(), sess, types.PageRef{Index: 1, URL: listURL})
	require.NoError(t, err)

	assert.True(t, res.Blocked)
	assert.Equal(t, "Robot Check", res.Signature)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Records)
	assert.Zero(t, sess.Reloads())
	assert.Empty(t, s.d)
}

func TestFetchInteractivePageIsNotReloaded(t *testing.T) {
	f, _ := newFetcher(t, 2)
	sess := rendertest.New()
	sess.SetDocument(emptyPage)

	res, err := f.Fetch(context.Background(), sess, types.PageRef{Index: 2})
	require.NoError(t, err)

	assert.True(t, res.Exhausted)
	assert.Equal(t, 2, res.Attempts)
	assert.Zero(t, sess.Reloads())
	assert.Empty(t, sess.Navigations())
}

func TestFetchSessionFailureIsReturned(t *testing.T) {
	f, _ := newFetcher(t, 3)
	sess := rendertest.New()
	sess.NavigateErr = errors.New("browser crashed")

	_, err := f.Fetch(context.Background(), sess, types.PageRef{Index: 1, URL: listURL})
	require.Error(t, err)
	assert.True(t, render.IsFatal(err))
}

func TestFetchAbortsBetweenAttempts(t *testing.T) {
	f, _ := newFetcher(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	f.Sleep = func(c context.Context, _ time.Duration) error {
		cancel()
		return c.Err()
	}
	sess := rendertest.New().Serve(listURL, emptyPage)

	res, err := f.Fetch(ctx, sess, types.PageRef{Index: 1, URL: listURL})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Attempts)
}

func TestBackoffRange(t *testing.T) {
	f, _ := newFetcher(t, 3)
	for i := 0; i < 100; i++ {
		d := f.Backoff()
		require.GreaterOrEqual(t, d, 8*time.Second)
		require.LessOrEqual(t, d, 12*time.Second)
	}

	f.Profile.Retry.BackoffMax = f.Profile.Retry.BackoffMin
	assert.Equal(t, 8*time.Second, f.Backoff())
}
