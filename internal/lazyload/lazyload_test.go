package lazyload

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/render/rendertest"
)

type sleepRecorder struct {
	total time.Duration
	calls int
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.total += d
	r.calls++
	return nil
}

func policy() profile.ScrollPolicy {
	return profile.ScrollPolicy{
		Step:            400,
		Pause:           150 * time.Millisecond,
		RecheckEvery:    1,
		GrowthThreshold: 50,
		MaxSteps:        200,
		Settle:          1500 * time.Millisecond,
	}
}

func newTrigger(p profile.ScrollPolicy, rec *sleepRecorder) *Trigger {
	return &Trigger{Policy: p, Logger: log.New(io.Discard), Sleep: rec.sleep}
}

func TestRunStopsAtStableHeight(t *testing.T) {
	sess := rendertest.New()
	sess.Heights = []int{2000}
	rec := &sleepRecorder{}

	st, err := newTrigger(policy(), rec).Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 5, st.Steps)
	assert.Equal(t, 2000, st.FinalHeight)
	assert.Zero(t, st.Grew)

	scripts := sess.Scripts()
	assert.Contains(t, scripts, render.ScrollToScript(400))
	assert.Contains(t, scripts, render.ScrollToScript(2000))
	assert.Equal(t, render.ScrollBottomScript, scripts[len(scripts)-1])
}

func TestRunTerminatesWhenHeightGrowsOnce(t *testing.T) {
	sess := rendertest.New()
	// initial read, then one growth, then stable
	sess.Heights = []int{1200, 1200, 2400}
	rec := &sleepRecorder{}

	st, err := newTrigger(policy(), rec).Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 1, st.Grew)
	assert.Equal(t, 2400, st.FinalHeight)
	assert.Equal(t, 6, st.Steps)
	assert.Less(t, st.Steps, policy().MaxSteps)
}

func TestRunIgnoresGrowthBelowThreshold(t *testing.T) {
	sess := rendertest.New()
	sess.Heights = []int{800, 820, 840, 860}
	rec := &sleepRecorder{}

	st, err := newTrigger(policy(), rec).Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 800, st.FinalHeight)
	assert.Equal(t, 2, st.Steps)
}

func TestRunIsBoundedByMaxSteps(t *testing.T) {
	sess := rendertest.New()
	heights := make([]int, 100)
	for i := range heights {
		heights[i] = 1000 * (i + 1)
	}
	sess.Heights = heights
	p := policy()
	p.MaxSteps = 10
	rec := &sleepRecorder{}

	st, err := newTrigger(p, rec).Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Steps)
	assert.LessOrEqual(t, rec.total, time.Duration(p.MaxSteps)*p.Pause+p.Settle)
}

func TestRunBounce(t *testing.T) {
	sess := rendertest.New()
	sess.Heights = []int{400}
	p := policy()
	p.Bounce = 600
	p.BouncePause = 100 * time.Millisecond
	rec := &sleepRecorder{}

	_, err := newTrigger(p, rec).Run(context.Background(), sess)
	require.NoError(t, err)

	scripts := sess.Scripts()
	assert.Equal(t, render.ScrollByScript(-600), scripts[len(scripts)-1])
	assert.Equal(t, 150*time.Millisecond+1500*time.Millisecond+100*time.Millisecond, rec.total)
}

func TestRunDisabled(t *testing.T) {
	sess := rendertest.New()
	p := policy()
	p.Disabled = true

	st, err := newTrigger(p, &sleepRecorder{}).Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Zero(t, st.Steps)
	assert.Empty(t, sess.Scripts())
}

func TestRunPropagatesSessionFailure(t *testing.T) {
	sess := rendertest.New()
	require.NoError(t, sess.Close())

	_, err := newTrigger(policy(), &sleepRecorder{}).Run(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, render.IsFatal(err))
	assert.False(t, errors.Is(err, context.Canceled))
}
