package paginate

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/go-scripts/harvest/internal/lazyload"
	"github.com/go-scripts/harvest/internal/profile"
)

// Pacer spaces page fetches. After every fetch the next one waits
// DelayMin, measured from the end of that fetch, plus a random extra of
// up to DelayMax-DelayMin. Done marks the end of a fetch.
type Pacer struct {
	limit   rate.Limit
	limiter *rate.Limiter
	jitter  time.Duration
	sleep   lazyload.SleepFunc
	now     func() time.Time
	rand    *rand.Rand
}

// NewPacer builds a Pacer for p. Zero delays disable pacing.
func NewPacer(p profile.Pacing, sleep lazyload.SleepFunc) *Pacer {
	limit := rate.Inf
	if p.DelayMin > 0 {
		limit = rate.Every(p.DelayMin)
	}
	if sleep == nil {
		sleep = lazyload.Sleep
	}
	return &Pacer{
		limit:  limit,
		jitter: max(p.DelayMax-p.DelayMin, 0),
		sleep:  sleep,
		now:    time.Now,
	}
}

// Done records that a fetch just finished. The limiter restarts empty so
// the next slot opens DelayMin from now.
func (p *Pacer) Done() {
	l := rate.NewLimiter(p.limit, 1)
	l.AllowN(p.now(), 1)
	p.limiter = l
}

// Wait blocks until the next fetch may start and returns the pause taken.
// Before the first Done it returns at once.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	var d time.Duration
	if p.limiter != nil {
		if missing := 1 - p.limiter.TokensAt(p.now()); missing > 0 && p.limit != rate.Inf {
			d = time.Duration(missing * float64(time.Second) / float64(p.limit))
		}
		d += p.draw()
	}
	if err := p.sleep(ctx, d); err != nil {
		return 0, err
	}
	return d, nil
}

func (p *Pacer) draw() time.Duration {
	if p.jitter <= 0 {
		return 0
	}
	if p.rand != nil {
		return time.Duration(p.rand.Int64N(int64(p.jitter) + 1))
	}
	return time.Duration(rand.Int64N(int64(p.jitter) + 1))
}
