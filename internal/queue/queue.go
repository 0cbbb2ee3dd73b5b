// Package queue holds the sites waiting for a harvesting session.
package queue

import (
	"strings"
	"sync"

	"github.com/go-scripts/harvest/internal/profile"
)

// Queue is a thread-safe FIFO of site profiles. A site is queued at most
// once per run.
type Queue struct {
	sites []*profile.SiteProfile
	seen  map[string]bool
	mu    sync.Mutex
}

// New creates a Queue holding sites in order.
func New(sites ...*profile.SiteProfile) *Queue {
	q := &Queue{seen: make(map[string]bool)}
	for _, s := range sites {
		q.Add(s)
	}
	return q
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add appends a site unless one with the same name was already queued.
func (q *Queue) Add(site *profile.SiteProfile) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	k := key(site.Name)
	if q.seen[k] {
		return false
	}
	q.seen[k] = true
	q.sites = append(q.sites, site)
	return true
}

// Next pops the next site.
func (q *Queue) Next() (*profile.SiteProfile, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.sites) == 0 {
		return nil, false
	}
	site := q.sites[0]
	q.sites = q.sites[1:]
	return site, true
}

// Pending lists the names still waiting, in order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	names := make([]string, len(q.sites))
	for i, s := range q.sites {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of sites still waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sites)
}
