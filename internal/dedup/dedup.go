// Package dedup merges records from successive pages, keeping the first
// record seen for each identity key.
package dedup

import (
	"net/url"
	"strings"

	"github.com/go-scripts/harvest/internal/types"
)

// Key returns the identity key of r: its URL reduced to scheme, host and
// path, or the name and image when the URL is missing or not absolute.
func Key(r types.Record) string {
	if k, ok := urlKey(r.URL()); ok {
		return k
	}
	return "composite:" + r.Name() + "|" + r[types.FieldImage]
}

func urlKey(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == types.Unavailable {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path, true
}

// Aggregator accumulates unique records in first-seen order. It is owned by
// a single harvest session and is not safe for concurrent use.
type Aggregator struct {
	seen    map[string]struct{}
	records []types.Record
	dropped int
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{seen: make(map[string]struct{})}
}

// Add appends records whose keys were not seen before and returns how many
// were kept. Duplicates are dropped silently.
func (a *Aggregator) Add(records ...types.Record) int {
	added := 0
	for _, r := range records {
		k := Key(r)
		if _, dup := a.seen[k]; dup {
			a.dropped++
			continue
		}
		a.seen[k] = struct{}{}
		a.records = append(a.records, r)
		added++
	}
	return added
}

// Records returns the accumulated records in first-seen order.
func (a *Aggregator) Records() []types.Record {
	return append([]types.Record(nil), a.records...)
}

// Len is the number of unique records.
func (a *Aggregator) Len() int { return len(a.records) }

// Dropped counts duplicates discarded so far.
func (a *Aggregator) Dropped() int { return a.dropped }
