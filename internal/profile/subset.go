package profile

import (
	"fmt"
	"strings"
)

// Selection narrows a profile to part of its pages.
type Selection struct {
	// From and To are 1-based inclusive page positions. Zero means unbounded.
	From, To int
	// Categories keeps only list entries with these labels.
	Categories []string
}

// IsZero reports whether the selection keeps everything.
func (s Selection) IsZero() bool {
	return s.From == 0 && s.To == 0 && len(s.Categories) == 0
}

// Subset returns a copy of p restricted to sel. p itself is not modified.
func (p *SiteProfile) Subset(sel Selection) (*SiteProfile, error) {
	if sel.IsZero() {
		return p, nil
	}
	if sel.From < 0 || sel.To < 0 || (sel.To > 0 && sel.To < sel.From) {
		return nil, fmt.Errorf("invalid page range %d-%d", sel.From, sel.To)
	}
	from := max(sel.From, 1)

	cp := *p
	pg := &cp.Pagination
	switch pg.Strategy {
	case StrategyList:
		var kept []ListEntry
		for i, e := range pg.List {
			pos := i + 1
			if pos < from || (sel.To > 0 && pos > sel.To) {
				continue
			}
			if len(sel.Categories) > 0 && !hasLabel(sel.Categories, e.Label) {
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			return nil, fmt.Errorf("%s: selection matches no list entries", p.Name)
		}
		pg.List = kept
	case StrategyQuery:
		if len(sel.Categories) > 0 {
			return nil, fmt.Errorf("%s: categories apply only to list strategies", p.Name)
		}
		bound := pg.Bound()
		if from > bound {
			return nil, fmt.Errorf("%s: page %d is beyond the last page %d", p.Name, from, bound)
		}
		pg.Start += from - 1
		last := bound
		if sel.To > 0 {
			last = min(sel.To, bound)
		}
		if pg.Pages > 0 {
			pg.Pages = last - from + 1
		} else {
			pg.Limit = last - from + 1
		}
	default:
		// Interactive pagination can only be cut short, not entered midway.
		if from > 1 || len(sel.Categories) > 0 {
			return nil, fmt.Errorf("%s: %s pagination supports only an upper page bound", p.Name, pg.Strategy)
		}
		if sel.To > 0 {
			if pg.Pages > 0 {
				pg.Pages = min(pg.Pages, sel.To)
			} else {
				pg.Limit = min(pg.Limit, sel.To)
			}
		}
	}
	return &cp, nil
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// ParseRange reads "3", "2-5" or "4-" into a Selection.
func ParseRange(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Selection{}, nil
	}
	var sel Selection
	lo, hi, ranged := strings.Cut(s, "-")
	if _, err := fmt.Sscanf(lo, "%d", &sel.From); err != nil || sel.From < 1 {
		return Selection{}, fmt.Errorf("invalid page range %q", s)
	}
	switch {
	case !ranged:
		sel.To = sel.From
	case strings.TrimSpace(hi) != "":
		if _, err := fmt.Sscanf(hi, "%d", &sel.To); err != nil || sel.To < sel.From {
			return Selection{}, fmt.Errorf("invalid page range %q", s)
		}
	}
	return sel, nil
}
