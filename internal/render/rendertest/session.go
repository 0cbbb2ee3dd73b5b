// Package rendertest provides a scripted in-memory render.Session.
package rendertest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/go-scripts/harvest/internal/render"
)

const blankPage = "<html><head></head><body></body></html>"

// Session serves canned markup per URL. Each Navigate or Reload of a URL
// serves the next markup registered for it; the last one repeats.
type Session struct {
	// Heights are returned by successive scroll height queries; the last
	// value repeats. Empty means 1000.
	Heights []int
	// EvalFunc answers scripts other than the scroll height query. The
	// default accepts every script and returns nothing.
	EvalFunc func(s *Session, script string) (any, error)
	// NavigateErr is returned by every Navigate call when set.
	NavigateErr error

	mu          sync.Mutex
	pages       map[string][]string
	served      map[string]int
	heightCalls int
	current     string
	currentURL  string
	navigations []string
	reloads     int
	scripts     []string
	closed      int
}

var _ render.Session = (*Session)(nil)

// New returns an empty session.
func New() *Session {
	return &Session{
		pages:   make(map[string][]string),
		served:  make(map[string]int),
		current: blankPage,
	}
}

// Serve registers the markups returned for url, in order.
func (s *Session) Serve(url string, markups ...string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = append(s.pages[url], markups...)
	return s
}

// SetDocument replaces the current document, as a page script would.
// Intended for EvalFunc hooks; the session lock is not held during hooks.
func (s *Session) SetDocument(markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = markup
}

func (s *Session) load(url string) {
	markups := s.pages[url]
	s.currentURL = url
	if len(markups) == 0 {
		s.current = blankPage
		return
	}
	i := min(s.served[url], len(markups)-1)
	s.served[url]++
	s.current = markups[i]
}

func (s *Session) checkOpen(op string) error {
	if s.closed > 0 {
		return render.Fatal(op, errors.New("session closed"))
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("navigate"); err != nil {
		return err
	}
	if s.NavigateErr != nil {
		return render.Fatal("navigate "+url, s.NavigateErr)
	}
	s.navigations = append(s.navigations, url)
	s.load(url)
	return nil
}

func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("reload"); err != nil {
		return err
	}
	s.reloads++
	s.load(s.currentURL)
	return nil
}

func (s *Session) Eval(ctx context.Context, script string, out any) error {
	s.mu.Lock()
	if err := s.checkOpen("evaluate"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.scripts = append(s.scripts, script)
	if script == render.ScrollHeightScript {
		h := 1000
		if n := len(s.Heights); n > 0 {
			h = s.Heights[min(s.heightCalls, n-1)]
		}
		s.heightCalls++
		s.mu.Unlock()
		return assign(out, h)
	}
	hook := s.EvalFunc
	s.mu.Unlock()

	if hook == nil {
		return nil
	}
	v, err := hook(s, script)
	if err != nil {
		return err
	}
	return assign(out, v)
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("wait"); err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.current))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (s *Session) Snapshot(ctx context.Context) (*render.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("snapshot"); err != nil {
		return nil, err
	}
	return render.NewSnapshot(s.currentURL, s.current)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Navigations lists every URL passed to Navigate.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Reloads counts Reload calls.
func (s *Session) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

// Scripts lists every evaluated script.
func (s *Session) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}

// Closed counts Close calls.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// assign decodes v into out the way a browser result would be.
func assign(out, v any) error {
	if out == nil || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
