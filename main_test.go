package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/harvest/internal/config"
	"github.com/go-scripts/harvest/internal/harvest"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/render/rendertest"
	"github.com/go-scripts/harvest/internal/writer"
)

const shopProfile = `
name: %[1]s
origin: https://%[1]s.example
cards: [div.card]
fields: {name: [h2], price: [.price], image_url: [img@src], url: [a@href]}
empty_threshold: 1
retry: {attempts: 1}
pagination: {strategy: query, url: "https://%[1]s.example/laptops", pages: 3}
`

const listProfile = `
name: %[1]s
origin: https://%[1]s.example
cards: [div.card]
fields: {name: [h2], price: [.price], image_url: [img@src], url: [a@href]}
label_field: category
pagination:
  strategy: list
  list:
    - {label: Gaming, url: "https://%[1]s.example/gaming"}
    - {label: Office, url: "https://%[1]s.example/office"}
`

func cards(ids ...int) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Laptops</title></head><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<div class="card"><h2>Item %d</h2><span class="price">S/ %d</span><a href="/p/%d">x</a></div>`, id, id*10, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// workspace writes profiles and a run configuration into a temp dir
func workspace(t *testing.T, profiles map[string]string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "profiles"), 0755))
	for name, doc := range profiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles", name+".yaml"), []byte(fmt.Sprintf(doc, name)), 0644))
	}
	cfgPath = filepath.Join(dir, "harvest.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
profiles: [%q]
output_dir: %q
concurrency: 2
`, filepath.Join(dir, "profiles", "*.yaml"), filepath.Join(dir, "output"))), 0644))
	return dir, cfgPath
}

func fakeBrowser(setup func(*rendertest.Session)) func(config.Config, *log.Logger) render.Opener {
	return func(config.Config, *log.Logger) render.Opener {
		return func(context.Context) (render.Session, error) {
			s := rendertest.New()
			setup(s)
			return s, nil
		}
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

// lockedBuffer is written by loggers of concurrent sessions
type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func newApp(flags CLIFlags, open func(config.Config, *log.Logger) render.Opener) (*app, *bytes.Buffer) {
	var out bytes.Buffer
	return &app{flags: flags, open: open, sleep: noSleep, stdout: &out, stderr: &lockedBuffer{}}, &out
}

func readRecords(t *testing.T, path string) []map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var recs []map[string]string
	require.NoError(t, json.Unmarshal(data, &recs))
	return recs
}

func TestRunHarvestsSelectedSites(t *testing.T) {
	dir, cfgPath := workspace(t, map[string]string{"hp": shopProfile, "asus": listProfile, "lenovo": shopProfile})
	browser := fakeBrowser(func(s *rendertest.Session) {
		s.Serve("https://hp.example/laptops?page=1", cards(1, 2, 3, 4, 5)).
			Serve("https://hp.example/laptops?page=2", cards(4, 5, 6, 7, 8)).
			Serve("https://hp.example/laptops?page=3", cards()).
			Serve("https://asus.example/gaming", cards(1, 2)).
			Serve("https://asus.example/office", cards(3))
	})

	a, out := newApp(CLIFlags{Config: cfgPath, Sites: []string{"hp", "asus"}}, browser)
	code, err := a.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	hp := readRecords(t, filepath.Join(dir, "output", "hp.json"))
	assert.Len(t, hp, 8)
	asus := readRecords(t, filepath.Join(dir, "output", "asus.json"))
	require.Len(t, asus, 3)
	assert.Equal(t, "Gaming", asus[0]["category"])
	assert.Equal(t, "Office", asus[2]["category"])
	assert.NoFileExists(t, filepath.Join(dir, "output", "lenovo.json"))

	assert.Contains(t, out.String(), "hp")
	assert.Contains(t, out.String(), "asus")
}

func TestRunCategoryToSingleFileAndSQLite(t *testing.T) {
	dir, cfgPath := workspace(t, map[string]string{"asus": listProfile})
	browser := fakeBrowser(func(s *rendertest.Session) {
		s.Serve("https://asus.example/gaming", cards(1, 2)).
			Serve("https://asus.example/office", cards(3))
	})
	output := filepath.Join(dir, "office.json")
	db := filepath.Join(dir, "harvest.db")

	a, _ := newApp(CLIFlags{Config: cfgPath, Category: []string{"office"}, Output: output, SQLite: db}, browser)
	code, err := a.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	recs := readRecords(t, output)
	require.Len(t, recs, 1)
	assert.Equal(t, "Item 3", recs[0]["name"])
	assert.FileExists(t, db)
}

func TestRunExitCodeWhenBrowserNeverStarts(t *testing.T) {
	_, cfgPath := workspace(t, map[string]string{"hp": shopProfile})
	broken := func(config.Config, *log.Logger) render.Opener {
		return func(context.Context) (render.Session, error) {
			return nil, render.Fatal("start browser", errors.New("executable not found"))
		}
	}

	a, out := newApp(CLIFlags{Config: cfgPath}, broken)
	code, err := a.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "executable not found")
}

func TestRunRejectsBadInput(t *testing.T) {
	_, cfgPath := workspace(t, map[string]string{"hp": shopProfile, "asus": listProfile})
	tests := []struct {
		name  string
		flags CLIFlags
		want  string
	}{
		{"unknown site", CLIFlags{Sites: []string{"ebay"}}, "unknown site"},
		{"output with two sites", CLIFlags{Output: "x.json"}, "--output needs exactly one site"},
		{"bad range", CLIFlags{Pages: "five"}, "invalid page range"},
		{"category on query site", CLIFlags{Sites: []string{"hp"}, Category: []string{"Gaming"}}, "categories apply only to list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.flags.Config = cfgPath
			a, _ := newApp(tt.flags, fakeBrowser(func(*rendertest.Session) {}))
			code, err := a.run(context.Background())
			assert.Equal(t, 1, code)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := &config.Config{Profiles: []string{"profiles/*.yaml"}, OutputDir: "output", Concurrency: 2, LogLevel: "info"}
	cfg.Browser.Headless = true

	applyFlags(cfg, CLIFlags{})
	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.Browser.Headless)

	applyFlags(cfg, CLIFlags{Profiles: []string{"x/*.yaml"}, OutputDir: "out", SQLite: "h.db", Concurrency: 4, Headful: true, Debug: true})
	assert.Equal(t, []string{"x/*.yaml"}, cfg.Profiles)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "h.db", cfg.SQLitePath)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, log.DebugLevel, cfg.Level())
}

func TestLoadSitesNarrowsPages(t *testing.T) {
	dir, _ := workspace(t, map[string]string{"hp": shopProfile})
	cfg := &config.Config{Profiles: []string{filepath.Join(dir, "profiles", "*.yaml")}}

	sites, err := loadSites(cfg, CLIFlags{Pages: "2-3"})
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, 3, sites[0].Pagination.Start)
	assert.Equal(t, 2, sites[0].Pagination.Pages)
	assert.Equal(t, profile.StrategyQuery, sites[0].Pagination.Strategy)
}

func TestOpenSinkSingleFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := openSink(&config.Config{OutputDir: dir}, CLIFlags{Output: filepath.Join(dir, "one.json")}, 1, "run")
	require.NoError(t, err)
	fw, ok := sink.(*writer.FileWriter)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "one.json"), fw.Path("anything"))
}

func TestRenderReports(t *testing.T) {
	out := renderReports([]harvest.Report{
		{Site: "falabella", Pages: 10, WithRecords: 10, Records: 480, Dropped: 12, Duration: 95 * time.Second},
		{Site: "amazon", Pages: 3, Blocked: 3, Err: errors.New("render session failed")},
	})
	assert.Contains(t, out, "falabella")
	assert.Contains(t, out, "480")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "render session failed")
}
