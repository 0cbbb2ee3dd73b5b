// Command profilecheck validates site profiles without starting a browser
// and prints how each site will be paginated.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/harvest/internal/profile"
)

type CLIFlags struct {
	Patterns []string `arg:"" optional:"" help:"Profile files or globs" default:"profiles/*.yaml"`
	Verbose  bool     `help:"Also list fields and block signatures" short:"v"`
}

// result is the outcome of checking one file
type result struct {
	path    string
	profile *profile.SiteProfile
	err     error
}

func check(patterns []string) ([]result, error) {
	var results []result
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true
			p, err := profile.LoadFile(path)
			results = append(results, result{path: path, profile: p, err: err})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })
	return results, nil
}

func describe(p *profile.SiteProfile) (strategy, pages string) {
	pg := p.Pagination
	strategy = string(pg.Strategy)
	switch {
	case pg.Strategy == profile.StrategyList:
		pages = fmt.Sprintf("%d entries", len(pg.List))
	case pg.Fixed():
		pages = fmt.Sprintf("%d pages", pg.Pages)
	default:
		pages = fmt.Sprintf("up to %d, stop after %d empty", pg.Limit, p.EmptyThreshold)
	}
	return strategy, pages
}

func report(w io.Writer, results []result, verbose bool) (failed int) {
	var rows [][]string
	for _, r := range results {
		if r.err != nil {
			failed++
			rows = append(rows, []string{filepath.Base(r.path), "", "", "", r.err.Error()})
			continue
		}
		strategy, pages := describe(r.profile)
		rows = append(rows, []string{filepath.Base(r.path), r.profile.Name, strategy, pages, "ok"})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("File", "Site", "Strategy", "Pages", "Status").
		Rows(rows...)
	fmt.Fprintln(w, t.String())

	if verbose {
		for _, r := range results {
			if r.err == nil {
				fmt.Fprint(w, details(r.profile))
			}
		}
	}
	return failed
}

func details(p *profile.SiteProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s (%s)\n", p.Name, p.OriginURL())
	fmt.Fprintf(&b, "  cards: %s\n", strings.Join(p.Cards, ", "))

	fields := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		chain := p.Fields[name]
		sels := make([]string, len(chain.Candidates))
		for i, c := range chain.Candidates {
			sels[i] = c.Selector
			if c.Attr != "" {
				sels[i] += "@" + c.Attr
			}
		}
		fmt.Fprintf(&b, "  %s: %s", name, strings.Join(sels, " | "))
		if chain.Fallback != "" {
			fmt.Fprintf(&b, " (fallback %q)", chain.Fallback)
		}
		b.WriteString("\n")
	}
	if len(p.Block) > 0 {
		sigs := make([]string, len(p.Block))
		for i, s := range p.Block {
			sigs[i] = s.String()
		}
		fmt.Fprintf(&b, "  block: %s\n", strings.Join(sigs, ", "))
	}
	return b.String()
}

func main() {
	var flags CLIFlags
	ctx := kong.Parse(&flags,
		kong.Name("profilecheck"),
		kong.Description("Validate harvest site profiles."),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "profilecheck"})

	results, err := check(flags.Patterns)
	ctx.FatalIfErrorf(err)
	if len(results) == 0 {
		logger.Fatal("no profiles matched", "patterns", flags.Patterns)
	}

	if failed := report(os.Stdout, results, flags.Verbose); failed > 0 {
		logger.Error("invalid profiles", "count", failed)
		os.Exit(1)
	}
	logger.Info("all profiles valid", "count", len(results))
}
