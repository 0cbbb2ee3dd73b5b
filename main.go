package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/go-scripts/harvest/internal/config"
	"github.com/go-scripts/harvest/internal/harvest"
	"github.com/go-scripts/harvest/internal/lazyload"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/progress"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/writer"
)

// CLIFlags is the command surface. Flags left unset fall back to the run
// configuration.
type CLIFlags struct {
	Sites       []string `arg:"" optional:"" help:"Sites to harvest (default: every loaded profile)"`
	Config      string   `help:"Path to run configuration file" short:"c" type:"path"`
	Profiles    []string `help:"Profile file globs" short:"p"`
	Pages       string   `help:"Page range, e.g. 3, 2-5 or 4-"`
	Category    []string `help:"Category labels to keep for list sites"`
	Output      string   `help:"Output file, single site only" short:"o" type:"path"`
	OutputDir   string   `help:"Directory for per-site JSON output" type:"path"`
	SQLite      string   `help:"Also store records in this SQLite database" name:"sqlite" type:"path"`
	Concurrency int      `help:"Sites harvested in parallel" short:"j"`
	Headful     bool     `help:"Show the browser window"`
	TUI         bool     `help:"Show the dashboard" name:"tui"`
	Quiet       bool     `help:"Disable the progress spinner" short:"q"`
	Debug       bool     `help:"Enable debug logging"`
}

// app holds what a run needs besides flags, so tests can swap the browser
// and the clock.
type app struct {
	flags  CLIFlags
	open   func(config.Config, *log.Logger) render.Opener
	sleep  lazyload.SleepFunc
	stdout io.Writer
	stderr io.Writer
}

func chromeOpener(cfg config.Config, logger *log.Logger) render.Opener {
	return render.ChromeOpener(cfg.ChromeOptions(), logger)
}

// applyFlags overrides configuration values with flags that were set
func applyFlags(cfg *config.Config, flags CLIFlags) {
	if len(flags.Profiles) > 0 {
		cfg.Profiles = flags.Profiles
	}
	if flags.OutputDir != "" {
		cfg.OutputDir = flags.OutputDir
	}
	if flags.SQLite != "" {
		cfg.SQLitePath = flags.SQLite
	}
	if flags.Concurrency > 0 {
		cfg.Concurrency = flags.Concurrency
	}
	if flags.Headful {
		cfg.Browser.Headless = false
	}
	if flags.Debug {
		cfg.LogLevel = "debug"
	}
}

// loadSites loads, selects and narrows the profiles to run
func loadSites(cfg *config.Config, flags CLIFlags) ([]*profile.SiteProfile, error) {
	all, err := profile.LoadGlob(cfg.Profiles...)
	if err != nil {
		return nil, err
	}
	sites, err := profile.Select(all, flags.Sites)
	if err != nil {
		return nil, err
	}

	sel, err := profile.ParseRange(flags.Pages)
	if err != nil {
		return nil, err
	}
	sel.Categories = flags.Category
	if sel.IsZero() {
		return sites, nil
	}

	narrowed := make([]*profile.SiteProfile, 0, len(sites))
	for _, site := range sites {
		sub, err := site.Subset(sel)
		if err != nil {
			return nil, err
		}
		narrowed = append(narrowed, sub)
	}
	return narrowed, nil
}

// openSink builds the JSON sink and, when configured, the SQLite sink
func openSink(cfg *config.Config, flags CLIFlags, sites int, runID string) (writer.Sink, error) {
	var files *writer.FileWriter
	var err error
	if flags.Output != "" {
		if sites != 1 {
			return nil, errors.New("--output needs exactly one site; use --output-dir for several")
		}
		files, err = writer.NewFile(flags.Output)
	} else {
		files, err = writer.New(cfg.OutputDir)
	}
	if err != nil {
		return nil, err
	}
	if cfg.SQLitePath == "" {
		return files, nil
	}

	db, err := writer.OpenSQLite(cfg.SQLitePath, runID)
	if err != nil {
		return nil, err
	}
	return writer.Multi(files, db), nil
}

func newLogger(w io.Writer, cfg *config.Config, timestamps bool) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: timestamps,
		Prefix:          "harvest",
		Level:           cfg.Level(),
	})
}

// run executes one harvest and returns the process exit code
func (a *app) run(ctx context.Context) (int, error) {
	cfg, err := config.Load(a.flags.Config)
	if err != nil {
		return 1, err
	}
	applyFlags(cfg, a.flags)

	sites, err := loadSites(cfg, a.flags)
	if err != nil {
		return 1, err
	}
	if len(sites) == 0 {
		return 1, errors.New("no sites selected")
	}

	runner := harvest.NewRunner(nil, nil, nil)
	runner.Concurrency = cfg.Concurrency
	runner.Sleep = a.sleep

	sink, err := openSink(cfg, a.flags, len(sites), runner.RunID)
	if err != nil {
		return 1, err
	}
	defer sink.Close()
	runner.Sink = sink

	var reports []harvest.Report
	if a.flags.TUI {
		reports, err = a.runDashboard(ctx, cfg, runner, sites)
	} else {
		reports, err = a.runPlain(ctx, cfg, runner, sites)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return 1, err
	}

	fmt.Fprintln(a.stdout, renderReports(reports))
	return harvest.ExitCode(reports), nil
}

func (a *app) runPlain(ctx context.Context, cfg *config.Config, runner *harvest.Runner, sites []*profile.SiteProfile) ([]harvest.Report, error) {
	logger := newLogger(a.stderr, cfg, true)
	runner.Logger = logger
	runner.Open = a.open(*cfg, logger)

	var observers []progress.Observer
	observers = append(observers, progress.Logger(logger))
	if f, ok := a.stderr.(*os.File); ok && !a.flags.Quiet && !a.flags.Debug && isatty.IsTerminal(f.Fd()) {
		sp := progress.NewSpinner(a.stderr)
		sp.Start()
		defer sp.Stop()
		observers = append(observers, sp)
	}
	runner.Observer = progress.Fanout(observers...)

	return runner.Run(ctx, sites)
}

func main() {
	var flags CLIFlags
	kctx := kong.Parse(&flags,
		kong.Name("harvest"),
		kong.Description("Harvest product catalogs from storefronts described by site profiles."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{
		flags:  flags,
		open:   chromeOpener,
		sleep:  lazyload.Sleep,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	code, err := a.run(ctx)
	stop()
	kctx.FatalIfErrorf(err)
	os.Exit(code)
}
