package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the local Chrome process behind a Session.
type ChromeOptions struct {
	Headless        bool
	UserAgent       string
	Width, Height   int
	NavigateTimeout time.Duration
	// ExecPath overrides browser discovery.
	ExecPath string
}

// DefaultChromeOptions mirrors a desktop browser window.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:        true,
		Width:           1920,
		Height:          1080,
		NavigateTimeout: 45 * time.Second,
	}
}

// Chrome is a Session backed by one chromedp tab in its own browser.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        ChromeOptions
	logger      *log.Logger
	closeOnce   sync.Once
}

// NewChrome starts a browser and opens a tab.
func NewChrome(opts ChromeOptions, logger *log.Logger) (*Chrome, error) {
	if logger == nil {
		logger = log.Default()
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultChromeOptions().NavigateTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives any single request context; Close ends it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf),
		chromedp.WithErrorf(logger.Debugf),
	)

	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return nil, Fatal("start browser", err)
	}

	return &Chrome{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		logger:      logger,
	}, nil
}

// ChromeOpener returns an Opener that starts a fresh browser per session.
func ChromeOpener(opts ChromeOptions, logger *log.Logger) Opener {
	return func(ctx context.Context) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewChrome(opts, logger)
	}
}

// op derives a per-operation context from the tab, bounded by timeout and
// cancelled together with ctx.
func (c *Chrome) op(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(c.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	tctx, cancel := c.op(ctx, c.opts.NavigateTimeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Fatal("navigate "+url, err)
	}
	return nil
}

func (c *Chrome) Eval(ctx context.Context, script string, out any) error {
	tctx, cancel := c.op(ctx, c.opts.NavigateTimeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.Evaluate(script, out)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return Fatal("evaluate", err)
		}
		// A thrown exception in page script leaves the tab usable.
		return err
	}
	return nil
}

func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	tctx, cancel := c.op(ctx, timeout)
	defer cancel()

	err := chromedp.Run(tctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case c.ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		return false, nil
	default:
		return false, Fatal("wait for "+selector, err)
	}
}

func (c *Chrome) Snapshot(ctx context.Context) (*Snapshot, error) {
	tctx, cancel := c.op(ctx, c.opts.NavigateTimeout)
	defer cancel()

	var location, markup string
	err := chromedp.Run(tctx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Fatal("snapshot", err)
	}
	return NewSnapshot(location, markup)
}

func (c *Chrome) Reload(ctx context.Context) error {
	tctx, cancel := c.op(ctx, c.opts.NavigateTimeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.Reload()); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Fatal("reload", err)
	}
	return nil
}

// Close shuts the tab and the browser process.
func (c *Chrome) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = chromedp.Cancel(c.ctx)
		c.cancel()
		c.allocCancel()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
