// Package render abstracts the browser that renders catalog pages.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Session is an exclusively owned browser tab. Every method blocks until
// the browser answers. Any method may return an error wrapping
// ErrSessionFatal when the browser is gone; the session is unusable after.
type Session interface {
	// Navigate loads url in the tab.
	Navigate(ctx context.Context, url string) error
	// Eval runs script in the page and decodes its result into out.
	// out may be nil when the result is not needed.
	Eval(ctx context.Context, script string, out any) error
	// WaitFor reports whether selector matched before timeout. A timeout
	// is not an error.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// Snapshot captures the current document.
	Snapshot(ctx context.Context) (*Snapshot, error)
	// Reload forces a full reload of the current page.
	Reload(ctx context.Context) error
	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Opener acquires a new Session.
type Opener func(ctx context.Context) (Session, error)

// ErrSessionFatal marks failures after which a session cannot continue.
var ErrSessionFatal = errors.New("render session failed")

// Fatal wraps err as a session-fatal failure of op.
func Fatal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrSessionFatal, err)
}

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionFatal)
}
