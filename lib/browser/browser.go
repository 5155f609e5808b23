package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLaunch indicates the browser or its initial page could not be brought up.
	ErrLaunch = errors.New("browser launch failed")
)

// Options holds page creation settings.
type Options struct {
	StartURL       string
	ViewportWidth  int
	ViewportHeight int
	JPEGQuality    int
	CaptureTimeout time.Duration
}

// Download represents a completed page download that can be persisted to disk.
type Download interface {
	Filename() string
	SaveTo(path string) error
}

// Controller defines the interface for driving and observing one browser page.
// Individual calls are atomic; callers get no ordering guarantees across
// concurrent calls beyond that.
type Controller interface {
	// Screenshot captures the current page as a JPEG.
	Screenshot(ctx context.Context) ([]byte, error)

	MouseMove(ctx context.Context, x, y float64) error
	// MouseDown and MouseUp move the pointer to (x, y) before pressing or
	// releasing so the event lands where the cursor visually is.
	MouseDown(ctx context.Context, x, y float64, button string) error
	MouseUp(ctx context.Context, x, y float64, button string) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
	Wheel(ctx context.Context, deltaX, deltaY float64) error

	// OnDownload registers a callback invoked for every page download.
	OnDownload(fn func(Download))

	// Close tears down the page and its browser. Safe to call once.
	Close(ctx context.Context) error
}

// Launcher creates a Controller for a new room. Implementations must either
// return a fully usable Controller or clean up after themselves and return an
// error wrapping ErrLaunch.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Controller, error)
}
