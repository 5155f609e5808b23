package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher launches headless Firefox pages through a single shared
// playwright driver. One instance is created at process start and reused for
// every room.
type PlaywrightLauncher struct {
	pw *playwright.Playwright
}

func NewPlaywrightLauncher() (*PlaywrightLauncher, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return &PlaywrightLauncher{pw: pw}, nil
}

// Stop shuts down the shared driver. Controllers launched from it must be
// closed first.
func (l *PlaywrightLauncher) Stop() error {
	return l.pw.Stop()
}

func (l *PlaywrightLauncher) Launch(ctx context.Context, opts Options) (Controller, error) {
	browser, err := l.pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("%w: new context: %v", ErrLaunch, err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("%w: new page: %v", ErrLaunch, err)
	}

	// The initial navigation is flaky on cold starts, so retry a couple of
	// times before giving up on the whole launch.
	err = retry.New(
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		_, err := page.Goto(opts.StartURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
		})
		return err
	})
	if err != nil {
		_ = page.Close()
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("%w: goto %s: %v", ErrLaunch, opts.StartURL, err)
	}

	return &pageController{
		browser: browser,
		bctx:    bctx,
		page:    page,
		opts:    opts,
	}, nil
}

// pageController drives one playwright page. The playwright bindings are not
// context-aware, so ctx is honored only where the protocol supports timeouts.
type pageController struct {
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	opts    Options

	closeOnce sync.Once
	closeErr  error
}

func (c *pageController) Screenshot(_ context.Context) ([]byte, error) {
	return c.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(c.opts.JPEGQuality),
		Timeout: playwright.Float(float64(c.opts.CaptureTimeout.Milliseconds())),
	})
}

func (c *pageController) MouseMove(_ context.Context, x, y float64) error {
	return c.page.Mouse().Move(x, y)
}

func (c *pageController) MouseDown(_ context.Context, x, y float64, button string) error {
	if err := c.page.Mouse().Move(x, y); err != nil {
		return err
	}
	return c.page.Mouse().Down(playwright.MouseDownOptions{Button: mouseButton(button)})
}

func (c *pageController) MouseUp(_ context.Context, x, y float64, button string) error {
	if err := c.page.Mouse().Move(x, y); err != nil {
		return err
	}
	return c.page.Mouse().Up(playwright.MouseUpOptions{Button: mouseButton(button)})
}

func (c *pageController) KeyDown(_ context.Context, key string) error {
	return c.page.Keyboard().Down(key)
}

func (c *pageController) KeyUp(_ context.Context, key string) error {
	return c.page.Keyboard().Up(key)
}

func (c *pageController) Wheel(_ context.Context, deltaX, deltaY float64) error {
	return c.page.Mouse().Wheel(deltaX, deltaY)
}

func (c *pageController) OnDownload(fn func(Download)) {
	c.page.OnDownload(func(d playwright.Download) {
		fn(playwrightDownload{d: d})
	})
}

func (c *pageController) Close(_ context.Context) error {
	c.closeOnce.Do(func() {
		_ = c.page.Close()
		_ = c.bctx.Close()
		c.closeErr = c.browser.Close()
	})
	return c.closeErr
}

func mouseButton(name string) *playwright.MouseButton {
	switch name {
	case "right":
		return playwright.MouseButtonRight
	case "middle":
		return playwright.MouseButtonMiddle
	default:
		return playwright.MouseButtonLeft
	}
}

type playwrightDownload struct {
	d playwright.Download
}

func (p playwrightDownload) Filename() string {
	return p.d.SuggestedFilename()
}

func (p playwrightDownload) SaveTo(path string) error {
	return p.d.SaveAs(path)
}
