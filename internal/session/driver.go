package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"staffdir-scraper/internal/config"
	"staffdir-scraper/internal/credentials"
)

var (
	// ErrAuthFailed is run-level fatal once the login retry budget is spent.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNavigationTimeout marks a page load that exhausted its deadline.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrNavigation marks any other navigation failure.
	ErrNavigation = errors.New("navigation error")
)

// loginMarkers identify a redirect to the identity provider.
var loginMarkers = []string{"login", "signin", "sign-in", "microsoftonline", "oauth"}

// attemptsError carries the number of navigation attempts an operation
// consumed before failing.
type attemptsError struct {
	cause    error
	attempts int
}

func (e *attemptsError) Error() string { return e.cause.Error() }
func (e *attemptsError) Unwrap() error { return e.cause }

// WithAttempts attaches an attempt count to err; AttemptCount recovers it.
func WithAttempts(err error, attempts int) error {
	return &attemptsError{cause: err, attempts: attempts}
}

// AttemptCount reports how many attempts the failed operation spent, or 1
// when the error carries no attempt detail.
func AttemptCount(err error) int {
	var ae *attemptsError
	if errors.As(err, &ae) {
		return ae.attempts
	}
	return 1
}

// Driver owns one authenticated browser session. Navigation is serialized by
// a mutex; callers run parsing on the captured documents concurrently.
type Driver struct {
	cfg    *config.Config
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	loggedIn bool
	identity string
}

func NewDriver(cfg *config.Config, logger *zap.Logger) *Driver {
	return &Driver{
		cfg:    cfg,
		logger: logger,
	}
}

// Connect launches the browser and prepares a blank page. Must be called
// before Login or LoadPage.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	l := launcher.New().Headless(d.cfg.Browser.Headless)
	if d.cfg.Browser.ChromePath != "" {
		l = l.Bin(d.cfg.Browser.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return errors.Wrap(err, "failed to launch browser")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return errors.Wrap(err, "failed to connect to browser")
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return errors.Wrap(err, "failed to open page")
	}

	if d.cfg.Browser.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: d.cfg.Browser.UserAgent}); err != nil {
			d.logger.Warn("failed to override user agent", zap.Error(err))
		}
	}

	d.launcher = l
	d.browser = browser
	d.page = page
	d.logger.Info("browser session started", zap.Bool("headless", d.cfg.Browser.Headless))
	return nil
}

// Close tears the session down. Safe to call after a failed Connect.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			d.logger.Warn("failed to close browser", zap.Error(err))
		}
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher = nil
	}
	d.loggedIn = false
}

// Login authenticates the session against the directory's identity-provider
// form. Calling it again with the same identity on a live session is a
// no-op success.
func (d *Driver) Login(ctx context.Context, creds credentials.Set) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page == nil {
		return errors.Mark(errors.New("session not connected"), ErrAuthFailed)
	}
	if d.loggedIn && d.identity == creds.Identity {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.Retry.LoginAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(d.cfg.GetRetryBackoff()):
			case <-ctx.Done():
				return errors.Mark(ctx.Err(), ErrAuthFailed)
			}
		}

		if err := d.loginOnce(ctx, creds); err != nil {
			lastErr = err
			d.logger.Warn("login attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		d.loggedIn = true
		d.identity = creds.Identity
		d.logger.Info("login successful", zap.String("identity", creds.Identity))
		return nil
	}

	return errors.Mark(lastErr, ErrAuthFailed)
}

func (d *Driver) loginOnce(ctx context.Context, creds credentials.Set) error {
	page := d.page.Context(ctx).Timeout(d.cfg.GetLoginTimeout())

	if err := page.Navigate(d.cfg.Directory.ListingURL); err != nil {
		return errors.Wrap(err, "failed to reach directory")
	}
	if err := page.WaitLoad(); err != nil {
		return errors.Wrap(err, "directory did not load")
	}
	if err := page.WaitStable(d.cfg.GetStableWait()); err != nil {
		return errors.Wrap(err, "directory did not settle")
	}

	if !d.onLoginPage(page) {
		// Already authenticated (cached session) or no auth wall at all.
		return nil
	}

	// Two-step identity-provider form: identity, next, secret, sign in.
	if err := d.fillAndSubmit(page, `input[type="email"]`, creds.Identity); err != nil {
		return errors.Wrap(err, "identity step failed")
	}
	if err := d.fillAndSubmit(page, `input[type="password"]`, creds.Secret); err != nil {
		return errors.Wrap(err, "secret step failed")
	}

	if err := page.WaitStable(d.cfg.GetStableWait()); err != nil {
		return errors.Wrap(err, "post-login page did not settle")
	}
	if d.onLoginPage(page) {
		return errors.New("still on login page after submitting credentials")
	}
	return nil
}

func (d *Driver) fillAndSubmit(page *rod.Page, inputSelector, value string) error {
	input, err := page.Element(inputSelector)
	if err != nil {
		return errors.Wrapf(err, "missing %s", inputSelector)
	}
	if err := input.SelectAllText(); err != nil {
		return err
	}
	if err := input.Input(value); err != nil {
		return err
	}

	submit, err := page.Element(`input[type="submit"], button[type="submit"]`)
	if err != nil {
		return errors.Wrap(err, "missing submit control")
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	return page.WaitStable(d.cfg.GetStableWait())
}

func (d *Driver) onLoginPage(page *rod.Page) bool {
	info, err := page.Info()
	if err != nil {
		return false
	}
	current := strings.ToLower(info.URL)
	for _, marker := range loginMarkers {
		if strings.Contains(current, marker) {
			return true
		}
	}
	return false
}

// LoadPage navigates to url, waits for the content to settle and returns a
// snapshot of the rendered DOM. Retries are bounded with linear backoff;
// exhausting them surfaces the underlying failure kind.
func (d *Driver) LoadPage(ctx context.Context, url string) (*RenderedDocument, error) {
	return d.load(ctx, url, nil)
}

// LoadListing is LoadPage plus scroll-to-bottom: the directory listing
// lazy-loads cards, so it scrolls until the count under cardSelector stops
// growing before capturing the DOM.
func (d *Driver) LoadListing(ctx context.Context, url, cardSelector string) (*RenderedDocument, error) {
	return d.load(ctx, url, func(page *rod.Page) error {
		return d.scrollUntilSettled(ctx, page, cardSelector)
	})
}

func (d *Driver) load(ctx context.Context, url string, after func(*rod.Page) error) (*RenderedDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page == nil {
		return nil, errors.Mark(errors.New("session not connected"), ErrNavigation)
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			// Linear backoff between attempts.
			select {
			case <-time.After(time.Duration(attempt-1) * d.cfg.GetRetryBackoff()):
			case <-ctx.Done():
				return nil, WithAttempts(errors.Mark(ctx.Err(), ErrNavigation), attempt-1)
			}
		}

		doc, err := d.loadOnce(ctx, url, after)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		d.logger.Warn("page load failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	kind := ErrNavigation
	if errors.Is(lastErr, context.DeadlineExceeded) {
		kind = ErrNavigationTimeout
	}
	wrapped := errors.Mark(errors.Wrapf(lastErr, "load %s: %d attempts", url, d.cfg.Retry.MaxAttempts), kind)
	return nil, WithAttempts(wrapped, d.cfg.Retry.MaxAttempts)
}

func (d *Driver) loadOnce(ctx context.Context, url string, after func(*rod.Page) error) (*RenderedDocument, error) {
	page := d.page.Context(ctx).Timeout(d.cfg.GetPageTimeout())

	if err := page.Navigate(url); err != nil {
		return nil, err
	}
	if err := page.WaitLoad(); err != nil {
		return nil, err
	}
	if err := page.WaitStable(d.cfg.GetStableWait()); err != nil {
		return nil, err
	}
	if after != nil {
		if err := after(page); err != nil {
			return nil, err
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, err
	}
	return NewRenderedDocument(url, html)
}

func (d *Driver) scrollUntilSettled(ctx context.Context, page *rod.Page, cardSelector string) error {
	previous := -1
	for {
		elements, err := page.Elements(cardSelector)
		if err != nil {
			return err
		}
		if len(elements) == previous {
			return nil
		}
		previous = len(elements)

		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return err
		}
		select {
		case <-time.After(d.cfg.GetLazyScrollDelay()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
