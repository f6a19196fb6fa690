package session

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"mapleads/internal/config"
	"mapleads/internal/logger"
	"mapleads/internal/pace"
)

// Desktop Chrome agents only. Mobile agents get a different maps layout
// that the selectors do not cover.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// stealthScript hides the obvious automation signals before any page script
// runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['es-PY', 'es', 'en'] });
window.chrome = { runtime: {} };
`

var consentSelectors = []string{
	"button#L2AGLb",
	`button[aria-label="Aceptar todo"]`,
	`button[aria-label="Accept all"]`,
	`form[action*="consent"] button`,
}

// Session owns one browser for the lifetime of a run. All navigation and
// DOM access goes through the Page it exposes.
type Session struct {
	log     *logger.Logger
	cfg     *config.Config
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// New launches Chromium with a randomized fingerprint and a maps-friendly
// locale, timezone and geolocation.
func New(cfg *config.Config) (*Session, error) {
	log := logger.New("Session")

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
			"--lang=es-419",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	ua := userAgents[rand.Intn(len(userAgents))]
	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(ua),
		Locale:     playwright.String(cfg.SessionLocale),
		TimezoneId: playwright.String(cfg.SessionTZ),
		Geolocation: &playwright.Geolocation{
			Latitude:  cfg.SessionLat,
			Longitude: cfg.SessionLon,
		},
		Permissions: []string{"geolocation"},
		Viewport:    &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new context: %w", err)
	}

	if err := context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		log.LogWarnf("init script failed: %v", err)
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}

	log.LogInfof("Session started (headless=%v, ua=%s)", cfg.Headless, ua)
	return &Session{log: log, cfg: cfg, pw: pw, browser: browser, context: context, page: page}, nil
}

// Page returns the adapter the search and extract layers work against.
func (s *Session) Page() *Page {
	return &Page{session: s, page: s.page, timeout: s.cfg.ActionTimeout}
}

// WarmUp loads the maps landing page and clears any consent interstitial so
// later searches land directly on results.
func (s *Session) WarmUp() error {
	p := s.Page()
	if err := p.Navigate("https://www.google.com/maps", 30*time.Second); err != nil {
		return err
	}
	for _, sel := range consentSelectors {
		loc := s.page.Locator(sel).First()
		if visible, _ := loc.IsVisible(); visible {
			if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err == nil {
				s.log.LogInfof("Dismissed consent dialog via %s", sel)
				time.Sleep(time.Second)
				break
			}
		}
	}
	return nil
}

// captureDebug writes a screenshot into DataDir. Failures are logged and
// otherwise ignored.
func (s *Session) captureDebug(tag string) {
	path := filepath.Join(s.cfg.DataDir, fmt.Sprintf("debug_%s_%d.png", tag, time.Now().Unix()))
	if _, err := s.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)}); err != nil {
		s.log.LogDebugf("debug screenshot failed: %v", err)
		return
	}
	s.log.LogInfof("Debug screenshot: %s", path)
}

// Close tears everything down in reverse order of construction.
func (s *Session) Close() {
	if s.context != nil {
		_ = s.context.Close()
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.pw != nil {
		_ = s.pw.Stop()
	}
	s.log.Info().Msg("Session closed")
}

// classifyNavError maps playwright failures onto the shared error taxonomy.
func classifyNavError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "timeout") {
		return fmt.Errorf("%s: %w", msg, pace.ErrNavigationTimeout)
	}
	if strings.Contains(lower, "has been closed") || strings.Contains(lower, "target closed") {
		return fmt.Errorf("%s: %w", msg, pace.ErrSessionFatal)
	}
	return err
}
