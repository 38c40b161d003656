package harvest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/promoscout/pkg/fetcher"
	"github.com/jmylchreest/promoscout/pkg/locator"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/site"
)

// Launcher starts the browser a run drives.
type Launcher interface {
	Launch(ctx context.Context) (page.Browser, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (page.Browser, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (page.Browser, error) {
	return f(ctx)
}

// Config holds all Harvester configuration.
type Config struct {
	Profile  site.Profile
	Launcher Launcher

	// Preflight, when set, fetches the base URL before a browser is launched.
	Preflight fetcher.Fetcher
	Pacer     *pacing.Pacer
	Healer    locator.Healer

	// Debug artifacts
	ScreenshotDir string
	HTMLDumpPath  string

	Clock  func() time.Time
	RunID  func() string
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Profile: site.Default(),
		Clock:   time.Now,
		RunID:   uuid.NewString,
	}
}

// Option configures a Harvester.
type Option func(*Config)

// WithProfile sets the site profile.
func WithProfile(p site.Profile) Option {
	return func(c *Config) {
		c.Profile = p
	}
}

// WithLauncher sets the browser launcher.
func WithLauncher(l Launcher) Option {
	return func(c *Config) {
		c.Launcher = l
	}
}

// WithPreflight enables the static reachability check.
func WithPreflight(f fetcher.Fetcher) Option {
	return func(c *Config) {
		c.Preflight = f
	}
}

// WithPacer sets the pacer shared by every phase.
func WithPacer(p *pacing.Pacer) Option {
	return func(c *Config) {
		c.Pacer = p
	}
}

// WithHealer enables selector healing.
func WithHealer(h locator.Healer) Option {
	return func(c *Config) {
		c.Healer = h
	}
}

// WithScreenshotDir saves a screenshot there when a run fails.
func WithScreenshotDir(dir string) Option {
	return func(c *Config) {
		c.ScreenshotDir = dir
	}
}

// WithHTMLDump saves the campaign page HTML to path after navigation.
func WithHTMLDump(path string) Option {
	return func(c *Config) {
		c.HTMLDumpPath = path
	}
}

// WithClock sets the time source for CapturedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}

// WithRunID sets the run identifier generator.
func WithRunID(fn func() string) Option {
	return func(c *Config) {
		c.RunID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
