// Package driver provides the browser automation engines behind the CLI.
// Each driver launches a Chromium-family browser with the same fingerprint
// settings and adapts its engine to page.Browser.
package driver

import (
	"fmt"
	"slices"
	"time"

	"github.com/jmylchreest/promoscout/pkg/fetcher"
	"github.com/jmylchreest/promoscout/pkg/harvest"
)

// Driver names.
const (
	NameChromedp   = "chromedp"
	NameRod        = "rod"
	NamePlaywright = "playwright"
)

// Names lists the available drivers, default first.
var Names = []string{NameChromedp, NameRod, NamePlaywright}

// Config holds configuration for every driver.
type Config struct {
	Name       string
	Headless   bool
	UserAgent  string
	Timeout    time.Duration // navigation budget
	ChromePath string        // empty means search the system
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:      NameChromedp,
		Headless:  true,
		UserAgent: fetcher.DefaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.ChromePath == "" {
		c.ChromePath = FindChromePath()
	}
	return c
}

// New returns the launcher for the named driver.
func New(cfg Config) (harvest.Launcher, error) {
	cfg = cfg.withDefaults()
	switch cfg.Name {
	case NameChromedp:
		return &ChromedpLauncher{config: cfg}, nil
	case NameRod:
		return &RodLauncher{config: cfg}, nil
	case NamePlaywright:
		return &PlaywrightLauncher{config: cfg}, nil
	}
	return nil, fmt.Errorf("unknown driver: %s (available: %v)", cfg.Name, Names)
}

// Valid reports whether name is a known driver.
func Valid(name string) bool {
	return slices.Contains(Names, name)
}
