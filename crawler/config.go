package crawler

import (
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/browser"
	"github.com/hazyhaar/jobscout/crawler/internal/capture"
	"github.com/hazyhaar/jobscout/crawler/internal/reduce"
)

// Config configures the crawler service.
type Config struct {
	// Per-seed crawl limits.
	Limits capture.Limits

	// Browser settings (remote Chrome, UA pool, resource blocking).
	Browser browser.Config

	// Reduce settings for the HTML reduction pass.
	Reduce reduce.Options

	// OutDir is the root of the capture output tree.
	OutDir string

	// StateDir holds per-domain browser state (cookies). Empty disables
	// state persistence between runs.
	StateDir string

	// NavTimeout bounds each navigation attempt.
	NavTimeout time.Duration
	// NavRetries is the number of navigation attempts per seed.
	NavRetries int

	// DelayMin/DelayMax bound the politeness pause between seeds of the
	// same domain.
	DelayMin time.Duration
	DelayMax time.Duration
}

func (c *Config) defaults() {
	c.Limits.Defaults()
	if c.OutDir == "" {
		c.OutDir = "out"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 45 * time.Second
	}
	if c.NavRetries <= 0 {
		c.NavRetries = 3
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 8 * time.Second
	}
	if c.DelayMax <= c.DelayMin {
		c.DelayMax = c.DelayMin + 7*time.Second
	}
}

func defaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}
