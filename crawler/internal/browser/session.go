package browser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Session is one domain's exclusively-owned browser context: an incognito
// context plus a single stealth page. Seeds of the same domain run
// sequentially on the same session so cookies and storage carry over;
// sessions of different domains share nothing.
type Session struct {
	Domain string
	Page   *rod.Page

	ctx       *rod.Browser
	stateFile string
	logger    *slog.Logger
}

// OpenSession creates an isolated context for a domain, restoring cookies
// from stateDir when a previous run left them.
func (m *Manager) OpenSession(domain, stateDir string) (*Session, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: manager not started")
	}

	ctx, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito context: %w", err)
	}

	page, err := stealth.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: stealth page: %w", err)
	}

	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent:      m.pickUA(),
		AcceptLanguage: "en-US",
	}).Call(page); err != nil {
		m.cfg.Logger.Warn("browser: ua override failed", "error", err)
	}

	// Jitter the viewport so sessions don't all present the same shape.
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1280 + rand.Intn(160),
		Height:            720 + rand.Intn(180),
		DeviceScaleFactor: 1,
	}); err != nil {
		m.cfg.Logger.Warn("browser: viewport failed", "error", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	s := &Session{
		Domain: domain,
		Page:   page,
		ctx:    ctx,
		logger: m.cfg.Logger,
	}
	if stateDir != "" {
		s.stateFile = stateFilePath(stateDir, domain)
		s.restoreCookies()
	}
	return s, nil
}

// stateFilePath returns the storage-state file for one domain. Each domain
// owns its own file; sessions must never read or clobber another domain's
// cookies.
func stateFilePath(stateDir, domain string) string {
	return filepath.Join(stateDir, domain, "_storage_state.json")
}

// Close persists cookies and releases the page and its incognito context.
// Always called on every exit path, success or failure.
func (s *Session) Close() {
	s.persistCookies()
	if s.Page != nil {
		s.Page.Close()
	}
	if s.ctx != nil && s.ctx.BrowserContextID != "" {
		// Dispose the incognito context so long multi-domain runs don't
		// accumulate contexts in Chrome.
		if err := (proto.TargetDisposeBrowserContext{
			BrowserContextID: s.ctx.BrowserContextID,
		}).Call(s.ctx); err != nil {
			s.logger.Warn("browser: context dispose failed", "domain", s.Domain, "error", err)
		}
	}
}

func (s *Session) restoreCookies() {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		return // first run for this domain
	}
	var cookies []*proto.NetworkCookieParam
	if err := json.Unmarshal(data, &cookies); err != nil {
		s.logger.Warn("browser: bad storage state, ignoring", "file", s.stateFile, "error", err)
		return
	}
	if err := s.ctx.SetCookies(cookies); err != nil {
		s.logger.Warn("browser: cookie restore failed", "error", err)
		return
	}
	s.logger.Debug("browser: cookies restored", "domain", s.Domain, "count", len(cookies))
}

func (s *Session) persistCookies() {
	if s.stateFile == "" || s.ctx == nil {
		return
	}
	cookies, err := s.ctx.GetCookies()
	if err != nil {
		s.logger.Warn("browser: cookie read failed", "error", err)
		return
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
			Expires:  c.Expires,
		})
	}
	data, err := json.Marshal(params)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(s.stateFile, data, 0o600); err != nil {
		s.logger.Warn("browser: cookie persist failed", "error", err)
	}
}
