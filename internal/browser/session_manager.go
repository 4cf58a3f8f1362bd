// Package browser hosts the add-on in a real Chrome page through go-rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kongaddon/internal/config"
	"kongaddon/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// Session describes the tracked page.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// SessionManager owns the Chrome connection and the page the add-on runs in.
type SessionManager struct {
	cfg        config.BrowserConfig
	navTimeout time.Duration

	mu         sync.RWMutex
	browser    *rod.Browser
	page       *rod.Page
	session    Session
	controlURL string
}

// NewSessionManager creates a manager; nothing connects until Start.
func NewSessionManager(cfg config.BrowserConfig, navTimeout time.Duration) *SessionManager {
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &SessionManager{cfg: cfg, navTimeout: navTimeout}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.page = nil
		m.controlURL = ""
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		u, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	m.browser = b
	m.controlURL = controlURL
	logging.Browser("connected to %s", controlURL)
	return nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	started := m.browser != nil
	m.mu.RUnlock()
	if started {
		return nil
	}
	return m.Start(ctx)
}

// ControlURL returns the DevTools WebSocket URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected reports whether a browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Open creates a page at url and waits for it to load.
func (m *SessionManager) Open(ctx context.Context, url string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	nav := page.Context(ctx).Timeout(m.navTimeout)
	if err := nav.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		logging.BrowserWarn("wait load %s: %v", url, err)
	}
	return m.track(page, url, "opened"), nil
}

// Attach binds to an already open tab whose URL contains match.
func (m *SessionManager) Attach(ctx context.Context, match string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()

	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.Contains(info.URL, match) {
			return m.track(p, info.URL, "attached"), nil
		}
	}
	return nil, fmt.Errorf("no open tab matches %q", match)
}

func (m *SessionManager) track(page *rod.Page, url, status string) *Session {
	now := time.Now()
	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     status,
		CreatedAt:  now,
		LastActive: now,
	}
	m.mu.Lock()
	m.page = page
	m.session = meta
	m.mu.Unlock()
	logging.Browser("session %s %s %s", meta.ID[:8], status, url)
	return &meta
}

// Page returns the tracked page.
func (m *SessionManager) Page() (*rod.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.page == nil {
		return nil, errors.New("no page open")
	}
	return m.page, nil
}

// Session returns the tracked session metadata.
func (m *SessionManager) Session() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.page != nil
}

// Touch records activity on the session.
func (m *SessionManager) Touch(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if url != "" {
		m.session.URL = url
	}
	m.session.LastActive = time.Now()
}

// Shutdown closes the page it opened and the browser connection. A browser
// we attached to over DebuggerURL is left running.
func (m *SessionManager) Shutdown(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil && m.session.Status == "opened" {
		_ = m.page.Close()
	}
	m.page = nil

	var err error
	if m.browser != nil {
		if m.cfg.DebuggerURL == "" {
			err = m.browser.Close()
		}
		m.browser = nil
	}
	m.controlURL = ""
	return err
}
