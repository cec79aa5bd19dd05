// CLAUDE:SUMMARY Chrome lifecycle for the exporter: local launch (headless or headful under Xvfb) or remote attach, print/download preferences, stealth page.
// Package browser starts the Chrome instance the exporter drives and opens
// its single page.
//
// Printing to PDF needs a headful Chrome: the preferences written at launch
// pre-select "Save as PDF" and point the save and download folders at the
// export folder, so kiosk printing or the native save dialog land there.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/aprexport/uicap"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// Empty launches a local Chrome.
	RemoteURL string `yaml:"remote"`
	// Bin is the Chrome binary. Empty lets the launcher find or fetch one.
	Bin string `yaml:"bin"`
	// Headful runs a visible Chrome; required for native print dialogs.
	Headful bool `yaml:"headful"`
	// Xvfb starts a virtual display for headful mode.
	Xvfb bool `yaml:"xvfb"`
	// Display is the X display used by headful Chrome. Default: ":99".
	Display string `yaml:"display"`
	// UserDataDir holds the Chrome profile. Empty uses a temporary one.
	UserDataDir string `yaml:"user_data_dir"`
	// KioskPrinting makes window.print save straight to the default
	// destination without showing the preview.
	KioskPrinting bool `yaml:"kiosk_printing"`
	// Stealth applies go-rod/stealth evasions to the page. Default: true.
	Stealth *bool `yaml:"stealth"`

	// DownloadDir is where PDFs are saved by default, normally the export
	// folder. Not read from YAML; set by the caller.
	DownloadDir string `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Display == "" {
		c.Display = ":99"
	}
	if c.Stealth == nil {
		on := true
		c.Stealth = &on
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process (or the remote connection) and Xvfb.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches or attaches to Chrome.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}
	b, err := m.launch(ctx)
	if err != nil {
		m.cleanup()
		return nil, err
	}
	m.browser = b
	return b, nil
}

// OpenPage opens the page the exporter drives, with stealth evasions unless
// disabled, wrapped for the uicap layer.
func (m *Manager) OpenPage(ctx context.Context) (*uicap.RodPage, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	var (
		page *rod.Page
		err  error
	)
	if *m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080, DeviceScaleFactor: 1}).Call(page.Context(ctx)); err != nil {
		m.cfg.Logger.Warn("browser: viewport not set", "error", err)
	}
	return uicap.NewRodPage(page), nil
}

// Close shuts Chrome and Xvfb down. A remote Chrome is only disconnected.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		if m.cfg.Headful && m.cfg.Xvfb {
			if err := m.startXvfb(); err != nil {
				return nil, fmt.Errorf("browser: xvfb: %w", err)
			}
		}
		l, err := m.launcher()
		if err != nil {
			return nil, err
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful, "kiosk_printing", m.cfg.KioskPrinting)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if m.cfg.DownloadDir != "" {
		dir, err := filepath.Abs(m.cfg.DownloadDir)
		if err == nil {
			err = proto.BrowserSetDownloadBehavior{
				Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
				DownloadPath: dir,
			}.Call(b)
		}
		if err != nil {
			log.Warn("browser: download folder not set", "error", err)
		}
	}
	return b, nil
}

// launcher builds the local Chrome command line.
func (m *Manager) launcher() (*launcher.Launcher, error) {
	l := launcher.New().
		Headless(!m.cfg.Headful).
		Set("disable-blink-features", "AutomationControlled").
		Set("start-maximized").
		Delete("enable-automation")
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	if m.cfg.Headful {
		l = l.Env(append(os.Environ(), "DISPLAY="+m.cfg.Display)...)
	}
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	if m.cfg.KioskPrinting {
		l = l.Set("kiosk-printing")
	}
	if m.cfg.DownloadDir != "" {
		prefs, err := preferences(m.cfg.DownloadDir)
		if err != nil {
			return nil, fmt.Errorf("browser: preferences: %w", err)
		}
		l = l.Preferences(string(prefs))
	}
	return l, nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}
