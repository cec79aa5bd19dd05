// CLAUDE:SUMMARY aprexport configuration: YAML file with defaults, credentials from the environment.
// Package config loads the exporter configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/aprexport/browser"
	"github.com/hazyhaar/aprexport/osdialog"
	"github.com/hazyhaar/aprexport/portal"
	"github.com/hazyhaar/aprexport/session"
)

// ErrCredentials is returned when no username or password is set.
var ErrCredentials = errors.New("config: APREXPORT_USERNAME and APREXPORT_PASSWORD (or USERNAME and PASSWORD) must be set")

// Config is the top-level exporter configuration.
type Config struct {
	Output     OutputConfig    `yaml:"output"`
	Browser    browser.Config  `yaml:"browser"`
	Dialog     osdialog.Config `yaml:"dialog"`
	Timing     session.Timing  `yaml:"timing"`
	Records    RecordsConfig   `yaml:"records"`
	Store      StoreConfig     `yaml:"store"`
	StatusAddr string          `yaml:"status_addr"`
}

// OutputConfig controls where exported PDFs land.
type OutputConfig struct {
	// MainFolder receives one sub-folder per client.
	MainFolder string `yaml:"main_folder"`
}

// RecordsConfig names the records tree folder that holds treatment records.
type RecordsConfig struct {
	FolderLabel string `yaml:"folder_label"`
}

// StoreConfig locates the run store.
type StoreConfig struct {
	// Path of the SQLite file. "off" disables the store.
	Path string `yaml:"path"`
}

// Disabled reports whether runs are kept in memory only.
func (s StoreConfig) Disabled() bool { return s.Path == "off" }

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file. An empty path yields Default().
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := osdialog.New(cfg.Dialog); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Output.MainFolder == "" {
		c.Output.MainFolder = "Aesthetics Pro"
	}
	if c.Records.FolderLabel == "" {
		c.Records.FolderLabel = "Treatment Records"
	}
	if c.Store.Path == "" {
		c.Store.Path = "aprexport.db"
	}
	if c.Browser.Display == "" {
		c.Browser.Display = ":99"
	}
	// Native dialogs need a visible window on the display xdotool types into.
	if c.Dialog.Kind == "" || c.Dialog.Kind == osdialog.KindXdotool {
		c.Browser.Headful = true
		if c.Dialog.Display == "" {
			c.Dialog.Display = c.Browser.Display
		}
	}
	if c.Dialog.Kind == osdialog.KindKiosk {
		c.Browser.KioskPrinting = true
	}
	c.Browser.DownloadDir = c.Output.MainFolder
}

// Credentials reads the login from the environment through getenv.
func Credentials(getenv func(string) string) (portal.Credentials, error) {
	pick := func(primary, fallback string) string {
		if v := getenv(primary); v != "" {
			return v
		}
		return getenv(fallback)
	}
	cr := portal.Credentials{
		Username: pick("APREXPORT_USERNAME", "USERNAME"),
		Password: pick("APREXPORT_PASSWORD", "PASSWORD"),
	}
	if cr.Username == "" || cr.Password == "" {
		return portal.Credentials{}, ErrCredentials
	}
	return cr, nil
}
