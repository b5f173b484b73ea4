// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
)

const configEnv = "FIELDAGENT"

// Geolocation provider names.
const (
	ProviderGPSD = "gpsd"
	ProviderWiFi = "wifi"
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	API struct {
		BaseURL   string `fig:"base_url" default:"http://localhost:5000"`
		AuthToken string `fig:"auth_token"`
	} `fig:"api"`

	Geolocation struct {
		// Allowed values: gpsd, wifi
		Provider            string        `fig:"provider" default:"gpsd"`
		GPSDHost            string        `fig:"gpsd_host" default:"localhost"`
		GPSDPort            string        `fig:"gpsd_port" default:"2947"`
		GeolocateEndpoint   string        `fig:"geolocate_endpoint" default:"https://api.beacondb.net/v1/geolocate"`
		Timeout             time.Duration `fig:"timeout" default:"10s"`
		MaximumAge          time.Duration `fig:"maximum_age" default:"5m"`
		UpdateInterval      time.Duration `fig:"update_interval" default:"15m"`
		DisableHighAccuracy bool          `fig:"disable_high_accuracy"`
		DisableAutoSync     bool          `fig:"disable_auto_sync"`
		DisableAutoUpdate   bool          `fig:"disable_auto_update"`
	} `fig:"geolocation"`

	Reports struct {
		Dir       string `fig:"dir"`
		MaxWidth  int    `fig:"max_width" default:"1024"`
		MaxHeight int    `fig:"max_height" default:"1024"`
		Quality   int    `fig:"quality" default:"80"`
	} `fig:"reports"`

	Notifications struct {
		DisableDesktop bool `fig:"disable_desktop"`
	} `fig:"notifications"`

	LanguageFile string `fig:"language_file"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Geolocation.Provider != ProviderGPSD && c.Geolocation.Provider != ProviderWiFi {
		return fmt.Errorf("invalid geolocation provider: %s", c.Geolocation.Provider)
	}
	if c.Geolocation.Timeout <= 0 {
		return fmt.Errorf("invalid geolocation timeout: %s", c.Geolocation.Timeout)
	}
	if c.Geolocation.UpdateInterval < time.Minute {
		return fmt.Errorf("invalid geolocation update interval: %s", c.Geolocation.UpdateInterval)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base URL must not be empty")
	}
	if c.Reports.Quality < 1 || c.Reports.Quality > 100 {
		return fmt.Errorf("invalid report image quality: %d", c.Reports.Quality)
	}
	if c.Reports.MaxWidth < 1 || c.Reports.MaxHeight < 1 {
		return fmt.Errorf("invalid report image bounds: %dx%d", c.Reports.MaxWidth, c.Reports.MaxHeight)
	}
	if c.Reports.Dir == "" {
		home, _ := os.UserHomeDir()
		c.Reports.Dir = filepath.Join(home, ".local", "share", "fieldagent", "reports")
	}
	if c.LanguageFile == "" {
		home, _ := os.UserHomeDir()
		c.LanguageFile = filepath.Join(home, ".config", "fieldagent", "language.json")
	}

	return nil
}
