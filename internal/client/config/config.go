package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
)

// ProviderConfig enables one OAuth provider. Scopes fall back to the
// provider defaults when empty.
type ProviderConfig struct {
	ClientID string
	Scopes   []string
}

type OAuthConfig struct {
	RedirectURL string
	Google      ProviderConfig
	GitHub      ProviderConfig
	Facebook    ProviderConfig
}

// Config holds runtime settings for the authkeeper CLI.
type Config struct {
	ServerURL      string
	Endpoints      client.Endpoints
	StoragePath    string
	RequestTimeout time.Duration
	Verbose        bool
	OAuth          OAuthConfig
}

// LoadDefaults populates c with defaults suitable for a backend running on
// the local machine.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.Endpoints = client.DefaultEndpoints()
	c.StoragePath = defaultStoragePath()
	c.RequestTimeout = 15 * time.Second
	c.Verbose = false
	c.OAuth = OAuthConfig{RedirectURL: "http://localhost:3000/oauth-callback.html"}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

const storageFile = "authkeeper.db"

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return storageFile
	}
	return filepath.Join(dir, "authkeeper", storageFile)
}
