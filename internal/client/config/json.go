package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Zero values
// leave the corresponding Config field untouched, so a file only needs the
// settings it changes.
type JsonConfig struct {
	ServerURL      string           `json:"server_url"`
	Endpoints      client.Endpoints `json:"endpoints"`
	StoragePath    string           `json:"storage_path"`
	RequestTimeout timex.Duration   `json:"request_timeout"`
	Verbose        bool             `json:"verbose"`
	OAuth          struct {
		RedirectURL string             `json:"redirect_url"`
		Google      jsonProviderConfig `json:"google"`
		GitHub      jsonProviderConfig `json:"github"`
		Facebook    jsonProviderConfig `json:"facebook"`
	} `json:"oauth"`
}

type jsonProviderConfig struct {
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
}

// parseJson overlays cfg with the JSON file named by -c/-config or
// $AUTHKEEPER_CONFIG. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.StoragePath, jc.StoragePath)
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	cfg.Verbose = cfg.Verbose || jc.Verbose

	e := &cfg.Endpoints
	setString(&e.Register, jc.Endpoints.Register)
	setString(&e.Login, jc.Endpoints.Login)
	setString(&e.Logout, jc.Endpoints.Logout)
	setString(&e.Profile, jc.Endpoints.Profile)
	setString(&e.Refresh, jc.Endpoints.Refresh)
	setString(&e.DeleteAccount, jc.Endpoints.DeleteAccount)
	setString(&e.OAuthCallback, jc.Endpoints.OAuthCallback)

	setString(&cfg.OAuth.RedirectURL, jc.OAuth.RedirectURL)
	setProvider(&cfg.OAuth.Google, jc.OAuth.Google)
	setProvider(&cfg.OAuth.GitHub, jc.OAuth.GitHub)
	setProvider(&cfg.OAuth.Facebook, jc.OAuth.Facebook)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setProvider(dst *ProviderConfig, v jsonProviderConfig) {
	setString(&dst.ClientID, v.ClientID)
	if len(v.Scopes) > 0 {
		dst.Scopes = v.Scopes
	}
}
