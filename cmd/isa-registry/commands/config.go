package commands

import (
	"errors"
	"isa-registry/internal/components/telemetry"
	"isa-registry/internal/scrapers/isa"
	"isa-registry/pkg/configutil"
	"log/slog"
	"os"
	"time"
)

type Config struct {
	BaseUrl string `json:"base_url"`
	// Cookie is sent as-is, copy it from a browser session if the portal asks for one.
	Cookie            string  `json:"cookie"`
	Unit              string  `json:"unit"`
	MinYear           string  `json:"min_year"`
	Concurrency       int     `json:"concurrency"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	CatalogTtlMinutes int     `json:"catalog_ttl_minutes"`

	Tracing telemetry.TracingConfig `json:"tracing"`
}

func defaultConfig() Config {
	return Config{
		BaseUrl:           isa.DEFAULT_BASE_URL,
		Unit:              "Informatique",
		MinYear:           "2007",
		Concurrency:       4,
		RequestsPerSecond: 4,
		TimeoutSeconds:    30,
		CatalogTtlMinutes: 60,
	}
}

// loadConfig reads the config file (and its .local override), a missing file
// leaves every setting at its default.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file found, using defaults", "path", path)
		return defaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return configutil.WithDefaults(cfg, defaultConfig())
}

func (c Config) clientOptions() isa.ClientOptions {
	return isa.ClientOptions{
		BaseUrl:           c.BaseUrl,
		Cookie:            c.Cookie,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
		Concurrency:       c.Concurrency,
		CatalogTTL:        time.Duration(c.CatalogTtlMinutes) * time.Minute,
	}
}
