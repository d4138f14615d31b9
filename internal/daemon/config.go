// Package daemon manages the capmap service lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultVectorSource is the Natural Earth 1:110m country boundary file.
const DefaultVectorSource = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Geo       GeoConfig       `toml:"geo"`
	Render    RenderConfig    `toml:"render"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Health    HealthConfig    `toml:"health"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// GeoConfig locates the map geometry. Sources are URLs or file paths.
type GeoConfig struct {
	VectorSource string `toml:"vector_source"`
	FlatSource   string `toml:"flat_source"`
	Watch        bool   `toml:"watch"`
	FetchTimeout string `toml:"fetch_timeout"`
}

// RenderConfig controls map views.
type RenderConfig struct {
	HoverBrighten string `toml:"hover_brighten"` // additive | relative
	DefaultStyle  string `toml:"default_style"`  // vector | flat
	MaxViews      int    `toml:"max_views"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// HealthConfig controls the health checker.
type HealthConfig struct {
	Interval string `toml:"interval"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        7878,
			CORSOrigins: []string{"*"},
		},
		Geo: GeoConfig{
			VectorSource: DefaultVectorSource,
			Watch:        true,
			FetchTimeout: "30s",
		},
		Render: RenderConfig{
			HoverBrighten: "additive",
			DefaultStyle:  "vector",
			MaxViews:      1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Health: HealthConfig{
			Interval: "60s",
		},
	}
}

// LoadConfig reads $CAPMAP_HOME/config.toml over the defaults, then applies
// environment overrides. A .env file in the working directory or in
// $CAPMAP_HOME is loaded first.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(capmapHome(), ".env"))
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile reads path over the defaults. A missing file is not an
// error.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides config values from CAPMAP_* variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("CAPMAP_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CAPMAP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid CAPMAP_PORT %q", v)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("CAPMAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CAPMAP_VECTOR_SOURCE"); v != "" {
		cfg.Geo.VectorSource = v
	}
	if v := os.Getenv("CAPMAP_FLAT_SOURCE"); v != "" {
		cfg.Geo.FlatSource = v
	}
	return nil
}

// SaveConfig writes the config to $CAPMAP_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(capmapHome(), "config.toml")
}

// capmapHome returns the capmap data directory.
func capmapHome() string {
	if env := os.Getenv("CAPMAP_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".capmap")
}

// Home is exported for use by other packages.
func Home() string {
	return capmapHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
