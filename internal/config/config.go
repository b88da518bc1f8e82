// Package config handles configuration loading for the BioPareto server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/biopareto/server/internal/enrich"
	"github.com/biopareto/server/pkg/colormap"
)

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Cache      CacheConfig      `yaml:"cache"`
	Render     RenderConfig     `yaml:"render"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Title       string   `yaml:"title"`
}

// SessionConfig contains analysis session settings.
type SessionConfig struct {
	CoordinatePrecision int `yaml:"coordinate_precision"`
	IndexCacheSize      int `yaml:"index_cache_size"`
	MaxUploadMB         int `yaml:"max_upload_mb"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	PlotSizeMB     int `yaml:"plot_size_mb"`
	PlotTTLMinutes int `yaml:"plot_ttl_minutes"`
	QueryCacheSize int `yaml:"query_cache_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	DefaultColormap string   `yaml:"default_colormap"`
	FrontColors     []string `yaml:"front_colors"`
}

// EnrichmentConfig contains enrichment collaborator and job settings.
type EnrichmentConfig struct {
	GProfilerURL          string `yaml:"gprofiler_url"`
	GProfilerOrganismsURL string `yaml:"gprofiler_organisms_url"`
	ReactomeURL           string `yaml:"reactome_url"`
	ReactomeSpeciesURL    string `yaml:"reactome_species_url"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	DefaultOrganism       string `yaml:"default_organism"`
	MaxConcurrent         int    `yaml:"max_concurrent"`
	SQLitePath            string `yaml:"sqlite_path"`
	RetentionDays         int    `yaml:"retention_days"`
}

// Timeout returns the collaborator request timeout.
func (e EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// Load reads configuration from a YAML file. Variables from a .env file in
// the working directory are loaded first and override the file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		cfg := DefaultConfig()
		applyEnv(cfg)
		return cfg, nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if _, ok := colormap.ByName(cfg.Render.DefaultColormap); !ok {
		return fmt.Errorf("render.default_colormap: unknown colormap %q", cfg.Render.DefaultColormap)
	}
	if len(cfg.Render.FrontColors) > 0 {
		if _, err := colormap.FromHex(cfg.Render.FrontColors); err != nil {
			return fmt.Errorf("render.front_colors: %w", err)
		}
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "BioPareto Analyzer",
		},
		Session: SessionConfig{
			CoordinatePrecision: 3,
			IndexCacheSize:      16,
			MaxUploadMB:         64,
		},
		Cache: CacheConfig{
			PlotSizeMB:     128,
			PlotTTLMinutes: 10,
			QueryCacheSize: 256,
		},
		Render: RenderConfig{
			Width:           900,
			Height:          600,
			DefaultColormap: "category",
		},
		Enrichment: EnrichmentConfig{
			GProfilerURL:          enrich.DefaultGProfilerURL,
			GProfilerOrganismsURL: enrich.DefaultGProfilerOrganismsURL,
			ReactomeURL:           enrich.DefaultReactomeURL,
			ReactomeSpeciesURL:    enrich.DefaultReactomeSpeciesURL,
			TimeoutSeconds:        420,
			DefaultOrganism:       "hsapiens",
			MaxConcurrent:         2,
			SQLitePath:            ":memory:",
			RetentionDays:         7,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if cfg.Session.CoordinatePrecision <= 0 {
		cfg.Session.CoordinatePrecision = defaults.Session.CoordinatePrecision
	}
	if cfg.Session.IndexCacheSize <= 0 {
		cfg.Session.IndexCacheSize = defaults.Session.IndexCacheSize
	}
	if cfg.Session.MaxUploadMB <= 0 {
		cfg.Session.MaxUploadMB = defaults.Session.MaxUploadMB
	}
	if cfg.Cache.PlotSizeMB == 0 {
		cfg.Cache.PlotSizeMB = defaults.Cache.PlotSizeMB
	}
	if cfg.Cache.PlotTTLMinutes == 0 {
		cfg.Cache.PlotTTLMinutes = defaults.Cache.PlotTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = defaults.Render.Width
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = defaults.Render.Height
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}

	e, d := &cfg.Enrichment, defaults.Enrichment
	if e.GProfilerURL == "" {
		e.GProfilerURL = d.GProfilerURL
	}
	if e.GProfilerOrganismsURL == "" {
		e.GProfilerOrganismsURL = d.GProfilerOrganismsURL
	}
	if e.ReactomeURL == "" {
		e.ReactomeURL = d.ReactomeURL
	}
	if e.ReactomeSpeciesURL == "" {
		e.ReactomeSpeciesURL = d.ReactomeSpeciesURL
	}
	if e.TimeoutSeconds <= 0 {
		e.TimeoutSeconds = d.TimeoutSeconds
	}
	if e.DefaultOrganism == "" {
		e.DefaultOrganism = d.DefaultOrganism
	}
	if e.MaxConcurrent <= 0 {
		e.MaxConcurrent = d.MaxConcurrent
	}
	if e.SQLitePath == "" {
		e.SQLitePath = d.SQLitePath
	}
	if e.RetentionDays <= 0 {
		e.RetentionDays = d.RetentionDays
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BIOPARETO_SQLITE_PATH"); v != "" {
		cfg.Enrichment.SQLitePath = v
	}
	if v := os.Getenv("BIOPARETO_ENRICHMENT_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Enrichment.TimeoutSeconds = secs
		}
	}
}
