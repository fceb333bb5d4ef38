package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/virodata/poxbase/internal/db"
)

// Config is the full application configuration.
type Config struct {
	DB      db.Config
	Server  ServerConfig
	Unified UnifiedConfig
	GBIF    GBIFConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// UnifiedConfig tunes the unified filter engine.
type UnifiedConfig struct {
	MaxFilters  int
	SearchDepth int
}

// GBIFConfig controls species name resolution.
type GBIFConfig struct {
	Enabled       bool
	BaseURL       string
	MinConfidence int
}

// Load reads config.yaml from configPath, with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Config{
		DB: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Unified: UnifiedConfig{},
		GBIF: GBIFConfig{
			Enabled: true,
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("POXBASE")

	// Map nested keys to flat env vars
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("gbif.enabled")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("unified.max_filters") {
		cfg.Unified.MaxFilters = v.GetInt("unified.max_filters")
	}
	if v.IsSet("unified.search_depth") {
		cfg.Unified.SearchDepth = v.GetInt("unified.search_depth")
	}
	if v.IsSet("gbif.enabled") {
		cfg.GBIF.Enabled = v.GetBool("gbif.enabled")
	}
	if v.IsSet("gbif.base_url") {
		cfg.GBIF.BaseURL = v.GetString("gbif.base_url")
	}
	if v.IsSet("gbif.min_confidence") {
		cfg.GBIF.MinConfidence = v.GetInt("gbif.min_confidence")
	}

	return cfg, nil
}
