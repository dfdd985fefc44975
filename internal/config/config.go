// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath          = "config.toml"
	DefaultHTTPAddr            = ":8080"
	DefaultPGHost              = "127.0.0.1"
	DefaultPGPort              = 5432
	DefaultPGUser              = "postgres"
	DefaultPGDatabase          = "contactsync"
	DefaultPGSSLMode           = "disable"
	DefaultCRMTimeoutSeconds   = 10
	DefaultCRMSearchOrder      = "createdAt[AscNullsFirst]"
	DefaultHelpdeskTimeout     = 10
	DefaultLinkAttribute       = "crm_person_id"
	DefaultFallbackName        = "Helpdesk Contact"
	DefaultProvenanceSource    = "API"
	DefaultEventTimeoutSeconds = 30
	DefaultTenantTTLSeconds    = 60
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	CRM      CRMConfig      `toml:"crm"`
	Helpdesk HelpdeskConfig `toml:"helpdesk"`
	Sync     SyncConfig     `toml:"sync"`
	Cache    CacheConfig    `toml:"cache"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// CRMConfig holds the per-call timeout and search ordering hint for the CRM REST API.
// Base URL and API key are per tenant and live in the tenants table.
type CRMConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	SearchOrder    string `toml:"search_order"`
}

// HelpdeskConfig holds the link-back call timeout and the custom attribute that receives the CRM id.
type HelpdeskConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	LinkAttribute  string `toml:"link_attribute"`
}

// SyncConfig holds orchestrator defaults.
type SyncConfig struct {
	FallbackName        string `toml:"fallback_name"`
	ProvenanceSource    string `toml:"provenance_source"`
	EventTimeoutSeconds int    `toml:"event_timeout_seconds"`
}

// CacheConfig holds the tenant read-through cache TTL.
type CacheConfig struct {
	TenantTTLSeconds int `toml:"tenant_ttl_seconds"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		CRM: CRMConfig{
			TimeoutSeconds: DefaultCRMTimeoutSeconds,
			SearchOrder:    DefaultCRMSearchOrder,
		},
		Helpdesk: HelpdeskConfig{
			TimeoutSeconds: DefaultHelpdeskTimeout,
			LinkAttribute:  DefaultLinkAttribute,
		},
		Sync: SyncConfig{
			FallbackName:        DefaultFallbackName,
			ProvenanceSource:    DefaultProvenanceSource,
			EventTimeoutSeconds: DefaultEventTimeoutSeconds,
		},
		Cache: CacheConfig{
			TenantTTLSeconds: DefaultTenantTTLSeconds,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
// A missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
