// Package boot provides runtime configuration derived from the TOML config and environment.
package boot

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/veriops/contactsync/internal/config"
	"github.com/veriops/contactsync/internal/db"
)

// RuntimeConfig holds parsed runtime settings.
// Values may be overridden by environment variables (HTTP_ADDR, DATABASE_URL).
type RuntimeConfig struct {
	ServerAddr      string
	DatabaseURL     string
	CRMTimeout      time.Duration
	HelpdeskTimeout time.Duration
	EventTimeout    time.Duration
	TenantTTL       time.Duration
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if cfg.Sync.EventTimeoutSeconds <= 0 {
		return nil, errors.New("sync.event_timeout_seconds must be positive")
	}
	if cfg.CRM.TimeoutSeconds <= 0 || cfg.Helpdesk.TimeoutSeconds <= 0 {
		return nil, errors.New("remote call timeouts must be positive")
	}

	ret := &RuntimeConfig{
		ServerAddr:      cfg.Server.Addr,
		DatabaseURL:     db.DSN(cfg.Postgres),
		CRMTimeout:      seconds(cfg.CRM.TimeoutSeconds),
		HelpdeskTimeout: seconds(cfg.Helpdesk.TimeoutSeconds),
		EventTimeout:    seconds(cfg.Sync.EventTimeoutSeconds),
		TenantTTL:       seconds(cfg.Cache.TenantTTLSeconds),
	}

	if value := strings.TrimSpace(os.Getenv("HTTP_ADDR")); value != "" {
		ret.ServerAddr = value
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		ret.DatabaseURL = value
	}
	return ret, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
