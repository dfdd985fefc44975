// Package tenants resolves tenants and their per-tenant remote credentials.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/veriops/contactsync/internal/db"
	"github.com/veriops/contactsync/internal/db/sqlc"
)

// Queries is the subset of sqlc.Queries used by Service.
type Queries interface {
	GetTenantByHelpdeskAccount(ctx context.Context, helpdeskAccountID int64) (sqlc.Tenant, error)
	GetTenantByID(ctx context.Context, id pgtype.UUID) (sqlc.Tenant, error)
}

type Service struct {
	queries Queries
	logger  *slog.Logger
}

func NewService(log *slog.Logger, queries Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "tenants")),
	}
}

func (s *Service) GetByHelpdeskAccount(ctx context.Context, accountID int64) (Tenant, error) {
	if s.queries == nil {
		return Tenant{}, fmt.Errorf("tenant queries not configured")
	}
	if accountID <= 0 {
		return Tenant{}, ErrTenantNotFound
	}
	row, err := s.queries.GetTenantByHelpdeskAccount(ctx, accountID)
	if err != nil {
		return Tenant{}, notFound(err)
	}
	return normalizeTenant(row), nil
}

func (s *Service) GetByID(ctx context.Context, tenantID string) (Tenant, error) {
	if s.queries == nil {
		return Tenant{}, fmt.Errorf("tenant queries not configured")
	}
	pgID, err := db.ParseUUID(tenantID)
	if err != nil {
		return Tenant{}, ErrTenantNotFound
	}
	row, err := s.queries.GetTenantByID(ctx, pgID)
	if err != nil {
		return Tenant{}, notFound(err)
	}
	return normalizeTenant(row), nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTenantNotFound
	}
	return err
}

func normalizeTenant(row sqlc.Tenant) Tenant {
	return Tenant{
		ID:                db.UUIDToString(row.ID),
		Name:              row.Name,
		CRMBaseURL:        db.TextToString(row.CrmBaseUrl),
		CRMAPIKey:         db.TextToString(row.CrmApiKey),
		HelpdeskAccountID: row.HelpdeskAccountID,
		HelpdeskAPIURL:    db.TextToString(row.HelpdeskApiUrl),
		HelpdeskBotToken:  db.TextToString(row.HelpdeskBotToken),
		CRMWebhookSecret:  db.TextToString(row.CrmWebhookSecret),
	}
}
