package tenants

import (
	"context"
	"errors"
	"strings"
)

// ErrTenantNotFound is returned when no tenant matches the lookup.
var ErrTenantNotFound = errors.New("tenant not found")

// Tenant is the isolation boundary and carries the per-tenant remote credentials.
type Tenant struct {
	ID                string
	Name              string
	CRMBaseURL        string
	CRMAPIKey         string
	HelpdeskAccountID int64
	HelpdeskAPIURL    string
	HelpdeskBotToken  string
	// CRMWebhookSecret signs CRM webhook deliveries. Deliveries for a tenant without one are refused.
	CRMWebhookSecret string
}

// HasCRM reports whether the tenant is configured to sync with the CRM.
func (t Tenant) HasCRM() bool {
	return strings.TrimSpace(t.CRMBaseURL) != "" && strings.TrimSpace(t.CRMAPIKey) != ""
}

// HasHelpdeskAPI reports whether link-back calls can be made for the tenant.
func (t Tenant) HasHelpdeskAPI() bool {
	return strings.TrimSpace(t.HelpdeskAPIURL) != "" && strings.TrimSpace(t.HelpdeskBotToken) != ""
}

// Lookup resolves tenants. Both Service and Cache implement it.
type Lookup interface {
	GetByHelpdeskAccount(ctx context.Context, accountID int64) (Tenant, error)
	GetByID(ctx context.Context, tenantID string) (Tenant, error)
}
