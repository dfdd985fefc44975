package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/veriops/contactsync/internal/crm"
	"github.com/veriops/contactsync/internal/helpdesk"
	"github.com/veriops/contactsync/internal/logger"
	"github.com/veriops/contactsync/internal/reconcile"
	"github.com/veriops/contactsync/internal/tenants"
)

const maxWebhookBody = 1 << 20

// ContactEventHandler processes one parsed contact event. *reconcile.Orchestrator implements it.
type ContactEventHandler interface {
	Handle(ctx context.Context, tenant tenants.Tenant, ev helpdesk.ContactEvent) reconcile.Outcome
}

// WebhookResponse is the body returned to webhook senders.
type WebhookResponse struct {
	Message   string `json:"message"`
	State     string `json:"state,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
	Unlinked  int64  `json:"unlinked,omitempty"`
}

// HelpdeskWebhookHandler receives helpdesk contact webhooks.
type HelpdeskWebhookHandler struct {
	parser       helpdesk.Parser
	tenants      tenants.Lookup
	events       ContactEventHandler
	eventTimeout time.Duration
	logger       *slog.Logger
}

func NewHelpdeskWebhookHandler(log *slog.Logger, parser helpdesk.Parser, lookup tenants.Lookup, events ContactEventHandler, eventTimeout time.Duration) *HelpdeskWebhookHandler {
	if eventTimeout <= 0 {
		eventTimeout = 30 * time.Second
	}
	return &HelpdeskWebhookHandler{
		parser:       parser,
		tenants:      lookup,
		events:       events,
		eventTimeout: eventTimeout,
		logger:       log.With(slog.String("handler", "helpdesk_webhook")),
	}
}

func (h *HelpdeskWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/helpdesk", h.Receive)
}

// Receive answers 200 for every readable body, including ignored and failed events.
func (h *HelpdeskWebhookHandler) Receive(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body: "+err.Error())
	}
	ev, err := h.parser.Parse(raw)
	if err != nil {
		if errors.Is(err, helpdesk.ErrUnsupportedEvent) {
			return c.JSON(http.StatusOK, WebhookResponse{Message: "event ignored"})
		}
		requestLogger(c, h.logger).Warn("helpdesk webhook rejected", slog.Any("error", err))
		return c.JSON(http.StatusOK, WebhookResponse{Message: "invalid payload"})
	}

	contact, ok := ev.(helpdesk.ContactEvent)
	if !ok {
		return c.JSON(http.StatusOK, WebhookResponse{Message: "event ignored"})
	}
	if !contact.HasIdentity() {
		return c.JSON(http.StatusOK, WebhookResponse{Message: "no email or phone"})
	}

	log := requestLogger(c, h.logger).With(slog.Int64("account_id", contact.AccountID))
	reqCtx := c.Request().Context()
	tenant, err := h.tenants.GetByHelpdeskAccount(reqCtx, contact.AccountID)
	if err != nil {
		if errors.Is(err, tenants.ErrTenantNotFound) {
			log.Info("no tenant for helpdesk account")
			return c.JSON(http.StatusOK, WebhookResponse{Message: "unknown account"})
		}
		log.Error("tenant lookup failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, WebhookResponse{Message: "tenant lookup failed"})
	}

	// The event runs to completion even if the sender hangs up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), h.eventTimeout)
	defer cancel()
	out := h.events.Handle(logger.WithContext(ctx, log), tenant, contact)

	msg := "processed"
	if out.State == reconcile.StateAborted {
		msg = out.Reason
	} else if out.Err != nil {
		msg = "processed with errors"
	}
	return c.JSON(http.StatusOK, WebhookResponse{
		Message:   msg,
		State:     string(out.State),
		ContactID: out.ContactID,
	})
}

// CRMUnlinker clears local links to a deleted CRM person. *contacts.Service implements it.
type CRMUnlinker interface {
	UnlinkCRMPerson(ctx context.Context, tenantID, crmPersonID string) (int64, error)
}

// requestLogger tags base with the request id set by the server's RequestID middleware.
func requestLogger(c echo.Context, base *slog.Logger) *slog.Logger {
	id := c.Response().Header().Get(echo.HeaderXRequestID)
	if id == "" {
		id = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	if id == "" {
		return base
	}
	return base.With(slog.String("request_id", id))
}

// CRMWebhookHandler receives CRM record webhooks for a tenant. Deliveries must be signed
// with the tenant's webhook secret.
type CRMWebhookHandler struct {
	tenants  tenants.Lookup
	unlinker CRMUnlinker
	now      func() time.Time
	logger   *slog.Logger
}

func NewCRMWebhookHandler(log *slog.Logger, lookup tenants.Lookup, unlinker CRMUnlinker) *CRMWebhookHandler {
	return &CRMWebhookHandler{
		tenants:  lookup,
		unlinker: unlinker,
		now:      time.Now,
		logger:   log.With(slog.String("handler", "crm_webhook")),
	}
}

func (h *CRMWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/crm/:tenant_id", h.Receive)
}

type crmWebhookRequest struct {
	EventName string `json:"eventName"`
	Record    struct {
		ID        string  `json:"id"`
		DeletedAt *string `json:"deletedAt"`
	} `json:"record"`
}

func (r crmWebhookRequest) deleted() bool {
	if strings.HasSuffix(r.EventName, ".deleted") || strings.HasSuffix(r.EventName, ".destroyed") {
		return true
	}
	return r.Record.DeletedAt != nil && strings.TrimSpace(*r.Record.DeletedAt) != ""
}

func (h *CRMWebhookHandler) Receive(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := strings.TrimSpace(c.Param("tenant_id"))
	tenant, err := h.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenants.ErrTenantNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "tenant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body: "+err.Error())
	}
	hdr := c.Request().Header
	if err := crm.VerifyWebhook(tenant.CRMWebhookSecret, hdr.Get(crm.HeaderWebhookTimestamp), hdr.Get(crm.HeaderWebhookSignature),
		raw, h.now(), crm.DefaultWebhookTolerance); err != nil {
		requestLogger(c, h.logger).Warn("crm webhook rejected", slog.String("tenant_id", tenant.ID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
	}

	var req crmWebhookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if !strings.HasPrefix(req.EventName, "person.") || !req.deleted() || strings.TrimSpace(req.Record.ID) == "" {
		return c.JSON(http.StatusOK, WebhookResponse{Message: "event acknowledged"})
	}

	n, err := h.unlinker.UnlinkCRMPerson(ctx, tenant.ID, req.Record.ID)
	if err != nil {
		h.logger.Error("unlink crm person failed",
			slog.String("tenant_id", tenant.ID),
			slog.String("crm_person_id", req.Record.ID),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "unlink failed")
	}
	h.logger.Info("crm person deleted",
		slog.String("tenant_id", tenant.ID),
		slog.String("crm_person_id", req.Record.ID),
		slog.Int64("unlinked", n))
	return c.JSON(http.StatusOK, WebhookResponse{Message: "person unlinked", Unlinked: n})
}
