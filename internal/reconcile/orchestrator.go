// Package reconcile drives one contact event through the local store, the CRM and the
// helpdesk link-back.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veriops/contactsync/internal/contacts"
	"github.com/veriops/contactsync/internal/crm"
	"github.com/veriops/contactsync/internal/helpdesk"
	"github.com/veriops/contactsync/internal/identity"
	"github.com/veriops/contactsync/internal/logger"
	"github.com/veriops/contactsync/internal/payload"
	"github.com/veriops/contactsync/internal/tenants"
)

// Store is the contacts repository as used by the orchestrator.
type Store interface {
	identity.LocalStore
	Create(ctx context.Context, tenantID string, fields contacts.Fields) (contacts.CreateResult, error)
	UpdateKeepingConflicts(ctx context.Context, tenantID, contactID string, fields, stored contacts.Fields) (contacts.UpdateResult, error)
	LinkCRMPerson(ctx context.Context, tenantID, contactID, crmPersonID string) (contacts.Contact, error)
}

// CRM is the per-tenant people client. *crm.Client implements it.
type CRM interface {
	identity.Searcher
	Create(ctx context.Context, body payload.Body) (string, error)
	Update(ctx context.Context, id string, body payload.Body) (string, error)
}

// Notifier writes the CRM id back onto the helpdesk contact. *helpdesk.Client implements it.
type Notifier interface {
	SetCustomAttributes(ctx context.Context, accountID int64, contactID string, attrs map[string]string) error
}

type (
	CRMFactory      func(tenant tenants.Tenant) (CRM, error)
	NotifierFactory func(tenant tenants.Tenant) (Notifier, error)
)

// Config holds orchestrator settings.
type Config struct {
	Payload payload.Options
	// LinkAttribute is the helpdesk custom attribute that receives the CRM id. The webhook
	// parser must read the same attribute (helpdesk.Parser.LinkAttribute).
	LinkAttribute string
}

type Orchestrator struct {
	store       Store
	resolver    *identity.Resolver
	crmFor      CRMFactory
	notifierFor NotifierFactory
	cfg         Config
	logger      *slog.Logger
}

func NewOrchestrator(log *slog.Logger, store Store, crmFor CRMFactory, notifierFor NotifierFactory, cfg Config) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.LinkAttribute == "" {
		cfg.LinkAttribute = helpdesk.DefaultLinkAttribute
	}
	return &Orchestrator{
		store:       store,
		resolver:    identity.NewResolver(log, store),
		crmFor:      crmFor,
		notifierFor: notifierFor,
		cfg:         cfg,
		logger:      log,
	}
}

// run carries the state of one event through the legs.
type run struct {
	o       *Orchestrator
	tenant  tenants.Tenant
	event   helpdesk.ContactEvent
	person  payload.Person
	opts    payload.Options
	out     Outcome
	errs    []error
	logger  *slog.Logger
	contact contacts.Contact
}

// Handle processes a contact event for tenant. It never returns an error: failures are
// logged and recorded on the Outcome. The local record advances even when remote legs fail.
// A request-scoped logger stored in ctx (logger.WithContext) is used when present.
func (o *Orchestrator) Handle(ctx context.Context, tenant tenants.Tenant, ev helpdesk.ContactEvent) Outcome {
	r := &run{
		o:      o,
		tenant: tenant,
		event:  ev,
		person: ev.Person(),
		opts:   o.cfg.Payload,
		out: Outcome{
			State:    StateResolving,
			Local:    LegSkipped,
			Remote:   LegSkipped,
			LinkBack: LegSkipped,
			Notify:   LegSkipped,
		},
		logger: logger.FromContextOr(ctx, o.logger).With(
			slog.String("service", "reconcile"),
			slog.String("tenant_id", tenant.ID),
			slog.String("event", ev.EventType),
			slog.String("helpdesk_contact_id", ev.ContactID),
		),
	}
	if ev.Identifier != "" {
		r.opts.FallbackName = ev.Identifier
	}
	r.execute(ctx)
	r.out.Err = errors.Join(r.errs...)
	r.logger.Info("contact event handled",
		slog.String("state", string(r.out.State)),
		slog.String("contact_id", r.out.ContactID),
		slog.String("crm_person_id", r.out.CRMPersonID),
		slog.String("local", string(r.out.Local)),
		slog.String("remote", string(r.out.Remote)),
		slog.String("link_back", string(r.out.LinkBack)),
		slog.String("notify", string(r.out.Notify)),
	)
	return r.out
}

func (r *run) execute(ctx context.Context) {
	if strings.TrimSpace(r.tenant.ID) == "" {
		r.abort("event has no resolvable tenant", nil)
		return
	}
	if !r.event.HasIdentity() {
		r.abort("event has no email or phone", nil)
		return
	}

	remote := r.remoteClient()
	res, err := r.o.resolver.Resolve(ctx, r.tenant.ID, identity.Query{
		Email:             r.event.Email,
		Phone:             r.event.Phone,
		HelpdeskContactID: r.event.ContactID,
		CRMPersonID:       r.event.CRMPersonID,
		CRMCompanyID:      r.event.CRMCompanyID,
	}, remote)
	if err != nil {
		r.abort("identity resolution failed", err)
		return
	}

	r.out.State = StateLocalUpsert
	if !r.upsertLocal(ctx, res) {
		return
	}

	r.out.State = StateRemoteUpsert
	crmID := r.upsertRemote(ctx, remote, res)

	r.out.State = StateLinkBack
	r.linkBack(ctx, crmID)
	r.notify(ctx, crmID)

	r.out.State = StateDone
}

func (r *run) remoteClient() CRM {
	if !r.tenant.HasCRM() || r.o.crmFor == nil {
		return nil
	}
	client, err := r.o.crmFor(r.tenant)
	if err != nil {
		r.fail(&r.out.Remote, "crm client unavailable", err)
		return nil
	}
	return client
}

func (r *run) upsertLocal(ctx context.Context, res identity.Resolution) bool {
	fields := payload.LocalFields(r.person, r.opts, res.CompanyID)
	fields.CRMPersonID = r.event.CRMPersonID

	if res.Local != nil {
		stored := res.Local.Fields
		if !payload.HasName(r.person.Name) {
			fields.FirstName, fields.LastName = stored.FirstName, stored.LastName
		}
		updated, err := r.o.store.UpdateKeepingConflicts(ctx, r.tenant.ID, res.Local.ID, contacts.CarryLinks(fields, stored), stored)
		if err != nil {
			r.out.Local = LegFailed
			r.abort("local update failed", fmt.Errorf("update contact %s: %w", res.Local.ID, err))
			return false
		}
		if len(updated.Kept) > 0 {
			r.logger.Warn("identity values kept on the matched contact",
				slog.String("contact_id", res.Local.ID),
				slog.Any("columns", updated.Kept))
		}
		r.contact = updated.Contact
		r.out.Local = LegUpdated
	} else {
		created, err := r.o.store.Create(ctx, r.tenant.ID, fields)
		if err != nil {
			r.out.Local = LegFailed
			r.abort("local create failed", fmt.Errorf("create contact: %w", err))
			return false
		}
		r.contact = created.Contact
		r.out.Local = LegCreated
		if created.Merged {
			r.out.Local = LegMerged
		}
	}
	r.out.ContactID = r.contact.ID
	r.out.CRMPersonID = r.contact.CRMPersonID
	r.logger = r.logger.With(slog.String("contact_id", r.contact.ID))
	return true
}

// upsertRemote returns the CRM id confirmed or created by this event, or "".
func (r *run) upsertRemote(ctx context.Context, remote CRM, res identity.Resolution) string {
	if remote == nil {
		return ""
	}
	if res.RemoteUnknown() {
		r.logger.Warn("crm upsert skipped: search failed, creating could duplicate a person",
			slog.Any("error", res.SearchErr))
		r.out.Remote = LegFailed
		r.errs = append(r.errs, fmt.Errorf("crm search: %w", res.SearchErr))
		return ""
	}

	remoteID := res.RemoteID
	if remoteID == "" && r.contact.CRMPersonID != "" {
		remoteID = r.contact.CRMPersonID
	}
	if remoteID != "" {
		id, err := remote.Update(ctx, remoteID, payload.BuildUpdate(r.person, r.opts))
		switch {
		case err == nil:
			r.out.Remote = LegUpdated
			return id
		case errors.Is(err, crm.ErrNotFound):
			r.logger.Info("crm person gone, creating a new one", slog.String("crm_person_id", remoteID))
		default:
			r.fail(&r.out.Remote, "crm update failed", err, slog.String("crm_person_id", remoteID))
			return ""
		}
	}

	id, err := remote.Create(ctx, payload.BuildCreate(r.person, r.opts))
	if err != nil {
		r.fail(&r.out.Remote, "crm create failed", err)
		return ""
	}
	r.out.Remote = LegCreated
	if id == "" {
		r.logger.Warn("crm person created but its id could not be read; next event will search again")
	}
	return id
}

func (r *run) linkBack(ctx context.Context, crmID string) {
	if crmID == "" || crmID == r.contact.CRMPersonID {
		return
	}
	linked, err := r.o.store.LinkCRMPerson(ctx, r.tenant.ID, r.contact.ID, crmID)
	if err != nil {
		r.fail(&r.out.LinkBack, "local link to crm person failed", err, slog.String("crm_person_id", crmID))
		return
	}
	r.contact = linked
	r.out.CRMPersonID = linked.CRMPersonID
	r.out.LinkBack = LegUpdated
}

func (r *run) notify(ctx context.Context, crmID string) {
	if crmID == "" || crmID == r.event.CRMPersonID || r.event.ContactID == "" {
		return
	}
	if !r.tenant.HasHelpdeskAPI() || r.o.notifierFor == nil {
		return
	}
	notifier, err := r.o.notifierFor(r.tenant)
	if err != nil {
		r.fail(&r.out.Notify, "helpdesk client unavailable", err)
		return
	}
	attrs := map[string]string{r.o.cfg.LinkAttribute: crmID}
	if err := notifier.SetCustomAttributes(ctx, r.event.AccountID, r.event.ContactID, attrs); err != nil {
		r.fail(&r.out.Notify, "helpdesk link-back failed", err, slog.String("crm_person_id", crmID))
		return
	}
	r.out.Notify = LegUpdated
}

func (r *run) abort(reason string, err error) {
	r.out.State = StateAborted
	r.out.Reason = reason
	if err != nil {
		r.errs = append(r.errs, err)
		r.logger.Error("contact event aborted", slog.String("reason", reason), slog.Any("error", err))
		return
	}
	r.logger.Info("contact event ignored", slog.String("reason", reason))
}

func (r *run) fail(leg *LegStatus, msg string, err error, attrs ...any) {
	*leg = LegFailed
	r.errs = append(r.errs, fmt.Errorf("%s: %w", msg, err))
	r.logger.Warn(msg, append(attrs, slog.Any("error", err))...)
}
