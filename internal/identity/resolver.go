// Package identity decides which local contact and which CRM person an inbound contact
// event refers to.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veriops/contactsync/internal/contacts"
	"github.com/veriops/contactsync/internal/crm"
	"github.com/veriops/contactsync/internal/phone"
)

// Source records where a remote id came from.
type Source string

const (
	SourceNone   Source = ""
	SourceEvent  Source = "event"
	SourceLocal  Source = "local"
	SourceSearch Source = "search"
)

// LocalStore is the read side of the contacts repository.
type LocalStore interface {
	Find(ctx context.Context, tenantID string, lookup contacts.Lookup) (contacts.Contact, error)
	FindCompanyByCRMID(ctx context.Context, tenantID, crmCompanyID string) (contacts.Company, error)
}

// Searcher finds CRM people by filter. *crm.Client implements it.
type Searcher interface {
	Search(ctx context.Context, filter crm.Filter) ([]crm.Person, error)
}

// Query holds the identity-bearing fields of an event.
type Query struct {
	Email             string
	Phone             string
	HelpdeskContactID string
	CRMPersonID       string
	CRMCompanyID      string
}

// Resolution is the outcome of Resolve. Empty fields mean no match.
type Resolution struct {
	Local        *contacts.Contact
	RemoteID     string
	RemoteSource Source
	// Remote is the matched record when RemoteSource is SourceSearch.
	Remote *crm.Person
	// Searched is true when the CRM was queried. SearchErr holds a failed query; the
	// remote side is then unknown rather than absent.
	Searched  bool
	SearchErr error
	// CompanyID is the local company linked to the event's CRM company id.
	CompanyID string
}

// RemoteUnknown reports whether a CRM search failed, so creating a person could duplicate one.
func (r Resolution) RemoteUnknown() bool {
	return r.RemoteID == "" && r.SearchErr != nil
}

type Resolver struct {
	store  LocalStore
	logger *slog.Logger
}

func NewResolver(log *slog.Logger, store LocalStore) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: log.With(slog.String("service", "identity")),
	}
}

// Resolve finds the local contact and the CRM person for q within the tenant.
//
// The remote id is taken, in order, from the event, from the local contact's stored
// link, or from a CRM search by email or phone (oldest match wins). remote may be nil,
// in which case no search is made. Resolve only reads.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, q Query, remote Searcher) (Resolution, error) {
	q = normalizeQuery(q)
	var res Resolution

	local, err := r.store.Find(ctx, tenantID, contacts.Lookup{
		Phone:             q.Phone,
		Email:             q.Email,
		HelpdeskContactID: q.HelpdeskContactID,
		CRMPersonID:       q.CRMPersonID,
	})
	switch {
	case err == nil:
		res.Local = &local
	case errors.Is(err, contacts.ErrNotFound):
	default:
		return Resolution{}, fmt.Errorf("local lookup: %w", err)
	}

	if q.CRMCompanyID != "" {
		company, err := r.store.FindCompanyByCRMID(ctx, tenantID, q.CRMCompanyID)
		switch {
		case err == nil:
			res.CompanyID = company.ID
		case errors.Is(err, contacts.ErrNotFound):
		default:
			r.logger.Warn("company lookup failed",
				slog.String("tenant_id", tenantID),
				slog.String("crm_company_id", q.CRMCompanyID),
				slog.Any("error", err),
			)
		}
	}

	switch {
	case q.CRMPersonID != "":
		res.RemoteID, res.RemoteSource = q.CRMPersonID, SourceEvent
		return res, nil
	case res.Local != nil && res.Local.CRMPersonID != "":
		res.RemoteID, res.RemoteSource = res.Local.CRMPersonID, SourceLocal
		return res, nil
	}

	if remote == nil {
		return res, nil
	}
	filter := crm.IdentityFilter(q.Email, phone.Normalize(q.Phone))
	if filter == "" {
		return res, nil
	}
	res.Searched = true
	people, err := remote.Search(ctx, filter)
	if err != nil {
		res.SearchErr = err
		r.logger.Warn("crm search failed",
			slog.String("tenant_id", tenantID),
			slog.String("filter", string(filter)),
			slog.Any("error", err),
		)
		return res, nil
	}
	for i := range people {
		if people[i].ID != "" {
			res.RemoteID, res.RemoteSource = people[i].ID, SourceSearch
			res.Remote = &people[i]
			break
		}
	}
	return res, nil
}

func normalizeQuery(q Query) Query {
	return Query{
		Email:             strings.ToLower(strings.TrimSpace(q.Email)),
		Phone:             strings.TrimSpace(q.Phone),
		HelpdeskContactID: strings.TrimSpace(q.HelpdeskContactID),
		CRMPersonID:       strings.TrimSpace(q.CRMPersonID),
		CRMCompanyID:      strings.TrimSpace(q.CRMCompanyID),
	}
}
