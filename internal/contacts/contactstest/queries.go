// Package contactstest provides an in-memory implementation of contacts.Queries that
// enforces the same tenant uniqueness indexes as the PostgreSQL schema.
package contactstest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/veriops/contactsync/internal/contacts"
	"github.com/veriops/contactsync/internal/db/sqlc"
)

var _ contacts.Queries = (*Queries)(nil)

// Queries is safe for concurrent use.
type Queries struct {
	mu        sync.Mutex
	contacts  []sqlc.Contact
	companies []sqlc.Company
	clock     time.Time

	// FailCreate, when set, is returned by CreateContact before any uniqueness check.
	FailCreate error
}

func New() *Queries {
	return &Queries{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Contacts returns a copy of all stored rows in insertion order.
func (q *Queries) Contacts() []sqlc.Contact {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]sqlc.Contact, len(q.contacts))
	copy(out, q.contacts)
	return out
}

// AddCompany stores a company row and returns its id.
func (q *Queries) AddCompany(tenantID pgtype.UUID, name, crmCompanyID string) pgtype.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := newID()
	q.companies = append(q.companies, sqlc.Company{
		ID:           id,
		TenantID:     tenantID,
		Name:         text(name),
		CrmCompanyID: text(crmCompanyID),
		CreatedAt:    q.tick(),
	})
	return id
}

func (q *Queries) GetContactByID(_ context.Context, id pgtype.UUID) (sqlc.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return sqlc.Contact{}, pgx.ErrNoRows
}

func (q *Queries) FindContactByPhoneOrEmail(_ context.Context, arg sqlc.FindContactByPhoneOrEmailParams) (sqlc.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var matches []sqlc.Contact
	for _, c := range q.contacts {
		if c.TenantID != arg.TenantID {
			continue
		}
		if phoneMatch(c, arg.Phone) || emailMatch(c, arg.Email) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return sqlc.Contact{}, pgx.ErrNoRows
	}
	sort.SliceStable(matches, func(i, j int) bool {
		pi, pj := phoneMatch(matches[i], arg.Phone), phoneMatch(matches[j], arg.Phone)
		if pi != pj {
			return pi
		}
		return matches[i].CreatedAt.Time.Before(matches[j].CreatedAt.Time)
	})
	return matches[0], nil
}

func (q *Queries) GetContactByHelpdeskID(_ context.Context, arg sqlc.GetContactByHelpdeskIDParams) (sqlc.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.contacts {
		if c.TenantID == arg.TenantID && sameText(c.HelpdeskContactID, arg.HelpdeskContactID) {
			return c, nil
		}
	}
	return sqlc.Contact{}, pgx.ErrNoRows
}

func (q *Queries) GetContactByCRMPersonID(_ context.Context, arg sqlc.GetContactByCRMPersonIDParams) (sqlc.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.contacts {
		if c.TenantID == arg.TenantID && sameText(c.CrmPersonID, arg.CrmPersonID) {
			return c, nil
		}
	}
	return sqlc.Contact{}, pgx.ErrNoRows
}

func (q *Queries) CreateContact(_ context.Context, arg sqlc.CreateContactParams) (sqlc.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailCreate != nil {
		return sqlc.Contact{}, q.FailCreate
	}
	now := q.tick()
	row := sqlc.Contact{
		ID:                newID(),
		TenantID:          arg.TenantID,
		FirstName:         arg.FirstName,
		LastName:          arg.LastName,
		Email:             arg.Email,
		Phone:             arg.Phone,
		City:              arg.City,
		JobTitle:          arg.JobTitle,
		LinkedinUrl:       arg.LinkedinUrl,
		FacebookUrl:       arg.FacebookUrl,
		InstagramUrl:      arg.InstagramUrl,
		GithubUrl:         arg.GithubUrl,
		XUrl:              arg.XUrl,
		CompanyID:         arg.CompanyID,
		HelpdeskContactID: arg.HelpdeskContactID,
		CrmPersonID:       arg.CrmPersonID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := q.checkUnique(row); err != nil {
		return sqlc.Contact{}, err
	}
	q.contacts = append(q.contacts, row)
	return row, nil
}

func (q *Queries) UpdateContact(_ context.Context, arg sqlc.UpdateContactParams) (sqlc.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.index(arg.ID, arg.TenantID)
	if idx < 0 {
		return sqlc.Contact{}, pgx.ErrNoRows
	}
	row := q.contacts[idx]
	row.FirstName = arg.FirstName
	row.LastName = arg.LastName
	row.Email = arg.Email
	row.Phone = arg.Phone
	row.City = arg.City
	row.JobTitle = arg.JobTitle
	row.LinkedinUrl = arg.LinkedinUrl
	row.FacebookUrl = arg.FacebookUrl
	row.InstagramUrl = arg.InstagramUrl
	row.GithubUrl = arg.GithubUrl
	row.XUrl = arg.XUrl
	row.CompanyID = arg.CompanyID
	row.HelpdeskContactID = arg.HelpdeskContactID
	row.CrmPersonID = arg.CrmPersonID
	row.UpdatedAt = q.tick()
	if err := q.checkUnique(row); err != nil {
		return sqlc.Contact{}, err
	}
	q.contacts[idx] = row
	return row, nil
}

func (q *Queries) SetContactCRMPersonID(_ context.Context, arg sqlc.SetContactCRMPersonIDParams) (sqlc.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.index(arg.ID, arg.TenantID)
	if idx < 0 {
		return sqlc.Contact{}, pgx.ErrNoRows
	}
	row := q.contacts[idx]
	row.CrmPersonID = arg.CrmPersonID
	row.UpdatedAt = q.tick()
	if err := q.checkUnique(row); err != nil {
		return sqlc.Contact{}, err
	}
	q.contacts[idx] = row
	return row, nil
}

func (q *Queries) ClearContactCRMPersonID(_ context.Context, arg sqlc.ClearContactCRMPersonIDParams) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for i, c := range q.contacts {
		if c.TenantID == arg.TenantID && sameText(c.CrmPersonID, arg.CrmPersonID) {
			q.contacts[i].CrmPersonID = pgtype.Text{}
			q.contacts[i].UpdatedAt = q.tick()
			n++
		}
	}
	return n, nil
}

func (q *Queries) GetCompanyByCRMID(_ context.Context, arg sqlc.GetCompanyByCRMIDParams) (sqlc.Company, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.companies {
		if c.TenantID == arg.TenantID && sameText(c.CrmCompanyID, arg.CrmCompanyID) {
			return c, nil
		}
	}
	return sqlc.Company{}, pgx.ErrNoRows
}

func (q *Queries) index(id, tenantID pgtype.UUID) int {
	for i, c := range q.contacts {
		if c.ID == id && c.TenantID == tenantID {
			return i
		}
	}
	return -1
}

func (q *Queries) checkUnique(row sqlc.Contact) error {
	for _, c := range q.contacts {
		if c.ID == row.ID || c.TenantID != row.TenantID {
			continue
		}
		switch {
		case row.Email.Valid && emailMatch(c, row.Email):
			return violation(contacts.ConstraintEmail)
		case row.Phone.Valid && phoneMatch(c, row.Phone):
			return violation(contacts.ConstraintPhone)
		case sameText(c.HelpdeskContactID, row.HelpdeskContactID):
			return violation(contacts.ConstraintHelpdeskID)
		case sameText(c.CrmPersonID, row.CrmPersonID):
			return violation(contacts.ConstraintCRMPersonID)
		}
	}
	return nil
}

func (q *Queries) tick() pgtype.Timestamptz {
	q.clock = q.clock.Add(time.Millisecond)
	return pgtype.Timestamptz{Time: q.clock, Valid: true}
}

func phoneMatch(c sqlc.Contact, phone pgtype.Text) bool {
	return sameText(c.Phone, phone)
}

func emailMatch(c sqlc.Contact, email pgtype.Text) bool {
	return c.Email.Valid && email.Valid && strings.EqualFold(c.Email.String, email.String)
}

func sameText(a, b pgtype.Text) bool {
	return a.Valid && b.Valid && a.String == b.String
}

func violation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
