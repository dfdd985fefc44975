// Package contacts is the tenant-scoped local contact repository.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/veriops/contactsync/internal/db"
	"github.com/veriops/contactsync/internal/db/sqlc"
	"github.com/veriops/contactsync/internal/logger"
)

// Queries is the subset of sqlc.Queries used by the repository.
type Queries interface {
	GetContactByID(ctx context.Context, id pgtype.UUID) (sqlc.Contact, error)
	FindContactByPhoneOrEmail(ctx context.Context, arg sqlc.FindContactByPhoneOrEmailParams) (sqlc.Contact, error)
	GetContactByHelpdeskID(ctx context.Context, arg sqlc.GetContactByHelpdeskIDParams) (sqlc.Contact, error)
	GetContactByCRMPersonID(ctx context.Context, arg sqlc.GetContactByCRMPersonIDParams) (sqlc.Contact, error)
	CreateContact(ctx context.Context, arg sqlc.CreateContactParams) (sqlc.Contact, error)
	UpdateContact(ctx context.Context, arg sqlc.UpdateContactParams) (sqlc.Contact, error)
	SetContactCRMPersonID(ctx context.Context, arg sqlc.SetContactCRMPersonIDParams) (sqlc.Contact, error)
	ClearContactCRMPersonID(ctx context.Context, arg sqlc.ClearContactCRMPersonIDParams) (int64, error)
	GetCompanyByCRMID(ctx context.Context, arg sqlc.GetCompanyByCRMIDParams) (sqlc.Company, error)
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
		logger:  log.With(slog.String("service", "contacts")),
	}
}

func (s *Service) GetByID(ctx context.Context, contactID string) (Contact, error) {
	if s.queries == nil {
		return Contact{}, fmt.Errorf("contacts queries not configured")
	}
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Contact{}, err
	}
	row, err := s.queries.GetContactByID(ctx, pgID)
	if err != nil {
		return Contact{}, notFound(err)
	}
	return normalizeContact(row), nil
}

// FindByPhoneOrEmail returns the tenant's contact whose phone equals phone or whose
// email equals email case-insensitively. A phone match wins over an email match.
func (s *Service) FindByPhoneOrEmail(ctx context.Context, tenantID, phone, email string) (Contact, error) {
	if s.queries == nil {
		return Contact{}, fmt.Errorf("contacts queries not configured")
	}
	phone = strings.TrimSpace(phone)
	email = strings.TrimSpace(email)
	if phone == "" && email == "" {
		return Contact{}, ErrNotFound
	}
	pgTenantID, err := db.ParseUUID(tenantID)
	if err != nil {
		return Contact{}, err
	}
	row, err := s.queries.FindContactByPhoneOrEmail(ctx, sqlc.FindContactByPhoneOrEmailParams{
		TenantID: pgTenantID,
		Phone:    db.Text(phone),
		Email:    db.Text(email),
	})
	if err != nil {
		return Contact{}, notFound(err)
	}
	return normalizeContact(row), nil
}

// FindByExternalID looks the contact up by helpdesk contact id, then by CRM person id.
func (s *Service) FindByExternalID(ctx context.Context, tenantID, helpdeskContactID, crmPersonID string) (Contact, error) {
	if s.queries == nil {
		return Contact{}, fmt.Errorf("contacts queries not configured")
	}
	pgTenantID, err := db.ParseUUID(tenantID)
	if err != nil {
		return Contact{}, err
	}
	if id := strings.TrimSpace(helpdeskContactID); id != "" {
		row, err := s.queries.GetContactByHelpdeskID(ctx, sqlc.GetContactByHelpdeskIDParams{
			TenantID:          pgTenantID,
			HelpdeskContactID: db.Text(id),
		})
		if err == nil {
			return normalizeContact(row), nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, err
		}
	}
	if id := strings.TrimSpace(crmPersonID); id != "" {
		row, err := s.queries.GetContactByCRMPersonID(ctx, sqlc.GetContactByCRMPersonIDParams{
			TenantID:    pgTenantID,
			CrmPersonID: db.Text(id),
		})
		if err == nil {
			return normalizeContact(row), nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, err
		}
	}
	return Contact{}, ErrNotFound
}

// Find resolves a lookup: phone/email first, external ids second.
func (s *Service) Find(ctx context.Context, tenantID string, lookup Lookup) (Contact, error) {
	if lookup.IsEmpty() {
		return Contact{}, ErrNotFound
	}
	contact, err := s.FindByPhoneOrEmail(ctx, tenantID, lookup.Phone, lookup.Email)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return contact, err
	}
	return s.FindByExternalID(ctx, tenantID, lookup.HelpdeskContactID, lookup.CRMPersonID)
}

// Create inserts a contact. When the insert violates a tenant uniqueness index because a
// concurrent event created the same identity first, the existing row is looked up and
// overwritten with fields instead, and the result is marked Merged.
func (s *Service) Create(ctx context.Context, tenantID string, fields Fields) (CreateResult, error) {
	if s.queries == nil {
		return CreateResult{}, fmt.Errorf("contacts queries not configured")
	}
	pgTenantID, err := db.ParseUUID(tenantID)
	if err != nil {
		return CreateResult{}, err
	}
	pgCompanyID, err := db.OptionalUUID(fields.CompanyID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("company id: %w", err)
	}
	row, err := s.queries.CreateContact(ctx, sqlc.CreateContactParams{
		TenantID:          pgTenantID,
		FirstName:         db.Text(fields.FirstName),
		LastName:          db.Text(fields.LastName),
		Email:             db.Text(fields.Email),
		Phone:             db.Text(fields.Phone),
		City:              db.Text(fields.City),
		JobTitle:          db.Text(fields.JobTitle),
		LinkedinUrl:       db.Text(fields.LinkedinURL),
		FacebookUrl:       db.Text(fields.FacebookURL),
		InstagramUrl:      db.Text(fields.InstagramURL),
		GithubUrl:         db.Text(fields.GithubURL),
		XUrl:              db.Text(fields.XURL),
		CompanyID:         pgCompanyID,
		HelpdeskContactID: db.Text(fields.HelpdeskContactID),
		CrmPersonID:       db.Text(fields.CRMPersonID),
	})
	if err == nil {
		return CreateResult{Contact: normalizeContact(row)}, nil
	}
	if !db.IsUniqueViolation(err) {
		return CreateResult{}, err
	}

	logger.FromContextOr(ctx, s.logger).Info("contact insert lost uniqueness race; updating existing row",
		slog.String("tenant_id", tenantID),
		slog.String("constraint", db.ConstraintName(err)),
	)
	existing, findErr := s.Find(ctx, tenantID, Lookup{
		Phone:             fields.Phone,
		Email:             fields.Email,
		HelpdeskContactID: fields.HelpdeskContactID,
		CRMPersonID:       fields.CRMPersonID,
	})
	if findErr != nil {
		return CreateResult{}, fmt.Errorf("create contact: %w (fallback lookup: %v)", err, findErr)
	}
	updated, err := s.UpdateKeepingConflicts(ctx, tenantID, existing.ID, CarryLinks(fields, existing.Fields), existing.Fields)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create contact fallback update: %w", err)
	}
	return CreateResult{Contact: updated.Contact, Merged: true}, nil
}

// Update overwrites every mutable column of the contact. Blank fields become NULL.
func (s *Service) Update(ctx context.Context, tenantID, contactID string, fields Fields) (Contact, error) {
	if s.queries == nil {
		return Contact{}, fmt.Errorf("contacts queries not configured")
	}
	pgTenantID, err := db.ParseUUID(tenantID)
	if err != nil {
		return Contact{}, err
	}
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Contact{}, err
	}
	pgCompanyID, err := db.OptionalUUID(fields.CompanyID)
	if err != nil {
		return Contact{}, fmt.Errorf("company id: %w", err)
	}
	row, err := s.queries.UpdateContact(ctx, sqlc.UpdateContactParams{
		ID:                pgID,
		TenantID:          pgTenantID,
		FirstName:         db.Text(fields.FirstName),
		LastName:          db.Text(fields.LastName),
		Email:             db.Text(fields.Email),
		Phone:             db.Text(fields.Phone),
		City:              db.Text(fields.City),
		JobTitle:          db.Text(fields.JobTitle),
		LinkedinUrl:       db.Text(fields.LinkedinURL),
		FacebookUrl:       db.Text(fields.FacebookURL),
		InstagramUrl:      db.Text(fields.InstagramURL),
		GithubUrl:         db.Text(fields.GithubURL),
		XUrl:              db.Text(fields.XURL),
		CompanyID:         pgCompanyID,
		HelpdeskContactID: db.Text(fields.HelpdeskContactID),
		CrmPersonID:       db.Text(fields.CRMPersonID),
	})
	if err != nil {
		return Contact{}, notFound(err)
	}
	return normalizeContact(row), nil
}

// UpdateKeepingConflicts behaves like Update, except that an identity value already owned
// by another contact of the tenant is not moved: the column keeps its stored value and the
// update is retried. Each identity column is given up at most once.
func (s *Service) UpdateKeepingConflicts(ctx context.Context, tenantID, contactID string, fields, stored Fields) (UpdateResult, error) {
	var kept []string
	for {
		contact, err := s.Update(ctx, tenantID, contactID, fields)
		if err == nil {
			return UpdateResult{Contact: contact, Kept: kept}, nil
		}
		if !db.IsUniqueViolation(err) {
			return UpdateResult{}, err
		}
		constraint := db.ConstraintName(err)
		column, ok := keepStored(&fields, stored, constraint)
		if !ok || slices.Contains(kept, column) {
			return UpdateResult{}, err
		}
		kept = append(kept, column)
		logger.FromContextOr(ctx, s.logger).Warn("identity value owned by another contact; keeping stored value",
			slog.String("tenant_id", tenantID),
			slog.String("contact_id", contactID),
			slog.String("constraint", constraint),
		)
	}
}

// keepStored resets the column guarded by constraint to its stored value.
func keepStored(fields *Fields, stored Fields, constraint string) (string, bool) {
	switch constraint {
	case ConstraintEmail:
		fields.Email = stored.Email
		return "email", true
	case ConstraintPhone:
		fields.Phone = stored.Phone
		return "phone", true
	case ConstraintHelpdeskID:
		fields.HelpdeskContactID = stored.HelpdeskContactID
		return "helpdesk_contact_id", true
	case ConstraintCRMPersonID:
		fields.CRMPersonID = stored.CRMPersonID
		return "crm_person_id", true
	default:
		return "", false
	}
}

// LinkCRMPerson stores the CRM person id on the contact.
func (s *Service) LinkCRMPerson(ctx context.Context, tenantID, contactID, crmPersonID string) (Contact, error) {
	if s.queries == nil {
		return Contact{}, fmt.Errorf("contacts queries not configured")
	}
	pgTenantID, err := db.ParseUUID(tenantID)
	if err != nil {
		return Contact{}, err
	}
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Contact{}, err
	}
	crmPersonID = strings.TrimSpace(crmPersonID)
	if crmPersonID == "" {
		return Contact{}, fmt.Errorf("crm person id is required")
	}
	row, err := s.queries.SetContactCRMPersonID(ctx, sqlc.SetContactCRMPersonIDParams{
		ID:          pgID,
		TenantID:    pgTenantID,
		CrmPersonID: db.Text(crmPersonID),
	})
	if err != nil {
		return Contact{}, notFound(err)
	}
	return normalizeContact(row), nil
}

// UnlinkCRMPerson clears the link to a CRM person that no longer exists and returns
// the number of contacts affected.
func (s *Service) UnlinkCRMPerson(ctx context.Context, tenantID, crmPersonID string) (int64, error) {
	if s.queries == nil {
		return 0, fmt.Errorf("contacts queries not configured")
	}
	pgTenantID, err := db.ParseUUID(tenantID)
	if err != nil {
		return 0, err
	}
	crmPersonID = strings.TrimSpace(crmPersonID)
	if crmPersonID == "" {
		return 0, nil
	}
	return s.queries.ClearContactCRMPersonID(ctx, sqlc.ClearContactCRMPersonIDParams{
		TenantID:    pgTenantID,
		CrmPersonID: db.Text(crmPersonID),
	})
}

// FindCompanyByCRMID returns the tenant's company linked to the given CRM company id.
func (s *Service) FindCompanyByCRMID(ctx context.Context, tenantID, crmCompanyID string) (Company, error) {
	if s.queries == nil {
		return Company{}, fmt.Errorf("contacts queries not configured")
	}
	crmCompanyID = strings.TrimSpace(crmCompanyID)
	if crmCompanyID == "" {
		return Company{}, ErrNotFound
	}
	pgTenantID, err := db.ParseUUID(tenantID)
	if err != nil {
		return Company{}, err
	}
	row, err := s.queries.GetCompanyByCRMID(ctx, sqlc.GetCompanyByCRMIDParams{
		TenantID:     pgTenantID,
		CrmCompanyID: db.Text(crmCompanyID),
	})
	if err != nil {
		return Company{}, notFound(err)
	}
	return Company{
		ID:                db.UUIDToString(row.ID),
		TenantID:          db.UUIDToString(row.TenantID),
		Name:              db.TextToString(row.Name),
		HelpdeskCompanyID: db.TextToString(row.HelpdeskCompanyID),
		CRMCompanyID:      db.TextToString(row.CrmCompanyID),
	}, nil
}

// CarryLinks returns incoming with its external ids filled from stored where incoming
// leaves them blank. Links are only ever replaced, never cleared, by an event.
func CarryLinks(incoming, stored Fields) Fields {
	if incoming.HelpdeskContactID == "" {
		incoming.HelpdeskContactID = stored.HelpdeskContactID
	}
	if incoming.CRMPersonID == "" {
		incoming.CRMPersonID = stored.CRMPersonID
	}
	return incoming
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func normalizeContact(row sqlc.Contact) Contact {
	return Contact{
		ID:        db.UUIDToString(row.ID),
		TenantID:  db.UUIDToString(row.TenantID),
		CreatedAt: db.TimeFromPg(row.CreatedAt),
		UpdatedAt: db.TimeFromPg(row.UpdatedAt),
		Fields: Fields{
			FirstName:         db.TextToString(row.FirstName),
			LastName:          db.TextToString(row.LastName),
			Email:             db.TextToString(row.Email),
			Phone:             db.TextToString(row.Phone),
			City:              db.TextToString(row.City),
			JobTitle:          db.TextToString(row.JobTitle),
			LinkedinURL:       db.TextToString(row.LinkedinUrl),
			FacebookURL:       db.TextToString(row.FacebookUrl),
			InstagramURL:      db.TextToString(row.InstagramUrl),
			GithubURL:         db.TextToString(row.GithubUrl),
			XURL:              db.TextToString(row.XUrl),
			CompanyID:         db.UUIDToString(row.CompanyID),
			HelpdeskContactID: db.TextToString(row.HelpdeskContactID),
			CRMPersonID:       db.TextToString(row.CrmPersonID),
		},
	}
}
