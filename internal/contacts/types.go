package contacts

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no contact matches a lookup.
var ErrNotFound = errors.New("contact not found")

// Contact is a tenant-scoped local contact row.
type Contact struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Fields
}

// Fields holds every mutable column. Blank strings are stored as NULL.
type Fields struct {
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	City              string `json:"city,omitempty"`
	JobTitle          string `json:"job_title,omitempty"`
	LinkedinURL       string `json:"linkedin_url,omitempty"`
	FacebookURL       string `json:"facebook_url,omitempty"`
	InstagramURL      string `json:"instagram_url,omitempty"`
	GithubURL         string `json:"github_url,omitempty"`
	XURL              string `json:"x_url,omitempty"`
	CompanyID         string `json:"company_id,omitempty"`
	HelpdeskContactID string `json:"helpdesk_contact_id,omitempty"`
	CRMPersonID       string `json:"crm_person_id,omitempty"`
}

// Lookup holds the identity keys of an incoming contact. Blank keys never match.
type Lookup struct {
	Phone             string
	Email             string
	HelpdeskContactID string
	CRMPersonID       string
}

// IsEmpty reports whether no key is set.
func (l Lookup) IsEmpty() bool {
	return l.Phone == "" && l.Email == "" && l.HelpdeskContactID == "" && l.CRMPersonID == ""
}

// CreateResult reports how a create request was satisfied.
type CreateResult struct {
	Contact Contact
	// Merged is true when the insert lost a uniqueness race and the existing row was updated instead.
	Merged bool
}

// UpdateResult reports an update that kept some stored identity values.
type UpdateResult struct {
	Contact Contact
	// Kept lists identity columns left unchanged because another contact owns the new value.
	Kept []string
}

// Unique index names on the contacts table.
const (
	ConstraintEmail       = "contacts_tenant_email_unique"
	ConstraintPhone       = "contacts_tenant_phone_unique"
	ConstraintHelpdeskID  = "contacts_tenant_helpdesk_id_unique"
	ConstraintCRMPersonID = "contacts_tenant_crm_id_unique"
)

// Company is the local company row that contacts may reference.
type Company struct {
	ID                string
	TenantID          string
	Name              string
	HelpdeskCompanyID string
	CRMCompanyID      string
}
