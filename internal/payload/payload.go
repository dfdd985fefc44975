// Package payload converts a normalized contact into sparse CRM request bodies and
// full local store rows.
package payload

import (
	"strings"

	"github.com/veriops/contactsync/internal/contacts"
	"github.com/veriops/contactsync/internal/phone"
)

// DefaultFirstName is used when both the contact name and the configured fallback are blank.
const DefaultFirstName = "Contact"

// Body is a JSON object sent to the CRM.
type Body map[string]any

// Links holds social profile URLs.
type Links struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	GitHub    string `json:"github,omitempty"`
	X         string `json:"x,omitempty"`
}

// Person is the system-neutral contact built from an inbound event.
type Person struct {
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	City              string `json:"city,omitempty"`
	JobTitle          string `json:"job_title,omitempty"`
	Links             Links  `json:"links"`
	CRMCompanyID      string `json:"crm_company_id,omitempty"`
	HelpdeskContactID string `json:"helpdesk_contact_id,omitempty"`
}

// Options carries per-deployment defaults.
type Options struct {
	// FallbackName is the CRM first name used for contacts without a name.
	FallbackName string
	// Provenance is written to createdBy.source on create.
	Provenance string
}

// SplitName returns the first whitespace-delimited token as first name and the rest as
// last name. A blank name yields fallback (or DefaultFirstName) as first name.
func SplitName(full, fallback string) (first, last string) {
	tokens := strings.Fields(full)
	if len(tokens) == 0 {
		first = strings.TrimSpace(fallback)
		if first == "" {
			first = DefaultFirstName
		}
		return first, ""
	}
	return tokens[0], strings.Join(tokens[1:], " ")
}

// BuildUpdate returns the sparse PATCH body for p. Absent fields are omitted, never nulled.
// A blank name is omitted too: the fallback name only labels new people.
func BuildUpdate(p Person, opts Options) Body {
	var first, last string
	if HasName(p.Name) {
		first, last = SplitName(p.Name, opts.FallbackName)
	}
	return personBody(p, first, last)
}

// BuildCreate returns the POST body for p. The CRM requires a first name, so a blank name
// falls back to opts.FallbackName. The provenance marker is added when set.
func BuildCreate(p Person, opts Options) Body {
	first, last := SplitName(p.Name, opts.FallbackName)
	body := personBody(p, first, last)
	if source := strings.TrimSpace(opts.Provenance); source != "" {
		body["createdBy"] = map[string]any{"source": source}
	}
	return body
}

// HasName reports whether full carries at least one name token.
func HasName(full string) bool {
	return strings.TrimSpace(full) != ""
}

func personBody(p Person, first, last string) Body {
	pc := phone.Normalize(p.Phone)
	body := Body{
		"name": map[string]any{
			"firstName": first,
			"lastName":  last,
		},
		"emails": map[string]any{
			"primaryEmail": strings.TrimSpace(p.Email),
		},
		"phones": map[string]any{
			"primaryPhoneNumber":      pc.NationalNumber,
			"primaryPhoneCallingCode": pc.CallingCode,
			"primaryPhoneCountryCode": pc.Country,
		},
		"city":          strings.TrimSpace(p.City),
		"jobTitle":      strings.TrimSpace(p.JobTitle),
		"linkedinLink":  link(p.Links.LinkedIn),
		"facebookLink":  link(p.Links.Facebook),
		"instagramLink": link(p.Links.Instagram),
		"githubLink":    link(p.Links.GitHub),
		"xLink":         link(p.Links.X),
		"companyId":     strings.TrimSpace(p.CRMCompanyID),
		"chatwootId":    strings.TrimSpace(p.HelpdeskContactID),
	}
	pruned, _ := Prune(map[string]any(body)).(map[string]any)
	if pruned == nil {
		return Body{}
	}
	return Body(pruned)
}

// LocalFields maps p onto a full local row. companyID is the local company id, if any.
// The stored phone is the raw string; the email is lowercased.
func LocalFields(p Person, opts Options, companyID string) contacts.Fields {
	first, last := SplitName(p.Name, opts.FallbackName)
	return contacts.Fields{
		FirstName:         first,
		LastName:          last,
		Email:             strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:             strings.TrimSpace(p.Phone),
		City:              strings.TrimSpace(p.City),
		JobTitle:          strings.TrimSpace(p.JobTitle),
		LinkedinURL:       strings.TrimSpace(p.Links.LinkedIn),
		FacebookURL:       strings.TrimSpace(p.Links.Facebook),
		InstagramURL:      strings.TrimSpace(p.Links.Instagram),
		GithubURL:         strings.TrimSpace(p.Links.GitHub),
		XURL:              strings.TrimSpace(p.Links.X),
		CompanyID:         companyID,
		HelpdeskContactID: strings.TrimSpace(p.HelpdeskContactID),
	}
}

// Prune drops nil values, blank strings, empty maps and empty slices recursively. It
// returns nil when nothing survives.
func Prune(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return t
	case Body:
		return Prune(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if pruned := Prune(val); pruned != nil {
				out[k] = pruned
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if pruned := Prune(val); pruned != nil {
				out = append(out, pruned)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return v
	}
}

func link(url string) map[string]any {
	return map[string]any{"primaryLinkUrl": strings.TrimSpace(url)}
}
