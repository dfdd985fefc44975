// Package helpdesk models the helpdesk platform boundary: inbound webhook events and the
// outbound custom-attribute link-back call.
package helpdesk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/veriops/contactsync/internal/payload"
)

var (
	// ErrUnsupportedEvent is returned for event types the core does not act on.
	ErrUnsupportedEvent = errors.New("unsupported helpdesk event")
	// ErrMissingAccount is returned when an event carries no account id.
	ErrMissingAccount = errors.New("helpdesk event has no account id")
)

// DefaultLinkAttribute is the contact custom attribute that holds the CRM person id.
const DefaultLinkAttribute = "crm_person_id"

// legacyLinkAttribute was written by earlier deployments.
const legacyLinkAttribute = "twenty_id"

const (
	EventContactCreated = "contact_created"
	EventContactUpdated = "contact_updated"
	EventMessageCreated = "message_created"
	EventMessageUpdated = "message_updated"
)

// Event is either a ContactEvent or a MessageEvent.
type Event interface {
	Type() string
	Account() int64
	isEvent()
}

// ContactEvent is a normalized contact_created / contact_updated delivery.
type ContactEvent struct {
	EventType  string
	AccountID  int64
	ContactID  string
	Name       string
	Identifier string
	Email      string
	Phone      string
	City       string
	JobTitle   string
	Links      payload.Links
	// CRMPersonID is the CRM id a previous sync wrote into the contact's custom attributes.
	CRMPersonID  string
	CRMCompanyID string
}

func (e ContactEvent) Type() string   { return e.EventType }
func (e ContactEvent) Account() int64 { return e.AccountID }
func (ContactEvent) isEvent()         {}

// HasIdentity reports whether the event carries an email or a phone.
func (e ContactEvent) HasIdentity() bool {
	return e.Email != "" || e.Phone != ""
}

// Person converts the event into the system-neutral contact.
func (e ContactEvent) Person() payload.Person {
	return payload.Person{
		Name:              e.Name,
		Email:             e.Email,
		Phone:             e.Phone,
		City:              e.City,
		JobTitle:          e.JobTitle,
		Links:             e.Links,
		CRMCompanyID:      e.CRMCompanyID,
		HelpdeskContactID: e.ContactID,
	}
}

// MessageEvent is a message_created / message_updated delivery. Contact sync ignores it.
type MessageEvent struct {
	EventType      string
	AccountID      int64
	MessageID      string
	ConversationID string
	Content        string
	MessageType    string
	SenderID       string
	SenderType     string
}

func (e MessageEvent) Type() string   { return e.EventType }
func (e MessageEvent) Account() int64 { return e.AccountID }
func (MessageEvent) isEvent()         {}

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireAccount struct {
	ID flexID `json:"id"`
}

type wireEnvelope struct {
	Event   string      `json:"event"`
	Account wireAccount `json:"account"`
}

type wireContact struct {
	ID                   flexID         `json:"id"`
	Name                 string         `json:"name"`
	Email                string         `json:"email"`
	PhoneNumber          string         `json:"phone_number"`
	Identifier           string         `json:"identifier"`
	AdditionalAttributes map[string]any `json:"additional_attributes"`
	CustomAttributes     map[string]any `json:"custom_attributes"`
}

type wireMessage struct {
	ID           flexID `json:"id"`
	Content      string `json:"content"`
	MessageType  any    `json:"message_type"`
	Conversation struct {
		ID flexID `json:"id"`
	} `json:"conversation"`
	Sender struct {
		ID   flexID `json:"id"`
		Type string `json:"type"`
	} `json:"sender"`
}

// Parser decodes webhook bodies. LinkAttribute must match the attribute the link-back
// writes, so an echoed update is recognised as already linked.
type Parser struct {
	LinkAttribute string
}

// ParseEvent decodes raw with the default link attribute.
func ParseEvent(raw []byte) (Event, error) {
	return Parser{}.Parse(raw)
}

func (p Parser) linkAttributes() []string {
	attr := strings.TrimSpace(p.LinkAttribute)
	if attr == "" || attr == DefaultLinkAttribute {
		return []string{DefaultLinkAttribute, legacyLinkAttribute}
	}
	return []string{attr, DefaultLinkAttribute, legacyLinkAttribute}
}

// Parse decodes a webhook body into a ContactEvent or a MessageEvent.
func (p Parser) Parse(raw []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode helpdesk event: %w", err)
	}
	eventType := strings.TrimSpace(env.Event)
	switch eventType {
	case EventContactCreated, EventContactUpdated, EventMessageCreated, EventMessageUpdated:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	accountID, err := parseAccount(env.Account.ID)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(eventType, "contact_") {
		var c wireContact
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode contact event: %w", err)
		}
		return newContactEvent(eventType, accountID, c, p.linkAttributes()), nil
	}

	var m wireMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode message event: %w", err)
	}
	return MessageEvent{
		EventType:      eventType,
		AccountID:      accountID,
		MessageID:      string(m.ID),
		ConversationID: string(m.Conversation.ID),
		Content:        m.Content,
		MessageType:    attrString(m.MessageType),
		SenderID:       string(m.Sender.ID),
		SenderType:     m.Sender.Type,
	}, nil
}

func parseAccount(id flexID) (int64, error) {
	if id == "" {
		return 0, ErrMissingAccount
	}
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid helpdesk account id %q: %w", id, err)
	}
	return n, nil
}

// newContactEvent takes the CRM id from the first non-blank of linkAttrs.
func newContactEvent(eventType string, accountID int64, c wireContact, linkAttrs []string) ContactEvent {
	addl := c.AdditionalAttributes
	cust := c.CustomAttributes
	var crmID string
	for _, key := range linkAttrs {
		if crmID = attrString(cust[key]); crmID != "" {
			break
		}
	}
	return ContactEvent{
		EventType:    eventType,
		AccountID:    accountID,
		ContactID:    string(c.ID),
		Name:         strings.TrimSpace(c.Name),
		Identifier:   strings.TrimSpace(c.Identifier),
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:        strings.TrimSpace(c.PhoneNumber),
		City:         attrString(addl["city"]),
		JobTitle:     attrString(addl["job_title"]),
		Links:        socialLinks(addl),
		CRMPersonID:  crmID,
		CRMCompanyID: attrString(cust["company_id"]),
	}
}

// socialLinks reads flat "<network>_url" keys first, then the nested social_profiles map.
func socialLinks(addl map[string]any) payload.Links {
	profiles, _ := addl["social_profiles"].(map[string]any)
	pick := func(flat string, nested ...string) string {
		if v := attrString(addl[flat]); v != "" {
			return v
		}
		for _, key := range nested {
			if v := attrString(profiles[key]); v != "" {
				return v
			}
		}
		return ""
	}
	return payload.Links{
		LinkedIn:  pick("linkedin_url", "linkedin"),
		Facebook:  pick("facebook_url", "facebook"),
		Instagram: pick("instagram_url", "instagram"),
		GitHub:    pick("github_url", "github"),
		X:         pick("x_url", "x", "twitter"),
	}
}

func attrString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
