package crm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound matches a StatusError for a person that no longer exists.
var ErrNotFound = errors.New("crm person not found")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("crm %s: status %d: %s", e.Op, e.Status, body)
}

// Is reports 404 responses as ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Person is a CRM person record as returned by the people resource.
type Person struct {
	ID         string `json:"id"`
	Name       Name   `json:"name"`
	Emails     Emails `json:"emails"`
	Phones     Phones `json:"phones"`
	City       string `json:"city"`
	JobTitle   string `json:"jobTitle"`
	CompanyID  string `json:"companyId"`
	ChatwootID string `json:"chatwootId"`
	CreatedAt  string `json:"createdAt"`
	DeletedAt  string `json:"deletedAt"`
}

type Name struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Emails struct {
	PrimaryEmail string `json:"primaryEmail"`
}

type Phones struct {
	PrimaryPhoneNumber      string `json:"primaryPhoneNumber"`
	PrimaryPhoneCallingCode string `json:"primaryPhoneCallingCode"`
	PrimaryPhoneCountryCode string `json:"primaryPhoneCountryCode"`
}

type searchResponse struct {
	Data struct {
		People []Person `json:"people"`
	} `json:"data"`
}
