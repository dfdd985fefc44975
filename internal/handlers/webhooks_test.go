package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriops/contactsync/internal/crm"
	"github.com/veriops/contactsync/internal/helpdesk"
	"github.com/veriops/contactsync/internal/logger"
	"github.com/veriops/contactsync/internal/reconcile"
	"github.com/veriops/contactsync/internal/tenants"
)

type fakeLookup struct {
	byAccount map[int64]tenants.Tenant
	byID      map[string]tenants.Tenant
	err       error
}

func (f fakeLookup) GetByHelpdeskAccount(_ context.Context, accountID int64) (tenants.Tenant, error) {
	if f.err != nil {
		return tenants.Tenant{}, f.err
	}
	t, ok := f.byAccount[accountID]
	if !ok {
		return tenants.Tenant{}, tenants.ErrTenantNotFound
	}
	return t, nil
}

func (f fakeLookup) GetByID(_ context.Context, tenantID string) (tenants.Tenant, error) {
	if f.err != nil {
		return tenants.Tenant{}, f.err
	}
	t, ok := f.byID[tenantID]
	if !ok {
		return tenants.Tenant{}, tenants.ErrTenantNotFound
	}
	return t, nil
}

type recordingEvents struct {
	mu       sync.Mutex
	events   []helpdesk.ContactEvent
	tenants  []string
	deadline bool
	log      *slog.Logger
	outcome  reconcile.Outcome
}

func (r *recordingEvents) Handle(ctx context.Context, tenant tenants.Tenant, ev helpdesk.ContactEvent) reconcile.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, r.deadline = ctx.Deadline()
	r.log = logger.FromContextOr(ctx, nil)
	r.events = append(r.events, ev)
	r.tenants = append(r.tenants, tenant.ID)
	return r.outcome
}

var acme = tenants.Tenant{
	ID:                "11111111-1111-4111-8111-111111111111",
	Name:              "Acme",
	HelpdeskAccountID: 3,
	CRMWebhookSecret:  "whsec",
}

func newLookup() fakeLookup {
	return fakeLookup{
		byAccount: map[int64]tenants.Tenant{3: acme},
		byID:      map[string]tenants.Tenant{acme.ID: acme},
	}
}

func post(t *testing.T, h interface{ Register(*echo.Echo) }, path, body string) (*httptest.ResponseRecorder, WebhookResponse) {
	t.Helper()
	return postWithHeaders(t, h, path, body, nil)
}

// postSigned delivers body to the CRM webhook of tenant, signed with secret.
func postSigned(t *testing.T, h interface{ Register(*echo.Echo) }, tenantID, secret, body string) (*httptest.ResponseRecorder, WebhookResponse) {
	t.Helper()
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return postWithHeaders(t, h, "/webhooks/crm/"+tenantID, body, map[string]string{
		crm.HeaderWebhookTimestamp: ts,
		crm.HeaderWebhookSignature: crm.SignWebhook(secret, ts, []byte(body)),
	})
}

func postWithHeaders(t *testing.T, h interface{ Register(*echo.Echo) }, path, body string, headers map[string]string) (*httptest.ResponseRecorder, WebhookResponse) {
	t.Helper()
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp WebhookResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHelpdeskWebhookProcessesContactEvent(t *testing.T) {
	events := &recordingEvents{outcome: reconcile.Outcome{State: reconcile.StateDone, ContactID: "c-1"}}
	h := NewHelpdeskWebhookHandler(logger.Discard(), helpdesk.Parser{}, newLookup(), events, time.Second)

	rec, resp := post(t, h, "/webhooks/helpdesk",
		`{"event":"contact_created","id":1187,"name":"Ana Lopez","email":"ana@example.com","account":{"id":3}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WebhookResponse{Message: "processed", State: "done", ContactID: "c-1"}, resp)
	require.Len(t, events.events, 1)
	assert.Equal(t, "ana@example.com", events.events[0].Email)
	assert.Equal(t, []string{acme.ID}, events.tenants)
	assert.True(t, events.deadline, "event context carries the processing timeout")
}

func TestHelpdeskWebhookAlwaysAcknowledges(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		lookup fakeLookup
		want   string
	}{
		{"unsupported event", `{"event":"conversation_opened","account":{"id":3}}`, newLookup(), "event ignored"},
		{"message event", `{"event":"message_created","id":1,"account":{"id":3}}`, newLookup(), "event ignored"},
		{"no identity", `{"event":"contact_updated","id":5,"name":"x","account":{"id":3}}`, newLookup(), "no email or phone"},
		{"bad json", `{`, newLookup(), "invalid payload"},
		{"unknown account", `{"event":"contact_created","id":5,"email":"a@x.com","account":{"id":99}}`, newLookup(), "unknown account"},
		{"lookup failure", `{"event":"contact_created","id":5,"email":"a@x.com","account":{"id":3}}`, fakeLookup{err: errors.New("db down")}, "tenant lookup failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := &recordingEvents{}
			h := NewHelpdeskWebhookHandler(logger.Discard(), helpdesk.Parser{}, tc.lookup, events, time.Second)
			rec, resp := post(t, h, "/webhooks/helpdesk", tc.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.want, resp.Message)
			assert.Empty(t, events.events)
		})
	}
}

func TestHelpdeskWebhookReportsOutcome(t *testing.T) {
	body := `{"event":"contact_updated","id":5,"phone_number":"+5491122334455","account":{"id":3}}`

	events := &recordingEvents{outcome: reconcile.Outcome{State: reconcile.StateAborted, Reason: "local update failed"}}
	_, resp := post(t, NewHelpdeskWebhookHandler(logger.Discard(), helpdesk.Parser{}, newLookup(), events, 0), "/webhooks/helpdesk", body)
	assert.Equal(t, "local update failed", resp.Message)
	assert.Equal(t, "aborted", resp.State)

	events = &recordingEvents{outcome: reconcile.Outcome{State: reconcile.StateDone, ContactID: "c-9", Err: errors.New("crm create failed")}}
	_, resp = post(t, NewHelpdeskWebhookHandler(logger.Discard(), helpdesk.Parser{}, newLookup(), events, 0), "/webhooks/helpdesk", body)
	assert.Equal(t, WebhookResponse{Message: "processed with errors", State: "done", ContactID: "c-9"}, resp)
}

type fakeUnlinker struct {
	calls []string
	n     int64
	err   error
}

func (f *fakeUnlinker) UnlinkCRMPerson(_ context.Context, tenantID, crmPersonID string) (int64, error) {
	f.calls = append(f.calls, tenantID+"/"+crmPersonID)
	return f.n, f.err
}

func TestCRMWebhookUnlinksDeletedPerson(t *testing.T) {
	unlinker := &fakeUnlinker{n: 1}
	h := NewCRMWebhookHandler(logger.Discard(), newLookup(), unlinker)

	rec, resp := postSigned(t, h, acme.ID, "whsec", `{"eventName":"person.deleted","record":{"id":"p-1"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WebhookResponse{Message: "person unlinked", Unlinked: 1}, resp)

	_, resp = postSigned(t, h, acme.ID, "whsec",
		`{"eventName":"person.updated","record":{"id":"p-2","deletedAt":"2026-01-02T10:00:00Z"}}`)
	assert.Equal(t, "person unlinked", resp.Message)
	assert.Equal(t, []string{acme.ID + "/p-1", acme.ID + "/p-2"}, unlinker.calls)
}

func TestCRMWebhookAcknowledgesOtherEvents(t *testing.T) {
	unlinker := &fakeUnlinker{}
	h := NewCRMWebhookHandler(logger.Discard(), newLookup(), unlinker)

	for _, body := range []string{
		`{"eventName":"person.updated","record":{"id":"p-1","deletedAt":null}}`,
		`{"eventName":"person.created","record":{"id":"p-1"}}`,
		`{"eventName":"company.deleted","record":{"id":"co-1"}}`,
		`{"eventName":"person.deleted","record":{}}`,
	} {
		rec, resp := postSigned(t, h, acme.ID, "whsec", body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.Equal(t, "event acknowledged", resp.Message, body)
	}
	assert.Empty(t, unlinker.calls)
}

func TestCRMWebhookErrors(t *testing.T) {
	h := NewCRMWebhookHandler(logger.Discard(), newLookup(), &fakeUnlinker{})
	rec, _ := post(t, h, "/webhooks/crm/unknown", `{"eventName":"person.deleted","record":{"id":"p"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = postSigned(t, h, acme.ID, "whsec", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = NewCRMWebhookHandler(logger.Discard(), newLookup(), &fakeUnlinker{err: errors.New("db down")})
	rec, _ = postSigned(t, h, acme.ID, "whsec", `{"eventName":"person.deleted","record":{"id":"p"}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCRMWebhookRequiresSignature(t *testing.T) {
	body := `{"eventName":"person.deleted","record":{"id":"p-1"}}`
	unsigned := acme
	unsigned.ID = "22222222-2222-4222-8222-222222222222"
	unsigned.CRMWebhookSecret = ""
	lookup := newLookup()
	lookup.byID[unsigned.ID] = unsigned

	unlinker := &fakeUnlinker{n: 1}
	h := NewCRMWebhookHandler(logger.Discard(), lookup, unlinker)

	rec, _ := post(t, h, "/webhooks/crm/"+acme.ID, body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unsigned delivery")

	rec, _ = postSigned(t, h, acme.ID, "wrong-secret", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong secret")

	rec, _ = postSigned(t, h, unsigned.ID, "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "tenant without a secret")

	h.now = func() time.Time { return time.Now().Add(time.Hour) }
	rec, _ = postSigned(t, h, acme.ID, "whsec", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "stale delivery")

	assert.Empty(t, unlinker.calls)
}

func TestHelpdeskWebhookPassesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	events := &recordingEvents{outcome: reconcile.Outcome{State: reconcile.StateDone}}
	h := NewHelpdeskWebhookHandler(base, helpdesk.Parser{}, newLookup(), events, time.Second)

	rec, _ := postWithHeaders(t, h, "/webhooks/helpdesk",
		`{"event":"contact_created","id":1187,"email":"ana@example.com","account":{"id":3}}`,
		map[string]string{echo.HeaderXRequestID: "req-7"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, events.log)

	events.log.Info("from orchestrator")
	logged := buf.String()
	assert.Contains(t, logged, `"request_id":"req-7"`)
	assert.Contains(t, logged, `"account_id":3`)
	assert.Contains(t, logged, `"handler":"helpdesk_webhook"`)
}
