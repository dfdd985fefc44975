package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/veriops/contactsync/internal/contacts"
	"github.com/veriops/contactsync/internal/contacts/contactstest"
	"github.com/veriops/contactsync/internal/crm"
	"github.com/veriops/contactsync/internal/db"
	"github.com/veriops/contactsync/internal/helpdesk"
	"github.com/veriops/contactsync/internal/logger"
	"github.com/veriops/contactsync/internal/payload"
	"github.com/veriops/contactsync/internal/tenants"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// memoryCRM is an in-memory people resource. Search matches on email or national number.
type memoryCRM struct {
	mu        sync.Mutex
	people    map[string]payload.Body
	order     []string
	creates   int
	updates   []string
	searchErr error
	createErr error
	blankIDs  bool
}

func newMemoryCRM() *memoryCRM {
	return &memoryCRM{people: map[string]payload.Body{}}
}

func (m *memoryCRM) Search(_ context.Context, filter crm.Filter) ([]crm.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []crm.Person
	for _, id := range m.order {
		body := m.people[id]
		email, _ := nested(body, "emails", "primaryEmail")
		national, _ := nested(body, "phones", "primaryPhoneNumber")
		if (email != "" && strings.Contains(string(filter), `"`+email+`"`)) ||
			(national != "" && strings.Contains(string(filter), `"`+national+`"`)) {
			out = append(out, crm.Person{ID: id})
		}
	}
	return out, nil
}

func (m *memoryCRM) Create(_ context.Context, body payload.Body) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.creates++
	id := fmt.Sprintf("person-%d", m.creates)
	m.people[id] = body
	m.order = append(m.order, id)
	if m.blankIDs {
		return "", nil
	}
	return id, nil
}

func (m *memoryCRM) Update(_ context.Context, id string, body payload.Body) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, id)
	if _, ok := m.people[id]; !ok {
		return "", &crm.StatusError{Op: "update", Status: 404}
	}
	m.people[id] = body
	return id, nil
}

func (m *memoryCRM) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.people)
}

func nested(body payload.Body, keys ...string) (string, bool) {
	var cur any = map[string]any(body)
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur = obj[k]
	}
	s, ok := cur.(string)
	return s, ok
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	attrs []map[string]string
	err   error
}

func (n *recordingNotifier) SetCustomAttributes(_ context.Context, accountID int64, contactID string, attrs map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, fmt.Sprintf("%d/%s/%s", accountID, contactID, attrs["crm_person_id"]))
	n.attrs = append(n.attrs, attrs)
	return n.err
}

type harness struct {
	orch     *Orchestrator
	queries  *contactstest.Queries
	store    *contacts.Service
	crm      *memoryCRM
	notifier *recordingNotifier
	tenant   tenants.Tenant
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, Config{Payload: payload.Options{FallbackName: "Helpdesk Contact", Provenance: "API"}})
}

func newHarnessWithConfig(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		queries:  contactstest.New(),
		crm:      newMemoryCRM(),
		notifier: &recordingNotifier{},
		tenant: tenants.Tenant{
			ID:                uuid.NewString(),
			CRMBaseURL:        "https://crm.example.com",
			CRMAPIKey:         "key",
			HelpdeskAccountID: 3,
			HelpdeskAPIURL:    "https://desk.example.com",
			HelpdeskBotToken:  "bot",
		},
	}
	h.store = contacts.NewService(logger.Discard(), h.queries)
	h.orch = NewOrchestrator(logger.Discard(), h.store,
		func(tenants.Tenant) (CRM, error) { return h.crm, nil },
		func(tenants.Tenant) (Notifier, error) { return h.notifier, nil },
		cfg,
	)
	return h
}

func anaEvent() helpdesk.ContactEvent {
	return helpdesk.ContactEvent{
		EventType: helpdesk.EventContactCreated,
		AccountID: 3,
		ContactID: "1187",
		Name:      "Ana Lopez",
		Email:     "a@x.com",
		Phone:     "+5491122334455",
	}
}

func TestHandleCreatesEverywhere(t *testing.T) {
	h := newHarness(t)
	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())

	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, LegCreated, out.Local)
	assert.Equal(t, LegCreated, out.Remote)
	assert.Equal(t, LegUpdated, out.LinkBack)
	assert.Equal(t, LegUpdated, out.Notify)
	assert.Equal(t, "person-1", out.CRMPersonID)

	rows := h.queries.Contacts()
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].FirstName.String)
	assert.Equal(t, "Lopez", rows[0].LastName.String)
	assert.Equal(t, "person-1", rows[0].CrmPersonID.String)
	assert.Equal(t, "1187", rows[0].HelpdeskContactID.String)

	body := h.crm.people["person-1"]
	cc, _ := nested(body, "phones", "primaryPhoneCallingCode")
	national, _ := nested(body, "phones", "primaryPhoneNumber")
	source, _ := nested(body, "createdBy", "source")
	assert.Equal(t, "+54", cc)
	assert.Equal(t, "91122334455", national)
	assert.Equal(t, "API", source)

	assert.Equal(t, []string{"3/1187/person-1"}, h.notifier.calls)
}

func TestHandleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	first := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	second := h.orch.Handle(context.Background(), h.tenant, anaEvent())

	assert.Equal(t, StateDone, second.State)
	assert.Equal(t, first.ContactID, second.ContactID)
	assert.Equal(t, LegUpdated, second.Local)
	assert.Equal(t, LegUpdated, second.Remote)
	assert.Equal(t, LegSkipped, second.LinkBack, "link already stored")
	assert.Len(t, h.queries.Contacts(), 1)
	assert.Equal(t, 1, h.crm.count())
	assert.Equal(t, []string{"person-1"}, h.crm.updates)
}

func TestHandleEchoedCRMIDDoesNotNotify(t *testing.T) {
	h := newHarness(t)
	h.orch.Handle(context.Background(), h.tenant, anaEvent())

	ev := anaEvent()
	ev.EventType = helpdesk.EventContactUpdated
	ev.CRMPersonID = "person-1"
	ev.City = "Rosario"
	out := h.orch.Handle(context.Background(), h.tenant, ev)

	assert.Equal(t, LegUpdated, out.Remote)
	assert.Equal(t, LegSkipped, out.Notify)
	assert.Len(t, h.notifier.calls, 1)
	city, _ := nested(h.crm.people["person-1"], "city")
	assert.Equal(t, "Rosario", city)
}

func TestHandleConcurrentDuplicates(t *testing.T) {
	h := newHarness(t)
	var g errgroup.Group
	outcomes := make([]Outcome, 4)
	for i := range outcomes {
		i := i
		g.Go(func() error {
			outcomes[i] = h.orch.Handle(context.Background(), h.tenant, anaEvent())
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, h.queries.Contacts(), 1)
	for _, out := range outcomes {
		assert.Equal(t, outcomes[0].ContactID, out.ContactID)
		assert.NotEqual(t, StateAborted, out.State)
	}
}

func TestHandleSearchMatchesExistingPerson(t *testing.T) {
	h := newHarness(t)
	h.crm.people["legacy"] = payload.Body{"emails": map[string]any{"primaryEmail": "a@x.com"}}
	h.crm.order = append(h.crm.order, "legacy")

	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	assert.Equal(t, LegUpdated, out.Remote)
	assert.Equal(t, "legacy", out.CRMPersonID)
	assert.Equal(t, 1, h.crm.count())
}

func TestHandleUpdateNotFoundFallsBackToCreate(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Create(context.Background(), h.tenant.ID, contacts.Fields{Email: "a@x.com", CRMPersonID: "deleted-person"})
	require.NoError(t, err)

	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"deleted-person"}, h.crm.updates)
	assert.Equal(t, LegCreated, out.Remote)
	assert.Equal(t, LegUpdated, out.LinkBack)
	assert.Equal(t, "person-1", out.CRMPersonID)
	assert.Equal(t, "person-1", h.queries.Contacts()[0].CrmPersonID.String)
}

func TestHandleSearchFailureSkipsCreate(t *testing.T) {
	h := newHarness(t)
	h.crm.searchErr = errors.New("crm timeout")

	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, LegCreated, out.Local)
	assert.Equal(t, LegFailed, out.Remote)
	assert.ErrorContains(t, out.Err, "crm timeout")
	assert.Zero(t, h.crm.count())
	assert.Len(t, h.queries.Contacts(), 1)
}

func TestHandleRemoteFailureKeepsLocal(t *testing.T) {
	h := newHarness(t)
	h.crm.createErr = &crm.StatusError{Op: "create", Status: 500, Body: "boom"}

	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, LegCreated, out.Local)
	assert.Equal(t, LegFailed, out.Remote)
	assert.Equal(t, LegSkipped, out.LinkBack)
	assert.Equal(t, LegSkipped, out.Notify)
	assert.Len(t, h.queries.Contacts(), 1)
	assert.Empty(t, h.queries.Contacts()[0].CrmPersonID.String)
}

func TestHandleUnreadableCreatedID(t *testing.T) {
	h := newHarness(t)
	h.crm.blankIDs = true

	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, LegCreated, out.Remote)
	assert.Equal(t, LegSkipped, out.LinkBack)
	assert.Empty(t, out.CRMPersonID)
}

func TestHandleNotifyFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("401")

	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, LegFailed, out.Notify)
	assert.Equal(t, "person-1", h.queries.Contacts()[0].CrmPersonID.String)
}

func TestHandleAborts(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		h := newHarness(t)
		ev := anaEvent()
		ev.Email, ev.Phone = "", ""
		out := h.orch.Handle(context.Background(), h.tenant, ev)
		assert.Equal(t, StateAborted, out.State)
		assert.NoError(t, out.Err)
		assert.Empty(t, h.queries.Contacts())
		assert.Zero(t, h.crm.count())
	})
	t.Run("no tenant", func(t *testing.T) {
		h := newHarness(t)
		out := h.orch.Handle(context.Background(), tenants.Tenant{}, anaEvent())
		assert.Equal(t, StateAborted, out.State)
	})
	t.Run("local failure", func(t *testing.T) {
		h := newHarness(t)
		h.queries.FailCreate = errors.New("disk full")
		out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
		assert.Equal(t, StateAborted, out.State)
		assert.Equal(t, LegFailed, out.Local)
		assert.Equal(t, LegSkipped, out.Remote)
		assert.ErrorContains(t, out.Err, "disk full")
		assert.Zero(t, h.crm.count())
	})
}

func TestHandleTenantWithoutCRM(t *testing.T) {
	h := newHarness(t)
	h.tenant.CRMAPIKey = ""

	out := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, LegCreated, out.Local)
	assert.Equal(t, LegSkipped, out.Remote)
	assert.Empty(t, h.notifier.calls)
}

func TestHandleBlankNameUsesIdentifier(t *testing.T) {
	h := newHarness(t)
	ev := anaEvent()
	ev.Name = ""
	ev.Identifier = "wa:5491122334455"

	h.orch.Handle(context.Background(), h.tenant, ev)
	first, _ := nested(h.crm.people["person-1"], "name", "firstName")
	assert.Equal(t, "wa:5491122334455", first)
	assert.Equal(t, "wa:5491122334455", h.queries.Contacts()[0].FirstName.String)
}

func TestHandleBlankNameKeepsStoredNames(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Handle(context.Background(), h.tenant, anaEvent()).Err)

	ev := anaEvent()
	ev.EventType = helpdesk.EventContactUpdated
	ev.Name = ""
	out := h.orch.Handle(context.Background(), h.tenant, ev)

	require.NoError(t, out.Err)
	assert.Equal(t, LegUpdated, out.Local)
	assert.Equal(t, LegUpdated, out.Remote)
	rows := h.queries.Contacts()
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].FirstName.String)
	assert.Equal(t, "Lopez", rows[0].LastName.String)
	_, hasName := h.crm.people["person-1"]["name"]
	assert.False(t, hasName)
}

func TestHandleCustomLinkAttributeEchoDoesNotNotify(t *testing.T) {
	h := newHarnessWithConfig(t, Config{
		Payload:       payload.Options{FallbackName: "Helpdesk Contact", Provenance: "API"},
		LinkAttribute: "twenty_person",
	})
	first := h.orch.Handle(context.Background(), h.tenant, anaEvent())
	require.NoError(t, first.Err)
	require.Equal(t, LegUpdated, first.Notify)

	parser := helpdesk.Parser{LinkAttribute: "twenty_person"}
	echo := []byte(`{"event":"contact_updated","id":1187,"name":"Ana Lopez","email":"a@x.com",` +
		`"phone_number":"+5491122334455","account":{"id":3},"custom_attributes":{"twenty_person":"person-1"}}`)
	for i := 0; i < 3; i++ {
		parsed, err := parser.Parse(echo)
		require.NoError(t, err)
		ev, ok := parsed.(helpdesk.ContactEvent)
		require.True(t, ok)
		require.Equal(t, "person-1", ev.CRMPersonID)

		out := h.orch.Handle(context.Background(), h.tenant, ev)
		require.NoError(t, out.Err)
		assert.Equal(t, StateDone, out.State)
		assert.Equal(t, LegSkipped, out.Notify, "echo %d", i)
	}

	assert.Equal(t, []map[string]string{{"twenty_person": "person-1"}}, h.notifier.attrs)
	assert.Equal(t, 1, h.crm.count())
}

func TestHandleIdentityKeysOnDifferentContacts(t *testing.T) {
	for _, phoneFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("phone first %v", phoneFirst), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			create := func(f contacts.Fields) contacts.Contact {
				res, err := h.store.Create(ctx, h.tenant.ID, f)
				require.NoError(t, err)
				return res.Contact
			}
			var a, b contacts.Contact
			if phoneFirst {
				a = create(contacts.Fields{FirstName: "Ana", Phone: "+5491122334455"})
				b = create(contacts.Fields{FirstName: "Other", Email: "a@x.com"})
			} else {
				b = create(contacts.Fields{FirstName: "Other", Email: "a@x.com"})
				a = create(contacts.Fields{FirstName: "Ana", Phone: "+5491122334455"})
			}

			out := h.orch.Handle(ctx, h.tenant, anaEvent())

			require.NoError(t, out.Err)
			assert.Equal(t, StateDone, out.State)
			assert.Equal(t, LegUpdated, out.Local)
			assert.Equal(t, a.ID, out.ContactID)
			assert.Equal(t, LegCreated, out.Remote)
			assert.Equal(t, LegUpdated, out.LinkBack)

			rows := h.queries.Contacts()
			require.Len(t, rows, 2)
			for _, row := range rows {
				switch db.UUIDToString(row.ID) {
				case a.ID:
					assert.False(t, row.Email.Valid && row.Email.String != "", "email stays with the other contact")
					assert.Equal(t, "+5491122334455", row.Phone.String)
					assert.Equal(t, "1187", row.HelpdeskContactID.String)
					assert.Equal(t, "person-1", row.CrmPersonID.String)
				case b.ID:
					assert.Equal(t, "a@x.com", row.Email.String)
					assert.Equal(t, "Other", row.FirstName.String)
				default:
					t.Fatalf("unexpected contact %s", db.UUIDToString(row.ID))
				}
			}
		})
	}
}

func TestHandleUsesRequestLoggerFromContext(t *testing.T) {
	h := newHarness(t)
	var buf bytes.Buffer
	reqLog := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("request_id", "req-42"))
	ctx := logger.WithContext(context.Background(), reqLog)

	out := h.orch.Handle(ctx, h.tenant, anaEvent())
	require.NoError(t, out.Err)

	logged := buf.String()
	assert.Contains(t, logged, `"request_id":"req-42"`)
	assert.Contains(t, logged, `"msg":"contact event handled"`)
	assert.Contains(t, logged, `"tenant_id":"`+h.tenant.ID+`"`)
}
