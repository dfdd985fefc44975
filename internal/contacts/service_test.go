package contacts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/veriops/contactsync/internal/contacts"
	"github.com/veriops/contactsync/internal/contacts/contactstest"
	"github.com/veriops/contactsync/internal/logger"
)

func newService(t *testing.T) (*contacts.Service, *contactstest.Queries, string) {
	t.Helper()
	q := contactstest.New()
	return contacts.NewService(logger.Discard(), q), q, uuid.NewString()
}

func TestCreateAndFindByPhoneOrEmail(t *testing.T) {
	svc, _, tenantID := newService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, tenantID, contacts.Fields{
		FirstName: "Ana",
		LastName:  "Lopez",
		Email:     "Ana@X.com",
		Phone:     "+5491122334455",
	})
	require.NoError(t, err)
	assert.False(t, res.Merged)
	assert.NotEmpty(t, res.Contact.ID)

	byEmail, err := svc.FindByPhoneOrEmail(ctx, tenantID, "", "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, res.Contact.ID, byEmail.ID)

	byPhone, err := svc.FindByPhoneOrEmail(ctx, tenantID, "+5491122334455", "")
	require.NoError(t, err)
	assert.Equal(t, res.Contact.ID, byPhone.ID)

	_, err = svc.FindByPhoneOrEmail(ctx, uuid.NewString(), "+5491122334455", "ana@x.com")
	assert.ErrorIs(t, err, contacts.ErrNotFound, "lookups are tenant scoped")

	_, err = svc.FindByPhoneOrEmail(ctx, tenantID, "", "")
	assert.ErrorIs(t, err, contacts.ErrNotFound)
}

func TestFindPrefersPhoneMatchOverEmailMatch(t *testing.T) {
	ctx := context.Background()
	for _, phoneFirst := range []bool{true, false} {
		svc, _, tenantID := newService(t)
		byPhone := contacts.Fields{FirstName: "A", Phone: "+595981000001"}
		byEmail := contacts.Fields{FirstName: "B", Email: "b@x.com"}
		order := []contacts.Fields{byPhone, byEmail}
		if !phoneFirst {
			order = []contacts.Fields{byEmail, byPhone}
		}
		ids := map[string]string{}
		for _, f := range order {
			res, err := svc.Create(ctx, tenantID, f)
			require.NoError(t, err)
			ids[f.FirstName] = res.Contact.ID
		}

		got, err := svc.FindByPhoneOrEmail(ctx, tenantID, "+595981000001", "b@x.com")
		require.NoError(t, err)
		assert.Equal(t, ids["A"], got.ID, "phone match wins (phone row created first=%v)", phoneFirst)
	}
}

func TestFindFallsBackToExternalIDs(t *testing.T) {
	svc, _, tenantID := newService(t)
	ctx := context.Background()
	res, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "Linked", HelpdeskContactID: "42", CRMPersonID: "p-1"})
	require.NoError(t, err)

	got, err := svc.Find(ctx, tenantID, contacts.Lookup{Email: "nobody@x.com", HelpdeskContactID: "42"})
	require.NoError(t, err)
	assert.Equal(t, res.Contact.ID, got.ID)

	got, err = svc.Find(ctx, tenantID, contacts.Lookup{CRMPersonID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, res.Contact.ID, got.ID)

	_, err = svc.Find(ctx, tenantID, contacts.Lookup{})
	assert.ErrorIs(t, err, contacts.ErrNotFound)
}

func TestUpdateOverwritesWholeRow(t *testing.T) {
	svc, _, tenantID := newService(t)
	ctx := context.Background()
	res, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "Ana", City: "Asuncion", Email: "a@x.com"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, tenantID, res.Contact.ID, contacts.Fields{FirstName: "Ana", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Empty(t, updated.City, "fields not supplied are written as NULL")
	assert.True(t, updated.UpdatedAt.After(res.Contact.UpdatedAt))

	_, err = svc.Update(ctx, tenantID, uuid.NewString(), contacts.Fields{FirstName: "x"})
	assert.ErrorIs(t, err, contacts.ErrNotFound)
}

func TestUpdateKeepingConflictsKeepsOwnedValues(t *testing.T) {
	svc, q, tenantID := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "A", Phone: "+5491122334455"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "B", Email: "a@x.com", HelpdeskContactID: "77"})
	require.NoError(t, err)

	res, err := svc.UpdateKeepingConflicts(ctx, tenantID, a.Contact.ID, contacts.Fields{
		FirstName:         "Ana",
		Email:             "a@x.com",
		Phone:             "+5491122334455",
		City:              "Rosario",
		HelpdeskContactID: "77",
	}, a.Contact.Fields)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"email", "helpdesk_contact_id"}, res.Kept)
	assert.Equal(t, "Ana", res.Contact.FirstName)
	assert.Equal(t, "Rosario", res.Contact.City)
	assert.Empty(t, res.Contact.Email, "email stays with B")
	assert.Empty(t, res.Contact.HelpdeskContactID)

	stillB, err := svc.GetByID(ctx, b.Contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", stillB.Email)
	assert.Len(t, q.Contacts(), 2)
}

func TestUpdateKeepingConflictsWithoutConflict(t *testing.T) {
	svc, _, tenantID := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "A", Email: "a@x.com"})
	require.NoError(t, err)

	res, err := svc.UpdateKeepingConflicts(ctx, tenantID, a.Contact.ID, contacts.Fields{FirstName: "Ana", Email: "ana@x.com"}, a.Contact.Fields)
	require.NoError(t, err)
	assert.Empty(t, res.Kept)
	assert.Equal(t, "ana@x.com", res.Contact.Email)

	_, err = svc.UpdateKeepingConflicts(ctx, tenantID, uuid.NewString(), contacts.Fields{FirstName: "x"}, contacts.Fields{})
	assert.ErrorIs(t, err, contacts.ErrNotFound)
}

func TestCreateConflictBecomesUpdate(t *testing.T) {
	svc, q, tenantID := newService(t)
	ctx := context.Background()
	first, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "Ana", Email: "a@x.com", CRMPersonID: "p-1"})
	require.NoError(t, err)

	second, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "Ana Maria", Email: "A@X.COM", City: "Rosario"})
	require.NoError(t, err)
	assert.True(t, second.Merged)
	assert.Equal(t, first.Contact.ID, second.Contact.ID)
	assert.Equal(t, "Ana Maria", second.Contact.FirstName)
	assert.Equal(t, "Rosario", second.Contact.City)
	assert.Equal(t, "p-1", second.Contact.CRMPersonID, "stored link survives the merge")
	assert.Len(t, q.Contacts(), 1)
}

func TestConcurrentCreatesYieldOneRow(t *testing.T) {
	svc, q, tenantID := newService(t)
	ctx := context.Background()

	results := make([]contacts.CreateResult, 8)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			res, err := svc.Create(ctx, tenantID, contacts.Fields{FirstName: "Ana", Email: "race@x.com"})
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	rows := q.Contacts()
	require.Len(t, rows, 1)
	merged := 0
	for _, res := range results {
		assert.Equal(t, results[0].Contact.ID, res.Contact.ID)
		if res.Merged {
			merged++
		}
	}
	assert.Equal(t, len(results)-1, merged)
}

func TestCreatePropagatesOtherErrors(t *testing.T) {
	svc, q, tenantID := newService(t)
	q.FailCreate = errors.New("connection reset")
	_, err := svc.Create(context.Background(), tenantID, contacts.Fields{Email: "a@x.com"})
	assert.EqualError(t, err, "connection reset")
}

func TestLinkAndUnlinkCRMPerson(t *testing.T) {
	svc, _, tenantID := newService(t)
	ctx := context.Background()
	res, err := svc.Create(ctx, tenantID, contacts.Fields{Email: "a@x.com"})
	require.NoError(t, err)

	linked, err := svc.LinkCRMPerson(ctx, tenantID, res.Contact.ID, "p-9")
	require.NoError(t, err)
	assert.Equal(t, "p-9", linked.CRMPersonID)

	_, err = svc.LinkCRMPerson(ctx, tenantID, res.Contact.ID, " ")
	assert.Error(t, err)

	n, err := svc.UnlinkCRMPerson(ctx, tenantID, "p-9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.GetByID(ctx, res.Contact.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CRMPersonID)
}

func TestFindCompanyByCRMID(t *testing.T) {
	svc, q, tenantID := newService(t)
	ctx := context.Background()
	companyID := q.AddCompany(pgtype.UUID{Bytes: uuid.MustParse(tenantID), Valid: true}, "Acme", "c-1")

	company, err := svc.FindCompanyByCRMID(ctx, tenantID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, uuid.UUID(companyID.Bytes).String(), company.ID)
	assert.Equal(t, "Acme", company.Name)

	_, err = svc.FindCompanyByCRMID(ctx, tenantID, "c-2")
	assert.ErrorIs(t, err, contacts.ErrNotFound)
}

func TestCarryLinks(t *testing.T) {
	got := contacts.CarryLinks(
		contacts.Fields{FirstName: "New", CRMPersonID: ""},
		contacts.Fields{FirstName: "Old", CRMPersonID: "p-1", HelpdeskContactID: "7"},
	)
	assert.Equal(t, "New", got.FirstName)
	assert.Equal(t, "p-1", got.CRMPersonID)
	assert.Equal(t, "7", got.HelpdeskContactID)

	got = contacts.CarryLinks(contacts.Fields{CRMPersonID: "p-2"}, contacts.Fields{CRMPersonID: "p-1"})
	assert.Equal(t, "p-2", got.CRMPersonID)
}
