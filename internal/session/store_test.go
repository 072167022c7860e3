package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"invoice-assistant/internal/backend"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

type fakeProfiles struct {
	profile *models.BusinessProfile
	err     error
}

func (f *fakeProfiles) GetByUserID(context.Context, string) (*models.BusinessProfile, error) {
	return f.profile, f.err
}

type fakeActivity struct {
	activity []string
}

func (f *fakeActivity) RecentActivity(context.Context, string, int) ([]string, error) {
	return f.activity, nil
}

func newTestStore(t *testing.T, profiles ProfileSource) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	if profiles == nil {
		profiles = &fakeProfiles{err: backend.ErrNotFound}
	}
	store := NewStore(client, profiles, &fakeActivity{activity: []string{"Invoice INV-0001 (150)"}},
		time.Hour, 8, logger.NewTestLogger(t))
	return store, mr
}

func TestStore_Load_SeedsNewSession(t *testing.T) {
	store, _ := newTestStore(t, &fakeProfiles{
		profile: &models.BusinessProfile{
			ID:              "p1",
			UserID:          "u1",
			Name:            "Acme",
			Currency:        "EUR",
			InvoicePrefix:   "ACM",
			DateFormat:      "02.01.2006",
			Language:        "de",
			DefaultTemplate: "classic",
		},
	})

	sess, err := store.Load(context.Background(), "s1", "u1")

	assert.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, models.SessionActive, sess.Status)
	assert.Equal(t, "EUR", sess.Context.Preferences.Currency)
	assert.Equal(t, "classic", sess.Context.Preferences.Template)
	assert.Equal(t, "Acme", sess.Context.Business.Profile.Name)
	assert.Equal(t, []string{"Invoice INV-0001 (150)"}, sess.Context.Business.RecentActivity)
	assert.Empty(t, sess.Messages)
}

func TestStore_Load_MissingProfileUsesDefaults(t *testing.T) {
	store, _ := newTestStore(t, nil)

	sess, err := store.Load(context.Background(), "s1", "u1")

	assert.NoError(t, err)
	assert.Equal(t, "USD", sess.Context.Preferences.Currency)
}

func TestStore_SaveAndLoad_RoundTripsActions(t *testing.T) {
	store, mr := newTestStore(t, nil)
	ctx := context.Background()

	sess, err := store.Load(ctx, "s1", "u1")
	assert.NoError(t, err)

	sess.Append(models.NewMessage(sess.ID, models.RoleUser, "send the invoice"))
	action := models.NewAction(models.ActionSendInvoice, models.SendInvoiceParams{
		InvoiceID:     "i1",
		InvoiceNumber: "INV-0001",
	})
	sess.Context.PendingActions = append(sess.Context.PendingActions, action)
	sess.Context.CurrentTask = &models.InvoiceTask{
		Step:     models.StepItemSelection,
		Customer: &models.Customer{ID: "c1", Name: "James"},
	}

	assert.NoError(t, store.Save(ctx, sess))
	assert.True(t, mr.Exists("conversation:s1"))

	loaded, err := store.Load(ctx, "s1", "u1")
	assert.NoError(t, err)
	assert.Len(t, loaded.Messages, 1)
	assert.Equal(t, models.StepItemSelection, loaded.Context.CurrentTask.Step)

	// The tagged params survive the snapshot with their concrete type.
	pending, ok := loaded.Context.PendingAction(action.ID)
	assert.True(t, ok)
	params, ok := pending.Params.(models.SendInvoiceParams)
	assert.True(t, ok)
	assert.Equal(t, "i1", params.InvoiceID)
}

func TestStore_Save_AppliesTTL(t *testing.T) {
	store, mr := newTestStore(t, nil)
	ctx := context.Background()

	sess, err := store.Load(ctx, "s1", "u1")
	assert.NoError(t, err)
	assert.NoError(t, store.Save(ctx, sess))

	ttl := mr.TTL("conversation:s1")
	assert.Equal(t, time.Hour, ttl)
}

func TestStore_Load_OwnerMismatchReseeds(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	sess, err := store.Load(ctx, "s1", "u1")
	assert.NoError(t, err)
	sess.Append(models.NewMessage(sess.ID, models.RoleUser, "hello"))
	assert.NoError(t, store.Save(ctx, sess))

	// Another user presenting the same session id gets a clean session,
	// not the first user's history.
	other, err := store.Load(ctx, "s1", "u2")
	assert.NoError(t, err)
	assert.Equal(t, "u2", other.UserID)
	assert.Empty(t, other.Messages)
}

func TestStore_Reset(t *testing.T) {
	store, mr := newTestStore(t, nil)
	ctx := context.Background()

	sess, err := store.Load(ctx, "s1", "u1")
	assert.NoError(t, err)
	assert.NoError(t, store.Save(ctx, sess))
	assert.True(t, mr.Exists("conversation:s1"))

	assert.NoError(t, store.Reset(ctx, "s1"))
	assert.False(t, mr.Exists("conversation:s1"))
}

func TestRecentEntities_CapAndDedupe(t *testing.T) {
	r := models.RecentEntities{Cap: 3}

	for _, id := range []string{"a", "b", "c", "d"} {
		r.AddCustomer(models.Customer{ID: id, Name: id})
	}
	assert.Len(t, r.Customers, 3)
	// Newest first, oldest evicted.
	assert.Equal(t, "d", r.Customers[0].ID)
	assert.Equal(t, "b", r.Customers[2].ID)

	// Re-adding an existing id moves it to the front without growing.
	r.AddCustomer(models.Customer{ID: "b", Name: "b"})
	assert.Len(t, r.Customers, 3)
	assert.Equal(t, "b", r.Customers[0].ID)
}
