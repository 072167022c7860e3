package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"invoice-assistant/internal/analyzer"
	"invoice-assistant/internal/backend"
	commonerrors "invoice-assistant/internal/common/errors"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/common/observability"
	"invoice-assistant/internal/gate"
	"invoice-assistant/internal/models"
	"invoice-assistant/internal/session"
	"invoice-assistant/internal/task"
)

type fakeProfiles struct{}

func (fakeProfiles) GetByUserID(context.Context, string) (*models.BusinessProfile, error) {
	return nil, backend.ErrNotFound
}

type fakeActivity struct{}

func (fakeActivity) RecentActivity(context.Context, string, int) ([]string, error) {
	return nil, nil
}

type fakeTaskBackend struct {
	customers []models.Customer
	items     []models.Item
	invoice   *models.Invoice
}

func (f *fakeTaskBackend) FindCustomers(context.Context, string, string) ([]models.Customer, error) {
	return f.customers, nil
}

func (f *fakeTaskBackend) ListItems(context.Context, string) ([]models.Item, error) {
	return f.items, nil
}

func (f *fakeTaskBackend) FinalizeInvoice(context.Context, string, models.Customer, []models.Item) (*models.Invoice, error) {
	return f.invoice, nil
}

type fakeExecutor struct {
	calls   int
	lastRun *models.Action
	result  *models.ActionResult
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, action *models.Action, _ *models.ConversationContext) *models.ActionResult {
	f.calls++
	f.lastRun = action
	result := f.result
	if result == nil {
		result = &models.ActionResult{Success: true, Message: "done"}
	}
	if result.Success {
		action.Status = models.ActionCompleted
	} else {
		action.Status = models.ActionFailed
	}
	action.Result = result
	return result
}

type testHarness struct {
	orch *Orchestrator
	exec *fakeExecutor
	mr   *miniredis.Miniredis
}

func newHarness(t *testing.T, tb *fakeTaskBackend) *testHarness {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logger.NewTestLogger(t)

	store := session.NewStore(client, fakeProfiles{}, fakeActivity{}, time.Hour, 8, log)
	svc := analyzer.NewService(nil, analyzer.NewRuleAnalyzer(), log)
	machine := task.NewMachine(tb, tb, tb, log)
	exec := &fakeExecutor{}

	obs := observability.New("orchestrator-test", log)
	tracing, err := observability.NewTracing("orchestrator-test", "")
	assert.NoError(t, err)

	orch := New(store, svc, machine, exec, gate.Policy{Threshold: 1000}, 5, obs, tracing, log)
	return &testHarness{orch: orch, exec: exec, mr: mr}
}

func TestHandleMessage_MissingIdentityNeverWrites(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})

	resp, err := h.orch.HandleMessage(context.Background(), "", "s1", "Create an invoice for James")

	assert.NoError(t, err)
	assert.Equal(t, commonerrors.ErrCodeAuthRequired, resp.Error.Code)
	assert.False(t, h.mr.Exists("conversation:s1"))
	assert.Zero(t, h.exec.calls)
}

func TestHandleMessage_Greeting(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})

	resp, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "Hello!")

	assert.NoError(t, err)
	assert.Equal(t, models.IntentGreeting, resp.Intent)
	assert.NotEmpty(t, resp.Suggestions)
	assert.True(t, h.mr.Exists("conversation:s1"))
}

func TestHandleMessage_SingleMatchGoesToItemSelection(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{
		customers: []models.Customer{{ID: "c1", Name: "James"}},
		items:     []models.Item{{ID: "it1", Name: "Consulting", UnitPrice: 150}},
	})

	resp, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "Create an invoice for James")

	assert.NoError(t, err)
	assert.Equal(t, models.IntentCreateInvoice, resp.Intent)
	assert.Contains(t, resp.Reply, "Consulting")
	assert.Empty(t, resp.PendingActionID, "guided flow needs no confirmation yet")

	// The task survives in the persisted snapshot.
	follow, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "not a number at all")
	assert.NoError(t, err)
	assert.Contains(t, follow.Reply, "didn't catch that")
}

func TestHandleMessage_ThreeMatchesDisambiguate(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{
		customers: []models.Customer{
			{ID: "c1", Name: "John Smith"},
			{ID: "c2", Name: "Jane Smith"},
			{ID: "c3", Name: "Sam Smith"},
		},
	})

	resp, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "Create an invoice for Smith")

	assert.NoError(t, err)
	assert.Contains(t, resp.Reply, "1. John Smith")
	assert.Contains(t, resp.Reply, "2. Jane Smith")
	assert.Contains(t, resp.Reply, "3. Sam Smith")
}

func TestHandleMessage_MissingCustomerAsksClarifyingQuestion(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})

	resp, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "Create an invoice")

	assert.NoError(t, err)
	assert.Contains(t, resp.Reply, "Who is this invoice for?")
	assert.Equal(t, commonerrors.ErrCodeValidationFailed, resp.Error.Code)
	assert.Zero(t, h.exec.calls)
}

func TestHandleMessage_LowValueExpenseAutoExecutes(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})

	resp, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "I spent 50 on fuel")

	assert.NoError(t, err)
	assert.Equal(t, models.IntentAddExpense, resp.Intent)
	assert.Equal(t, 1, h.exec.calls)
	assert.Empty(t, resp.PendingActionID)
	assert.Equal(t, models.ActionCompleted, resp.Actions[0].Status)
}

func TestHandleMessage_HighValueExpenseParksForConfirmation(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})

	resp, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "I spent 1500 on equipment")

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.PendingActionID)
	assert.Zero(t, h.exec.calls, "gated action must not execute before confirmation")
	assert.Contains(t, resp.Suggestions, "Confirm")
}

func TestConfirmAction_ExecutesOnceThenIdempotent(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})
	ctx := context.Background()

	resp, err := h.orch.HandleMessage(ctx, "u1", "s1", "I spent 1500 on equipment")
	assert.NoError(t, err)
	actionID := resp.PendingActionID

	first, err := h.orch.ConfirmAction(ctx, "u1", "s1", actionID)
	assert.NoError(t, err)
	assert.Equal(t, 1, h.exec.calls)
	assert.Equal(t, "done", first.Reply)

	// Confirming the same id again must not run the action a second time.
	second, err := h.orch.ConfirmAction(ctx, "u1", "s1", actionID)
	assert.NoError(t, err)
	assert.Equal(t, 1, h.exec.calls)
	assert.Contains(t, second.Reply, "already handled")
}

func TestRejectAction_DiscardsWithoutExecuting(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})
	ctx := context.Background()

	resp, err := h.orch.HandleMessage(ctx, "u1", "s1", "I spent 1500 on equipment")
	assert.NoError(t, err)
	actionID := resp.PendingActionID

	rejected, err := h.orch.RejectAction(ctx, "u1", "s1", actionID)
	assert.NoError(t, err)
	assert.Zero(t, h.exec.calls)
	assert.Contains(t, rejected.Reply, "won't do that")

	// The action is gone: confirming afterwards is a no-op too.
	confirmed, err := h.orch.ConfirmAction(ctx, "u1", "s1", actionID)
	assert.NoError(t, err)
	assert.Zero(t, h.exec.calls)
	assert.Contains(t, confirmed.Reply, "already handled")
}

func TestHandleMessage_CancelAbandonsTask(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{
		customers: []models.Customer{{ID: "c1", Name: "James"}},
		items:     []models.Item{{ID: "it1", Name: "Consulting", UnitPrice: 150}},
	})
	ctx := context.Background()

	_, err := h.orch.HandleMessage(ctx, "u1", "s1", "Create an invoice for James")
	assert.NoError(t, err)

	resp, err := h.orch.HandleMessage(ctx, "u1", "s1", "never mind")
	assert.NoError(t, err)
	assert.Contains(t, resp.Reply, "dropped")

	// The next message is a fresh turn, not a task continuation.
	fresh, err := h.orch.HandleMessage(ctx, "u1", "s1", "Hello")
	assert.NoError(t, err)
	assert.Equal(t, models.IntentGreeting, fresh.Intent)
}

type recordingAnalyzer struct {
	history []models.ConversationMessage
}

func (r *recordingAnalyzer) Analyze(_ context.Context, _ string, _ *models.ConversationContext, history []models.ConversationMessage) (*models.Analysis, error) {
	r.history = history
	return &models.Analysis{
		Intent:     models.IntentUnknown,
		Entities:   []models.Entity{},
		Confidence: 0.3,
		Source:     models.SourceRules,
	}, nil
}

func TestHandleMessage_CurrentMessageExcludedFromHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logger.NewTestLogger(t)

	store := session.NewStore(client, fakeProfiles{}, fakeActivity{}, time.Hour, 8, log)
	machine := task.NewMachine(&fakeTaskBackend{}, &fakeTaskBackend{}, &fakeTaskBackend{}, log)
	rec := &recordingAnalyzer{}
	tracing, err := observability.NewTracing("orchestrator-test", "")
	assert.NoError(t, err)
	orch := New(store, rec, machine, &fakeExecutor{}, gate.Policy{Threshold: 1000}, 5,
		observability.New("orchestrator-test", log), tracing, log)

	ctx := context.Background()
	_, err = orch.HandleMessage(ctx, "u1", "s1", "first message")
	assert.NoError(t, err)
	assert.Empty(t, rec.history, "a fresh session has no prior turns")

	_, err = orch.HandleMessage(ctx, "u1", "s1", "second message")
	assert.NoError(t, err)

	// The analyzer gets the prior turns only; the message being analyzed
	// must not also appear as the history tail.
	assert.NotEmpty(t, rec.history)
	for _, m := range rec.history {
		assert.NotEqual(t, "second message", m.Content)
	}
	assert.Equal(t, "first message", rec.history[0].Content)
}

func TestHandleMessage_UnknownIntentStaysUsable(t *testing.T) {
	h := newHarness(t, &fakeTaskBackend{})

	resp, err := h.orch.HandleMessage(context.Background(), "u1", "s1", "what is the meaning of life")

	assert.NoError(t, err)
	assert.Equal(t, models.IntentUnknown, resp.Intent)
	assert.NotEmpty(t, resp.Reply)
	assert.NotEmpty(t, resp.Suggestions)
}
