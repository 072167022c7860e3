// Package orchestrator sequences one conversation turn: load session,
// analyze, resolve, plan, gate, execute or park for confirmation, persist.
// Every failure mode resolves to a structured reply that keeps the
// conversation usable; nothing here is fatal to the process.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	commonerrors "invoice-assistant/internal/common/errors"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/common/observability"
	"invoice-assistant/internal/gate"
	"invoice-assistant/internal/models"
	"invoice-assistant/internal/planner"
	"invoice-assistant/internal/resolver"
	"invoice-assistant/internal/session"
	"invoice-assistant/internal/task"
)

// Analyzer is the classification entry point; the composite analyzer
// service satisfies it and never returns an error in practice.
type Analyzer interface {
	Analyze(ctx context.Context, message string, sctx *models.ConversationContext, history []models.ConversationMessage) (*models.Analysis, error)
}

// ActionExecutor performs one planned action against the backend.
type ActionExecutor interface {
	Execute(ctx context.Context, userID string, action *models.Action, sctx *models.ConversationContext) *models.ActionResult
}

// Response is what the presentation layer renders for one turn.
type Response struct {
	SessionID       string                      `json:"sessionId"`
	Reply           string                      `json:"reply"`
	Intent          models.Intent               `json:"intent,omitempty"`
	Source          models.AnalysisSource       `json:"source,omitempty"`
	Confidence      float64                     `json:"confidence,omitempty"`
	Actions         []models.Action             `json:"actions,omitempty"`
	PendingActionID string                      `json:"pendingActionId,omitempty"`
	Suggestions     []string                    `json:"suggestions,omitempty"`
	Error           *commonerrors.StandardError `json:"error,omitempty"`
}

type Orchestrator struct {
	store    *session.Store
	analyzer Analyzer
	machine  *task.Machine
	executor ActionExecutor
	policy   gate.Policy
	history  int
	obs      *observability.Observability
	tracing  *observability.Tracing
	logger   logger.Logger
}

func New(
	store *session.Store,
	an Analyzer,
	machine *task.Machine,
	exec ActionExecutor,
	policy gate.Policy,
	historyWindow int,
	obs *observability.Observability,
	tracing *observability.Tracing,
	log logger.Logger,
) *Orchestrator {
	if historyWindow <= 0 {
		historyWindow = 5
	}
	return &Orchestrator{
		store:    store,
		analyzer: an,
		machine:  machine,
		executor: exec,
		policy:   policy,
		history:  historyWindow,
		obs:      obs,
		tracing:  tracing,
		logger:   log,
	}
}

// HandleMessage processes one incoming user message to completion. Sessions
// are independent; the caller serializes messages within a session.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, sessionID, text string) (*Response, error) {
	if userID == "" {
		return authRequired(sessionID), nil
	}

	ctx, span := o.tracing.StartTurnSpan(ctx, sessionID)
	defer span.End()
	started := time.Now()

	sess, err := o.store.Load(ctx, sessionID, userID)
	if err != nil {
		return nil, commonerrors.NewSessionLoadFailedError(sessionID, err)
	}

	// History is captured before the incoming message is appended, so the
	// analyzer sees the current message exactly once.
	history := sess.LastMessages(o.history)
	sess.Append(models.NewMessage(sess.ID, models.RoleUser, text))

	var resp *Response
	if sess.Context.CurrentTask != nil {
		resp, err = o.continueTask(ctx, userID, sess, text)
	} else {
		resp, err = o.newTurn(ctx, userID, sess, text, history)
	}
	if err != nil {
		return nil, err
	}

	o.obs.RecordTurn(ctx, resp.Intent, resp.Source, time.Since(started))

	o.appendAssistantMessage(sess, resp)
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, commonerrors.NewSessionSaveFailedError(sess.ID, err)
	}
	resp.SessionID = sess.ID
	return resp, nil
}

// continueTask feeds the message into the active invoice flow. A cancel
// signal abandons the task; anything else advances (or re-prompts) it.
func (o *Orchestrator) continueTask(ctx context.Context, userID string, sess *models.ConversationSession, text string) (*Response, error) {
	if isCancelSignal(text) {
		sess.Context.CurrentTask = nil
		return &Response{
			Reply:       "Okay, I've dropped that invoice. What would you like to do instead?",
			Suggestions: []string{"Create an invoice", "Show me a report"},
		}, nil
	}

	t := sess.Context.CurrentTask
	result, err := o.machine.Advance(ctx, userID, t, text)
	if err != nil {
		o.logger.WithError(err).Error("task advance failed",
			map[string]interface{}{"session_id": sess.ID, "step": string(t.Step)})
		return &Response{
			Reply:       "Something went wrong with that invoice. Let's try again.",
			Suggestions: []string{"Create an invoice"},
			Error:       commonerrors.NewExecutionFailedError("invoice task", err),
		}, nil
	}

	resp := &Response{
		Reply:       result.Reply,
		Intent:      models.IntentCreateInvoice,
		Suggestions: result.Suggestions,
	}
	if result.Done {
		sess.Context.CurrentTask = nil
		if result.Invoice != nil {
			sess.Context.Recent.AddInvoice(*result.Invoice)
		}
	}
	return resp, nil
}

// newTurn runs the full analyze → resolve → plan → gate → execute pipeline.
func (o *Orchestrator) newTurn(ctx context.Context, userID string, sess *models.ConversationSession, text string, history []models.ConversationMessage) (*Response, error) {
	analysis, _ := o.analyzer.Analyze(ctx, text, &sess.Context, history)

	resp := &Response{Intent: analysis.Intent, Source: analysis.Source, Confidence: analysis.Confidence}

	switch analysis.Intent {
	case models.IntentGreeting:
		resp.Reply = "Hi! I can create invoices, record expenses, look up customers and run reports. What do you need?"
		resp.Suggestions = []string{"Create an invoice", "Add an expense", "Show me this month's report"}
		return resp, nil
	case models.IntentHelp:
		resp.Reply = "You can say things like \"Create an invoice for James\", \"Add a 40 expense for fuel\" or \"How did last month go?\"."
		resp.Suggestions = []string{"Create an invoice", "Show me a report"}
		return resp, nil
	case models.IntentUnknown:
		resp.Reply = "I'm not sure what you'd like to do. I can create invoices, customers and expenses, search customers, and run reports."
		resp.Suggestions = []string{"Create an invoice", "Show me this month's report"}
		return resp, nil
	}

	// Required-field check before any planning; the clarifying question
	// leaves all state untouched. Invoice creation runs as the guided flow,
	// which collects line items itself, so only a missing customer blocks it.
	missing := resolver.MissingFields(analysis.Intent, analysis.Entities, &sess.Context)
	if analysis.Intent == models.IntentCreateInvoice && !containsField(missing, resolver.FieldCustomer) {
		return o.startInvoiceTask(ctx, userID, sess, analysis)
	}
	if len(missing) > 0 {
		resp.Reply = resolver.Question(missing)
		resp.Error = commonerrors.NewValidationFailedError(strings.Join(fieldNames(missing), ", "))
		return resp, nil
	}

	actions := planner.Plan(analysis.Intent, analysis.Entities, &sess.Context)
	if len(actions) == 0 {
		resp.Reply = "There's nothing I can do with that just yet."
		resp.Suggestions = []string{"Create an invoice", "Show me a report"}
		return resp, nil
	}

	if gate.NeedsConfirmation(analysis.Intent, actions, o.policy) {
		sess.Context.PendingActions = append(sess.Context.PendingActions, actions...)
		resp.Actions = actions
		resp.PendingActionID = actions[0].ID
		resp.Reply = confirmationPrompt(actions[0])
		resp.Suggestions = []string{"Confirm", "Cancel"}
		return resp, nil
	}

	return o.executeActions(ctx, userID, sess, resp, actions), nil
}

func (o *Orchestrator) startInvoiceTask(ctx context.Context, userID string, sess *models.ConversationSession, analysis *models.Analysis) (*Response, error) {
	customer, _ := analysis.FirstEntity(models.EntityCustomer)
	t, result, err := o.machine.Start(ctx, userID, customer.Value)
	if err != nil {
		o.logger.WithError(err).Error("invoice task start failed",
			map[string]interface{}{"session_id": sess.ID})
		return &Response{
			Intent: analysis.Intent,
			Reply:  "I couldn't look up your customers just now. Try again in a moment.",
			Error:  commonerrors.NewExecutionFailedError("customer search", err),
		}, nil
	}

	resp := &Response{
		Intent:      analysis.Intent,
		Source:      analysis.Source,
		Confidence:  analysis.Confidence,
		Reply:       result.Reply,
		Suggestions: result.Suggestions,
	}
	if result.Done {
		if result.Invoice != nil {
			sess.Context.Recent.AddInvoice(*result.Invoice)
		}
		return resp, nil
	}
	sess.Context.CurrentTask = t
	return resp, nil
}

func (o *Orchestrator) executeActions(ctx context.Context, userID string, sess *models.ConversationSession, resp *Response, actions []models.Action) *Response {
	var replies, suggestions []string
	for i := range actions {
		result := o.executor.Execute(ctx, userID, &actions[i], &sess.Context)
		o.obs.RecordAction(ctx, actions[i].Type, actions[i].Status)

		if result.Success {
			replies = append(replies, result.Message)
		} else {
			replies = append(replies, result.Error)
		}
		suggestions = append(suggestions, result.Suggestions...)
	}

	resp.Actions = actions
	resp.Reply = strings.Join(replies, " ")
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	resp.Suggestions = suggestions
	return resp
}

// ConfirmAction executes a parked action. Confirming an id that is no
// longer pending is a no-op reply, which makes double confirmation safe.
func (o *Orchestrator) ConfirmAction(ctx context.Context, userID, sessionID, actionID string) (*Response, error) {
	if userID == "" {
		return authRequired(sessionID), nil
	}

	sess, err := o.store.Load(ctx, sessionID, userID)
	if err != nil {
		return nil, commonerrors.NewSessionLoadFailedError(sessionID, err)
	}

	pending, ok := sess.Context.PendingAction(actionID)
	if !ok {
		return &Response{
			SessionID: sess.ID,
			Reply:     "That action was already handled.",
		}, nil
	}

	action := *pending
	result := o.executor.Execute(ctx, userID, &action, &sess.Context)
	o.obs.RecordAction(ctx, action.Type, action.Status)
	sess.Context.RemovePendingAction(actionID)

	resp := &Response{
		Intent:      intentOf(action.Type),
		Actions:     []models.Action{action},
		Suggestions: result.Suggestions,
	}
	if result.Success {
		resp.Reply = result.Message
	} else {
		resp.Reply = result.Error
	}

	o.appendAssistantMessage(sess, resp)
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, commonerrors.NewSessionSaveFailedError(sess.ID, err)
	}
	resp.SessionID = sess.ID
	return resp, nil
}

// RejectAction discards a parked action without executing it.
func (o *Orchestrator) RejectAction(ctx context.Context, userID, sessionID, actionID string) (*Response, error) {
	if userID == "" {
		return authRequired(sessionID), nil
	}

	sess, err := o.store.Load(ctx, sessionID, userID)
	if err != nil {
		return nil, commonerrors.NewSessionLoadFailedError(sessionID, err)
	}

	resp := &Response{Reply: "Okay, I won't do that."}
	if !sess.Context.RemovePendingAction(actionID) {
		resp.Reply = "That action was already handled."
	}

	o.appendAssistantMessage(sess, resp)
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, commonerrors.NewSessionSaveFailedError(sess.ID, err)
	}
	resp.SessionID = sess.ID
	return resp, nil
}

func (o *Orchestrator) appendAssistantMessage(sess *models.ConversationSession, resp *Response) {
	msg := models.NewMessage(sess.ID, models.RoleAssistant, resp.Reply)
	meta := &models.MessageMetadata{
		Intent:      resp.Intent,
		Confidence:  resp.Confidence,
		Suggestions: resp.Suggestions,
	}
	for _, a := range resp.Actions {
		meta.ActionIDs = append(meta.ActionIDs, a.ID)
	}
	msg.Metadata = meta
	sess.Append(msg)
}

func authRequired(sessionID string) *Response {
	return &Response{
		SessionID: sessionID,
		Reply:     "Please sign in again to continue.",
		Error:     commonerrors.NewAuthRequiredError(),
	}
}

func confirmationPrompt(a models.Action) string {
	switch p := a.Params.(type) {
	case models.CreateInvoiceParams:
		if p.Amount > 0 {
			return fmt.Sprintf("This invoice comes to %.2f. Should I create it?", p.Amount)
		}
		return "Should I create this invoice?"
	case models.CreateExpenseParams:
		return fmt.Sprintf("Record an expense of %.2f? This is above your usual amounts.", p.Amount)
	case models.SendInvoiceParams:
		ref := p.InvoiceNumber
		if ref == "" {
			ref = "this invoice"
		}
		return fmt.Sprintf("Send %s to the customer?", ref)
	}
	return "Should I go ahead with that?"
}

func isCancelSignal(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "cancel", "stop", "never mind", "nevermind", "forget it", "quit":
		return true
	}
	return false
}

func containsField(fields []resolver.Field, f resolver.Field) bool {
	for _, have := range fields {
		if have == f {
			return true
		}
	}
	return false
}

func fieldNames(fields []resolver.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

func intentOf(t models.ActionType) models.Intent {
	switch t {
	case models.ActionCreateInvoice:
		return models.IntentCreateInvoice
	case models.ActionCreateCustomer:
		return models.IntentCreateCustomer
	case models.ActionCreateExpense:
		return models.IntentAddExpense
	case models.ActionSearchCustomers:
		return models.IntentSearchCustomers
	case models.ActionGenerateReport:
		return models.IntentGenerateReport
	case models.ActionSendInvoice:
		return models.IntentSendInvoice
	case models.ActionNavigateToInvoice:
		return models.IntentNavigateInvoice
	}
	return models.IntentUnknown
}
