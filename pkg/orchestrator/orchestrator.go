// Package orchestrator drives the per-message pipeline: classification,
// workflow decision, tool execution, response generation, and the session's
// lifecycle including the irreversible escalation lock.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/resolvd/resolvd/internal/engine"
	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/observability"
	"github.com/resolvd/resolvd/pkg/ports"
	"github.com/resolvd/resolvd/pkg/session"
)

// Reply shown to customers whose session is already locked by escalation.
const lockedReply = "Your request has been forwarded to our specialist team. You will hear from us as soon as possible."

// Reply appended when a session escalates.
const escalationReply = "Your request has been escalated to our specialist team. We will get back to you within 24 hours. Thank you for your patience."

// Apology used when response generation fails and no template is available.
const apologyReply = "We are sorry, something went wrong on our side. A member of our team will follow up with you shortly."

// Defaults for the pipeline guards.
const (
	DefaultHopLimit            = 3
	DefaultFailureThreshold    = 2
	DefaultConfidenceThreshold = 0.6
)

// defaultQuestions maps missing required fields to clarifying questions.
// Unmapped fields fall back to a generic phrasing.
var defaultQuestions = map[string]string{
	"order_id":        "Could you share your order number?",
	"tracking_number": "Could you share your tracking number?",
	"refund_reason":   "Could you tell us the reason for your refund request?",
	"item_photo":      "Could you share a photo of the items you received?",
	"packing_slip":    "Could you share a photo of the packing slip inside the package?",
	"shipping_label":  "Could you share a photo of the shipping label?",
}

// Result is the outcome of one processed customer message.
type Result struct {
	SessionID       string                    `json:"session_id"`
	Reply           string                    `json:"reply"`
	Status          domain.SessionStatus      `json:"status"`
	Intent          string                    `json:"intent,omitempty"`
	TraceEventCount int                       `json:"trace_event_count"`
	Escalation      *domain.EscalationPayload `json:"escalation,omitempty"`
}

// Orchestrator coordinates the external agents around the workflow engine.
type Orchestrator struct {
	sessions   *session.Manager
	engine     *engine.Engine
	classifier ports.Classifier
	responder  ports.Responder
	tools      ports.ToolExecutor

	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time

	hopLimit            int
	failureThreshold    int
	confidenceThreshold float64
	questions           map[string]string
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithClassifier wires the intent classifier.
func WithClassifier(c ports.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithResponder wires the response generator.
func WithResponder(r ports.Responder) Option {
	return func(o *Orchestrator) { o.responder = r }
}

// WithToolExecutor wires the tool execution backend.
func WithToolExecutor(t ports.ToolExecutor) Option {
	return func(o *Orchestrator) { o.tools = t }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock injects the time source, pinned in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithHopLimit bounds route_to_workflow recursion.
func WithHopLimit(n int) Option {
	return func(o *Orchestrator) { o.hopLimit = n }
}

// WithFailureThreshold sets the tool-failure count that forces escalation.
func WithFailureThreshold(n int) Option {
	return func(o *Orchestrator) { o.failureThreshold = n }
}

// WithConfidenceThreshold sets the confidence below which a classification is
// flagged low_confidence in the trace.
func WithConfidenceThreshold(v float64) Option {
	return func(o *Orchestrator) { o.confidenceThreshold = v }
}

// WithQuestion overrides the clarifying question for a field.
func WithQuestion(field, question string) Option {
	return func(o *Orchestrator) { o.questions[field] = question }
}

// New creates an orchestrator over a session manager and workflow engine.
// Classifier, responder, and tool executor are optional; absent collaborators
// degrade safely (no classification, template replies, tool escalation).
func New(sessions *session.Manager, eng *engine.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:            sessions,
		engine:              eng,
		logger:              logging.NewNop(),
		now:                 time.Now,
		hopLimit:            DefaultHopLimit,
		failureThreshold:    DefaultFailureThreshold,
		confidenceThreshold: DefaultConfidenceThreshold,
		questions:           map[string]string{},
	}
	for k, v := range defaultQuestions {
		o.questions[k] = v
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start creates a new session and appends the greeting.
func (o *Orchestrator) Start(ctx context.Context, info domain.CustomerInfo) (*domain.Session, error) {
	sess, err := o.sessions.Create(ctx, info)
	if err != nil {
		return nil, err
	}
	greeting := fmt.Sprintf("Hello %s, how can I help you today?", info.FirstName)
	return o.sessions.Update(ctx, sess.ID, func(s *domain.Session) error {
		s.Messages = append(s.Messages, domain.NewMessage(domain.RoleAgent, greeting, o.now().UTC()))
		return nil
	})
}

// ProcessMessage runs the full pipeline for one inbound customer message.
// Processing for one session is strictly sequential; an escalated session
// returns the canned lock reply without invoking classifier, engine, or
// tools, and without mutating the session.
func (o *Orchestrator) ProcessMessage(ctx context.Context, sessionID, text string) (Result, error) {
	var result Result
	err := o.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := o.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}

		if sess.Status == domain.StatusEscalated {
			result = Result{
				SessionID:       sess.ID,
				Reply:           lockedReply,
				Status:          sess.Status,
				Intent:          sess.Intent,
				TraceEventCount: len(sess.Trace),
			}
			return nil
		}

		result = o.process(ctx, sess, text)
		sess.UpdatedAt = o.now().UTC()
		return o.sessions.Store().Save(ctx, sess)
	})
	return result, err
}

func (o *Orchestrator) process(ctx context.Context, sess *domain.Session, text string) Result {
	now := o.now().UTC()
	o.metrics.ObserveMessage()

	sess.Messages = append(sess.Messages, domain.NewMessage(domain.RoleCustomer, text, now))
	sess.AppendTrace(domain.TraceCustomerMessage, "", map[string]any{"message": text}, now)

	// contact_day is derived once, on the first message, and never
	// overwritten afterwards.
	if sess.CaseContext.ContactDay == "" {
		sess.CaseContext.ContactDay = engine.ContactDay(sess, now)
	}

	o.classify(ctx, sess, text)

	decision := o.engine.Evaluate(sess)
	reply, payload := o.dispatch(ctx, sess, decision, 0)

	return Result{
		SessionID:       sess.ID,
		Reply:           reply,
		Status:          sess.Status,
		Intent:          sess.Intent,
		TraceEventCount: len(sess.Trace),
		Escalation:      payload,
	}
}

// classify runs the intent classifier and folds its verdict into the session.
// Classifier failure is recoverable: it is recorded in the trace and the
// pipeline continues with the previous intent. Low confidence does not block
// processing; the engine, not the classifier, decides.
func (o *Orchestrator) classify(ctx context.Context, sess *domain.Session, text string) {
	if o.classifier == nil {
		return
	}

	cl, err := o.classifier.Classify(ctx, text, sess.CaseContext)
	if err != nil {
		o.logger.Warn("classification failed, continuing with previous intent",
			"session_id", sess.ID, "err", err)
		sess.AppendTrace(domain.TraceError, "classifier", map[string]any{"error": err.Error()}, o.now().UTC())
		return
	}

	if cl.Intent != "" {
		sess.Intent = cl.Intent
	}
	sess.Confidence = cl.Confidence

	if cl.Entities.OrderID != "" {
		sess.CaseContext.OrderID = cl.Entities.OrderID
	}
	if cl.Entities.TrackingNumber != "" {
		sess.CaseContext.TrackingNumber = cl.Entities.TrackingNumber
	}
	if cl.Entities.ItemName != "" {
		sess.CaseContext.ItemName = cl.Entities.ItemName
	}
	if cl.NeedsHuman {
		if sess.CaseContext.Extra == nil {
			sess.CaseContext.Extra = map[string]any{}
		}
		sess.CaseContext.Extra["needs_human"] = true
	}

	sess.AppendTrace(domain.TraceClassification, "classifier", map[string]any{
		"intent":         cl.Intent,
		"confidence":     cl.Confidence,
		"entities":       cl.Entities,
		"needs_human":    cl.NeedsHuman,
		"low_confidence": cl.Confidence > 0 && cl.Confidence < o.confidenceThreshold,
	}, o.now().UTC())
}

// dispatch executes one engine decision. hops counts route_to_workflow
// recursion; exceeding the limit forces escalation.
func (o *Orchestrator) dispatch(ctx context.Context, sess *domain.Session, d domain.Decision, hops int) (string, *domain.EscalationPayload) {
	o.traceDecision(sess, d)
	o.metrics.ObserveDecision(d.WorkflowID, string(d.Action))
	o.applyContextUpdates(sess, d.ContextUpdates)

	switch d.Action {
	case domain.ActionAskClarifying:
		return o.handleAskClarifying(sess, d), nil
	case domain.ActionCallTool:
		return o.handleCallTool(ctx, sess, d)
	case domain.ActionEscalate:
		reason := "Workflow requires escalation"
		if d.Escalate != nil && d.Escalate.Reason != "" {
			reason = d.Escalate.Reason
		}
		priority := ""
		if d.Escalate != nil {
			priority = d.Escalate.Priority
		}
		return o.escalate(sess, reason, priority)
	case domain.ActionRouteToWorkflow:
		return o.handleRoute(ctx, sess, d, hops)
	default:
		return o.handleRespond(ctx, sess, d, nil), nil
	}
}

func (o *Orchestrator) handleAskClarifying(sess *domain.Session, d domain.Decision) string {
	var missing, questions []string
	if d.AskClarifying != nil {
		missing = d.AskClarifying.MissingFields
		// Rule-authored questions win over the generic per-field prompts.
		questions = append(questions, d.AskClarifying.Questions...)
	}

	if len(questions) == 0 {
		for _, field := range missing {
			if q, ok := o.questions[field]; ok {
				questions = append(questions, q)
			} else {
				questions = append(questions, fmt.Sprintf("Could you share the %s?", strings.ReplaceAll(field, "_", " ")))
			}
		}
	}

	reply := strings.Join(questions, " ")
	if reply == "" {
		reply = "Could you tell us a bit more about your request?"
	}

	o.appendAgentReply(sess, "support", reply)
	return reply
}

// handleCallTool re-resolves tool parameters from the current context (it may
// have changed since the decision was built), runs the plan sequentially, and
// renders the reply directly from the last tool result. The full engine is
// not re-run here, which keeps tool-triggered recursion bounded.
func (o *Orchestrator) handleCallTool(ctx context.Context, sess *domain.Session, d domain.Decision) (string, *domain.EscalationPayload) {
	var plan []domain.ResolvedToolCall
	if d.CallTool != nil {
		plan = d.CallTool.Plan
	}

	results := make([]ports.ToolResult, 0, len(plan))
	for _, call := range plan {
		params := call.Params
		if len(call.ParamsSource) > 0 {
			params = engine.ResolveParams(call.ParamsSource, o.engine.Context(sess))
			for k, v := range call.Overrides {
				params[k] = v
			}
		}

		res := o.executeTool(ctx, call.ToolName, params)
		results = append(results, res)

		sess.ToolHistory = append(sess.ToolHistory, domain.ToolRecord{
			ToolName:  call.ToolName,
			Params:    params,
			Response:  res.Data,
			Success:   res.Success,
			Error:     res.Error,
			Timestamp: o.now().UTC(),
		})
		sess.AppendTrace(domain.TraceToolCall, "tools", map[string]any{
			"tool_name":       call.ToolName,
			"params":          params,
			"success":         res.Success,
			"error":           res.Error,
			"should_escalate": res.ShouldEscalate,
		}, o.now().UTC())
		o.metrics.ObserveToolCall(call.ToolName, res.Success)

		if res.Success {
			o.applyToolData(sess, call.ToolName, res.Data)
		}

		// Stop at the first result flagged for escalation.
		if res.ShouldEscalate {
			return o.escalate(sess, "Tool execution failed after retry", "")
		}
	}

	if sess.FailedToolCount() >= o.failureThreshold {
		return o.escalate(sess, "Multiple tool failures", "")
	}

	return o.handleRespond(ctx, sess, d, results), nil
}

func (o *Orchestrator) executeTool(ctx context.Context, name string, params map[string]any) ports.ToolResult {
	if o.tools == nil {
		return ports.ToolResult{ToolName: name, Error: "no tool executor configured", ShouldEscalate: true}
	}
	res, err := o.tools.Execute(ctx, name, params)
	if err != nil {
		// Executor-level failure (timeout, transport): recoverable, surfaced
		// as escalation, never a crash.
		o.logger.Warn("tool execution failed", "tool", name, "err", err)
		return ports.ToolResult{ToolName: name, Error: err.Error(), ShouldEscalate: true}
	}
	if res.ToolName == "" {
		res.ToolName = name
	}
	return res
}

func (o *Orchestrator) handleRoute(ctx context.Context, sess *domain.Session, d domain.Decision, hops int) (string, *domain.EscalationPayload) {
	if hops+1 > o.hopLimit {
		return o.escalate(sess, "routing_loop", domain.PriorityHigh)
	}
	target := ""
	if d.Route != nil {
		target = d.Route.TargetWorkflow
	}
	if target == "" {
		return o.escalate(sess, "invalid_route_target", "")
	}

	sess.Intent = target
	next := o.engine.Evaluate(sess)
	return o.dispatch(ctx, sess, next, hops+1)
}

func (o *Orchestrator) handleRespond(ctx context.Context, sess *domain.Session, d domain.Decision, toolResults []ports.ToolResult) string {
	var reply string
	if o.responder != nil {
		generated, err := o.responder.Generate(ctx, sess, d, toolResults)
		if err != nil {
			o.logger.Warn("response generation failed, falling back to template",
				"session_id", sess.ID, "err", err)
			sess.AppendTrace(domain.TraceError, "responder", map[string]any{"error": err.Error()}, o.now().UTC())
		} else {
			reply = generated.Body
		}
	}
	if reply == "" && d.Respond != nil {
		reply = d.Respond.Body
	}
	if reply == "" {
		reply = apologyReply
	}

	o.appendAgentReply(sess, "support", reply)
	return reply
}

func (o *Orchestrator) appendAgentReply(sess *domain.Session, agent, reply string) {
	now := o.now().UTC()
	sess.Messages = append(sess.Messages, domain.NewMessage(domain.RoleAgent, reply, now))
	sess.AppendTrace(domain.TraceAgentResponse, agent, map[string]any{"reply": reply}, now)
}

func (o *Orchestrator) traceDecision(sess *domain.Session, d domain.Decision) {
	data := map[string]any{
		"workflow_id":    d.WorkflowID,
		"rule_id":        d.RuleID,
		"next_action":    string(d.Action),
		"policy_applied": d.PolicyApplied,
	}
	if d.OverrideApplied {
		data["override_applied"] = true
		data["override_id"] = d.OverrideID
		data["trace_note"] = d.TraceNote
	}
	if d.AskClarifying != nil {
		data["required_fields_missing"] = d.AskClarifying.MissingFields
	}
	if d.CallTool != nil {
		names := make([]string, 0, len(d.CallTool.Plan))
		for _, c := range d.CallTool.Plan {
			names = append(names, c.ToolName)
		}
		data["tool_plan"] = names
	}
	sess.AppendTrace(domain.TraceWorkflowDecision, "workflow", data, o.now().UTC())
}

// applyContextUpdates persists rule set_context effects and override context
// patches into the case context. A promise grant without a stored deadline
// gets one computed from the contact-day calendar.
func (o *Orchestrator) applyContextUpdates(sess *domain.Session, updates map[string]any) {
	for key, value := range updates {
		o.setContextField(sess, key, value)
	}
	if sess.CaseContext.PromiseGiven && sess.CaseContext.PromiseDate == "" {
		promiseType, deadline := engine.ComputePromiseDeadline(sess.CaseContext.ContactDay, o.now())
		if sess.CaseContext.PromiseType == "" {
			sess.CaseContext.PromiseType = promiseType
		}
		sess.CaseContext.PromiseDate = deadline
	}
}

// shippingStatusTools names the tools whose status field describes the
// shipment itself. Other tools report the status of their own operation,
// which must never be written into shipping_status.
var shippingStatusTools = map[string]bool{
	"check_order_status": true,
	"get_shipping_info":  true,
}

// applyToolData writes successful tool outputs back into the case context so
// the next Evaluate observes fresh state. Status keys from non-shipping tools
// are stored under a tool-scoped name instead.
func (o *Orchestrator) applyToolData(sess *domain.Session, toolName string, data map[string]any) {
	for key, value := range data {
		switch key {
		case "status", "current_status":
			if shippingStatusTools[toolName] {
				o.setContextField(sess, "shipping_status", value)
			} else {
				o.setContextField(sess, toolName+"_"+key, value)
			}
		default:
			o.setContextField(sess, key, value)
		}
	}
}

func (o *Orchestrator) setContextField(sess *domain.Session, key string, value any) {
	cc := &sess.CaseContext
	switch key {
	case "order_id":
		cc.OrderID = asString(value)
	case "tracking_number":
		cc.TrackingNumber = asString(value)
	case "item_name":
		cc.ItemName = asString(value)
	case "refund_reason":
		cc.RefundReason = asString(value)
	case "order_date":
		cc.OrderDate = asString(value)
	case "shipping_status":
		cc.ShippingStatus = asString(value)
	case "promise_given":
		cc.PromiseGiven = asBool(value)
	case "promise_type":
		cc.PromiseType = asString(value)
	case "promise_date":
		cc.PromiseDate = asString(value)
	case "contact_day":
		cc.ContactDay = asString(value)
	case "item_photo", "packing_slip", "shipping_label":
		if cc.Evidence == nil {
			cc.Evidence = map[string]bool{}
		}
		cc.Evidence[key] = asBool(value)
	default:
		if cc.Extra == nil {
			cc.Extra = map[string]any{}
		}
		cc.Extra[key] = value
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "yes" || t == "1"
	case float64:
		return t != 0
	default:
		return false
	}
}

// GetTrace returns the ordered audit log for a session.
func (o *Orchestrator) GetTrace(ctx context.Context, sessionID string) ([]domain.TraceEvent, error) {
	sess, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Trace, nil
}

// GetSession returns the full session state.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return o.sessions.Load(ctx, sessionID)
}

// Resolve marks an active session as resolved. Escalated sessions stay
// locked.
func (o *Orchestrator) Resolve(ctx context.Context, sessionID string) (*domain.Session, error) {
	return o.sessions.Update(ctx, sessionID, func(s *domain.Session) error {
		if s.Status == domain.StatusEscalated {
			return domain.ErrSessionLocked
		}
		s.Status = domain.StatusResolved
		return nil
	})
}

// RequestEscalation escalates a session on explicit request, with an optional
// priority override. Escalating an already-escalated session is a no-op that
// returns the lock reply.
func (o *Orchestrator) RequestEscalation(ctx context.Context, sessionID, reason, priority string) (Result, error) {
	var result Result
	err := o.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := o.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status == domain.StatusEscalated {
			result = Result{
				SessionID:       sess.ID,
				Reply:           lockedReply,
				Status:          sess.Status,
				Intent:          sess.Intent,
				TraceEventCount: len(sess.Trace),
			}
			return nil
		}
		if reason == "" {
			reason = "Customer requested human assistance"
		}
		reply, payload := o.escalate(sess, reason, priority)
		sess.UpdatedAt = o.now().UTC()
		if err := o.sessions.Store().Save(ctx, sess); err != nil {
			return err
		}
		result = Result{
			SessionID:       sess.ID,
			Reply:           reply,
			Status:          sess.Status,
			Intent:          sess.Intent,
			TraceEventCount: len(sess.Trace),
			Escalation:      payload,
		}
		return nil
	})
	return result, err
}
