package resolvd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resolvd/resolvd/internal/engine"
	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/pkg/adapters/file"
	"github.com/resolvd/resolvd/pkg/adapters/memory"
	"github.com/resolvd/resolvd/pkg/adapters/mock"
	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/observability"
	"github.com/resolvd/resolvd/pkg/orchestrator"
	"github.com/resolvd/resolvd/pkg/override"
	"github.com/resolvd/resolvd/pkg/ports"
	"github.com/resolvd/resolvd/pkg/session"
)

// Version identifies the library release.
var Version = "0.1.0"

// Desk is the high-level entry point for the library. It wires the workflow
// loader, the decision engine, the override store, and the session
// orchestrator behind a single API.
type Desk struct {
	loader    ports.WorkflowLoader
	store     ports.SessionStore
	overrides *override.Store
	orch      *orchestrator.Orchestrator
	logger    *slog.Logger

	classifier   ports.Classifier
	responder    ports.Responder
	executor     ports.ToolExecutor
	overrideRepo ports.OverrideRepository
	metrics      *observability.Metrics
	orchOpts     []orchestrator.Option
}

// Option configures the Desk.
type Option func(*Desk)

// WithLoader injects a custom workflow loader, bypassing the default
// filesystem loader.
func WithLoader(l ports.WorkflowLoader) Option {
	return func(d *Desk) { d.loader = l }
}

// WithStore injects a session store. Defaults to the in-memory store.
func WithStore(s ports.SessionStore) Option {
	return func(d *Desk) { d.store = s }
}

// WithClassifier injects an intent classifier. Defaults to the keyword mock.
func WithClassifier(c ports.Classifier) Option {
	return func(d *Desk) { d.classifier = c }
}

// WithResponder injects a response generator. Defaults to the template mock.
func WithResponder(r ports.Responder) Option {
	return func(d *Desk) { d.responder = r }
}

// WithToolExecutor injects a tool executor. Defaults to the canned-data mock.
func WithToolExecutor(t ports.ToolExecutor) Option {
	return func(d *Desk) { d.executor = t }
}

// WithOverrideRepository sets the persistence backend for policy overrides.
// Without one, overrides live in memory only.
func WithOverrideRepository(r ports.OverrideRepository) Option {
	return func(d *Desk) { d.overrideRepo = r }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Desk) { d.logger = logger }
}

// WithMetrics wires Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Desk) { d.metrics = m }
}

// WithOrchestratorOptions forwards extra options to the orchestrator, for
// tuning the hop limit, failure threshold, or clock.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(d *Desk) { d.orchOpts = append(d.orchOpts, opts...) }
}

// New initializes a Desk. By default workflows are loaded from JSON documents
// under workflowsDir; pass WithLoader to skip the filesystem entirely, in
// which case workflowsDir may be empty.
func New(workflowsDir string, opts ...Option) (*Desk, error) {
	d := &Desk{}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = logging.NewNop()
	}

	if d.loader == nil {
		if workflowsDir == "" {
			return nil, fmt.Errorf("workflowsDir is required when no custom loader is provided")
		}
		loader, err := file.NewWorkflowLoader(workflowsDir, file.WithLogger(d.logger))
		if err != nil {
			return nil, fmt.Errorf("load workflows: %w", err)
		}
		d.loader = loader
	}

	if d.store == nil {
		d.store = memory.NewStore()
	}
	if d.classifier == nil {
		d.classifier = mock.NewClassifier()
	}
	if d.responder == nil {
		d.responder = mock.NewResponder()
	}
	if d.executor == nil {
		d.executor = mock.NewToolExecutor()
	}

	overrideOpts := []override.Option{override.WithLogger(d.logger)}
	if d.overrideRepo != nil {
		overrideOpts = append(overrideOpts, override.WithRepository(d.overrideRepo))
	}
	d.overrides = override.NewStore(overrideOpts...)
	if err := d.overrides.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	eng := engine.New(d.loader,
		engine.WithOverrides(d.overrides),
		engine.WithLogger(d.logger),
	)

	manager := session.NewManager(d.store, session.WithLogger(d.logger))

	orchOpts := []orchestrator.Option{
		orchestrator.WithClassifier(d.classifier),
		orchestrator.WithResponder(d.responder),
		orchestrator.WithToolExecutor(d.executor),
		orchestrator.WithLogger(d.logger),
	}
	if d.metrics != nil {
		orchOpts = append(orchOpts, orchestrator.WithMetrics(d.metrics))
	}
	orchOpts = append(orchOpts, d.orchOpts...)

	d.orch = orchestrator.New(manager, eng, orchOpts...)
	return d, nil
}

// Start opens a new session for the customer and returns it with the greeting
// already appended.
func (d *Desk) Start(ctx context.Context, customer domain.CustomerInfo) (*domain.Session, error) {
	return d.orch.Start(ctx, customer)
}

// ProcessMessage runs one customer message through the pipeline.
func (d *Desk) ProcessMessage(ctx context.Context, sessionID, message string) (orchestrator.Result, error) {
	return d.orch.ProcessMessage(ctx, sessionID, message)
}

// GetSession returns the full session record.
func (d *Desk) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return d.orch.GetSession(ctx, sessionID)
}

// GetTrace returns the session's decision trace.
func (d *Desk) GetTrace(ctx context.Context, sessionID string) ([]domain.TraceEvent, error) {
	return d.orch.GetTrace(ctx, sessionID)
}

// RequestEscalation hands the session to a human on explicit request.
func (d *Desk) RequestEscalation(ctx context.Context, sessionID, reason, priority string) (orchestrator.Result, error) {
	return d.orch.RequestEscalation(ctx, sessionID, reason, priority)
}

// Resolve closes an active session. Escalated sessions cannot be resolved.
func (d *Desk) Resolve(ctx context.Context, sessionID string) (*domain.Session, error) {
	return d.orch.Resolve(ctx, sessionID)
}

// Overrides exposes the policy override store for admin surfaces.
func (d *Desk) Overrides() *override.Store {
	return d.overrides
}

// Orchestrator exposes the underlying orchestrator, mainly for the HTTP
// adapter.
func (d *Desk) Orchestrator() *orchestrator.Orchestrator {
	return d.orch
}

// Metrics exposes the metrics bundle, nil when none was wired.
func (d *Desk) Metrics() *observability.Metrics {
	return d.metrics
}

// Reload re-reads workflow definitions when the loader supports it.
func (d *Desk) Reload() error {
	if r, ok := d.loader.(ports.Reloadable); ok {
		return r.Reload()
	}
	return fmt.Errorf("current loader does not support reloading")
}

// Watch returns a channel that signals when workflow definitions change on
// disk. Returns an error if the loader does not support watching.
func (d *Desk) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := d.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}
