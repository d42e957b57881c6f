// Package runtime hosts the in-process agent pool: registration, capability
// based task dispatch, message routing between registered agents, and
// background memory maintenance.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/ergon/pkg/agent"
	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/errors"
	"github.com/jllopis/ergon/pkg/memory"
	"github.com/jllopis/ergon/pkg/telemetry"
)

// memoryHolder is satisfied by agents that own a memory store, the base
// agent included. The pool sweeps these in the background.
type memoryHolder interface {
	Store() *memory.Store
}

// routerAttacher is satisfied by agents that accept a message router.
type routerAttacher interface {
	AttachRouter(agent.Router)
}

// Pool manages a set of registered agents. It dispatches tasks to the first
// idle agent advertising the required capability and routes messages between
// registered agents. All pool state is mutex guarded; agents run their tasks
// concurrently.
type Pool struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	order  []string

	logger *slog.Logger
	tracer trace.Tracer

	sweepInterval time.Duration
	sweepTimeout  time.Duration
	sweepCancel   context.CancelFunc
	sweepDone     chan struct{}
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSweepInterval enables the background memory sweeper with the given
// period. Zero disables it.
func WithSweepInterval(d time.Duration) Option {
	return func(p *Pool) { p.sweepInterval = d }
}

// WithSweepTimeout bounds each sweep pass. Zero means no per-sweep deadline.
func WithSweepTimeout(d time.Duration) Option {
	return func(p *Pool) { p.sweepTimeout = d }
}

// NewPool creates an empty agent pool.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		agents: make(map[string]core.Agent),
		logger: slog.Default(),
		tracer: otel.Tracer("ergon/runtime"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds an agent to the pool and attaches the pool as its message
// router. Registration order determines dispatch preference.
func (p *Pool) Register(a core.Agent) error {
	if a == nil {
		return errors.New(errors.CodeInvalidInput, "cannot register a nil agent", nil)
	}
	p.mu.Lock()
	if _, exists := p.agents[a.ID()]; exists {
		p.mu.Unlock()
		return errors.New(errors.CodeInvalidInput, fmt.Sprintf("agent %s already registered", a.ID()), nil)
	}
	p.agents[a.ID()] = a
	p.order = append(p.order, a.ID())
	p.mu.Unlock()

	if ra, ok := a.(routerAttacher); ok {
		ra.AttachRouter(p)
	}
	p.logger.Info("pool.agent.registered",
		slog.String("agent_id", a.ID()),
		slog.String("agent_name", a.Name()),
		slog.String("agent_type", a.Type()),
	)
	return nil
}

// Deregister removes an agent from the pool and detaches its router.
// It reports whether the agent was registered.
func (p *Pool) Deregister(id string) bool {
	p.mu.Lock()
	a, exists := p.agents[id]
	if exists {
		delete(p.agents, id)
		for i, oid := range p.order {
			if oid == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	if !exists {
		return false
	}
	if ra, ok := a.(routerAttacher); ok {
		ra.AttachRouter(nil)
	}
	p.logger.Info("pool.agent.deregistered", slog.String("agent_id", id))
	return true
}

// Get returns the registered agent with the given id.
func (p *Pool) Get(id string) (core.Agent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.agents[id]
	return a, ok
}

// List returns a status snapshot for every registered agent, in registration
// order.
func (p *Pool) List() []core.StatusInfo {
	p.mu.RLock()
	agents := make([]core.Agent, 0, len(p.order))
	for _, id := range p.order {
		agents = append(agents, p.agents[id])
	}
	p.mu.RUnlock()

	infos := make([]core.StatusInfo, 0, len(agents))
	for _, a := range agents {
		infos = append(infos, a.StatusInfo())
	}
	return infos
}

// Size returns the number of registered agents.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}

// Dispatch hands the task to the first idle registered agent that advertises
// the task's capability (any agent when the task names none). When no agent
// is available it returns an AGENT_UNAVAILABLE error; execution outcomes,
// including rejection by an agent that went busy in between, are reported
// through the TaskResult. The executing agent's ID is annotated into the
// result metadata under "agent_id".
func (p *Pool) Dispatch(ctx context.Context, task *core.Task) (core.TaskResult, error) {
	if task == nil {
		return core.TaskResult{}, errors.New(errors.CodeInvalidInput, "cannot dispatch a nil task", nil)
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := p.tracer.Start(ctx, "Pool.Dispatch", trace.WithAttributes(
		telemetry.TaskAttributes(task.ID, task.Type, string(task.Capability))...,
	))
	defer span.End()
	traceID, spanID := traceIDs(span)

	target := p.selectAgent(task.Capability)
	if target == nil {
		err := errors.New(errors.CodeUnavailable,
			fmt.Sprintf("no idle agent with capability %q", task.Capability), nil).
			WithContext("task_id", task.ID).
			WithRecoverable(true)
		span.RecordError(err)
		p.logger.Warn("pool.dispatch.unavailable",
			slog.String("task_id", task.ID),
			slog.String("task_type", task.Type),
			slog.String("capability", string(task.Capability)),
			slog.String("run_id", runID),
			slog.String("trace_id", traceID),
			slog.String("span_id", spanID),
		)
		return core.TaskResult{}, err
	}

	p.logger.Info("pool.dispatch",
		slog.String("agent_id", target.ID()),
		slog.String("task_id", task.ID),
		slog.String("task_type", task.Type),
		slog.String("run_id", runID),
		slog.String("trace_id", traceID),
		slog.String("span_id", spanID),
	)
	result := target.ExecuteTask(ctx, task)
	if result.Metadata == nil {
		result.Metadata = make(map[string]any, 1)
	}
	result.Metadata["agent_id"] = target.ID()
	return result, nil
}

// selectAgent picks the first idle agent matching cap in registration order.
func (p *Pool) selectAgent(cap core.Capability) core.Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, id := range p.order {
		a := p.agents[id]
		if a.State() != core.StateIdle {
			continue
		}
		if cap != "" && !core.HasCapability(a.Capabilities(), cap) {
			continue
		}
		return a
	}
	return nil
}

// Route delivers a message to the registered agent addressed by Recipient.
// An unknown recipient is a NOT_FOUND error; the sender's Communicate then
// reports false.
func (p *Pool) Route(ctx context.Context, msg core.Message) error {
	p.mu.RLock()
	target, ok := p.agents[msg.Recipient]
	p.mu.RUnlock()
	if !ok {
		p.logger.Warn("pool.route.unknown_recipient",
			slog.String("sender", msg.Sender),
			slog.String("recipient", msg.Recipient),
		)
		return errors.New(errors.CodeNotFound,
			fmt.Sprintf("unknown message recipient %s", msg.Recipient), nil).
			WithContext("sender", msg.Sender)
	}
	target.ReceiveMessage(ctx, msg)
	return nil
}

// Start launches background maintenance (the memory sweeper, when an
// interval is configured).
func (p *Pool) Start(_ context.Context) error {
	p.startSweeper()
	return nil
}

// Stop halts background maintenance. Registered agents keep running.
func (p *Pool) Stop(_ context.Context) error {
	p.stopSweeper()
	return nil
}

// Shutdown stops maintenance and shuts down every registered agent.
func (p *Pool) Shutdown(ctx context.Context) {
	p.stopSweeper()

	p.mu.RLock()
	agents := make([]core.Agent, 0, len(p.order))
	for _, id := range p.order {
		agents = append(agents, p.agents[id])
	}
	p.mu.RUnlock()

	for _, a := range agents {
		a.Shutdown(ctx)
	}
	p.logger.Info("pool.shutdown", slog.Int("agents", len(agents)))
}

func traceIDs(span trace.Span) (string, string) {
	sc := span.SpanContext()
	return sc.TraceID().String(), sc.SpanID().String()
}

var _ agent.Router = (*Pool)(nil)
