// Package agent implements the task-execution state machine shared by all
// concrete agents: lifecycle states, ordered memory writes, messaging, and
// performance counters.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/memory"
	"github.com/jllopis/ergon/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TaskHandler executes one task for a concrete agent type. The handler owns
// the semantic outcome; the surrounding Base owns state transitions, memory
// writes, counters, and fault isolation.
type TaskHandler func(ctx context.Context, task *core.Task) core.TaskResult

// MessageHandler processes one received message of a registered type.
type MessageHandler func(ctx context.Context, msg core.Message) error

// StatusCallback observes a state transition. Callback failures are logged
// and never affect the transition or later callbacks.
type StatusCallback func(ctx context.Context, agentID string, from, to core.AgentState) error

// Router delivers messages between agents. The runtime pool implements it;
// an unattached agent records outgoing messages without delivering them.
type Router interface {
	Route(ctx context.Context, msg core.Message) error
}

var ErrMissingHandler = errors.New("agent task handler is required")

// Base is the common agent implementation. Concrete agents are built around
// it by registering a TaskHandler and message handlers.
type Base struct {
	id           string
	name         string
	agentType    string
	description  string
	capabilities []core.Capability

	handler TaskHandler
	store   *memory.Store
	emitter core.EventEmitter
	metrics *telemetry.AgentMetrics
	tracer  trace.Tracer
	logger  *slog.Logger

	mu              sync.RWMutex
	state           core.AgentState
	currentTaskID   string
	router          Router
	tasksCompleted  int64
	tasksFailed     int64
	totalExecution  time.Duration
	messageHandlers map[core.MessageType]MessageHandler
	statusCallbacks []StatusCallback
}

// Option configures a Base instance.
type Option func(*Base) error

// New creates an agent with a generated id, an attached memory store, and the
// given options. A task handler is required.
func New(name, agentType string, opts ...Option) (*Base, error) {
	b := &Base{
		id:              uuid.NewString(),
		name:            name,
		agentType:       agentType,
		state:           core.StateIdle,
		emitter:         core.NoopEventEmitter{},
		logger:          slog.Default(),
		messageHandlers: make(map[core.MessageType]MessageHandler),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.name == "" {
		return nil, errors.New("agent name is required")
	}
	if b.agentType == "" {
		return nil, errors.New("agent type is required")
	}
	if b.handler == nil {
		return nil, ErrMissingHandler
	}
	if b.description == "" {
		b.description = fmt.Sprintf("%s - %s agent", b.name, b.agentType)
	}
	if b.store == nil {
		b.store = memory.NewStore(b.id, memory.WithLogger(b.logger))
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer("ergon/agent")
	}
	return b, nil
}

// WithID overrides the generated agent id.
func WithID(id string) Option {
	return func(b *Base) error {
		if id == "" {
			return errors.New("agent id cannot be empty")
		}
		b.id = id
		return nil
	}
}

// WithDescription sets a human-readable description.
func WithDescription(description string) Option {
	return func(b *Base) error {
		b.description = description
		return nil
	}
}

// WithCapabilities assigns the capability set used for dispatch.
func WithCapabilities(caps ...core.Capability) Option {
	return func(b *Base) error {
		b.capabilities = append([]core.Capability(nil), caps...)
		return nil
	}
}

// WithHandler sets the task handler.
func WithHandler(handler TaskHandler) Option {
	return func(b *Base) error {
		b.handler = handler
		return nil
	}
}

// WithStore attaches a memory store. Without it the agent creates its own
// cache-only store.
func WithStore(store *memory.Store) Option {
	return func(b *Base) error {
		if store == nil {
			return errors.New("agent store cannot be nil")
		}
		b.store = store
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) error {
		if logger != nil {
			b.logger = logger
		}
		return nil
	}
}

// WithMetrics attaches agent telemetry instruments.
func WithMetrics(metrics *telemetry.AgentMetrics) Option {
	return func(b *Base) error {
		b.metrics = metrics
		return nil
	}
}

// WithEventEmitter sets the semantic event sink.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(b *Base) error {
		if emitter != nil {
			b.emitter = emitter
		}
		return nil
	}
}

// ID returns the agent identifier.
func (b *Base) ID() string { return b.id }

// Name returns the human-readable agent name.
func (b *Base) Name() string { return b.name }

// Type returns the agent type.
func (b *Base) Type() string { return b.agentType }

// Description returns the agent description.
func (b *Base) Description() string { return b.description }

// Capabilities returns a copy of the agent's capability set.
func (b *Base) Capabilities() []core.Capability {
	return append([]core.Capability(nil), b.capabilities...)
}

// HasCapability reports whether the agent advertises cap.
func (b *Base) HasCapability(cap core.Capability) bool {
	return core.HasCapability(b.capabilities, cap)
}

// State returns the current lifecycle state.
func (b *Base) State() core.AgentState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// CurrentTaskID returns the id of the task in flight, or empty.
func (b *Base) CurrentTaskID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentTaskID
}

// Store returns the agent's memory store.
func (b *Base) Store() *memory.Store { return b.store }

// Logger returns the agent's structured logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// AttachRouter connects the agent to a message router. The pool calls this
// on registration.
func (b *Base) AttachRouter(r Router) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.router = r
}

var _ core.Agent = (*Base)(nil)
