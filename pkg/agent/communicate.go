package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/ergon/pkg/core"
)

// MessageOption customizes an outgoing message.
type MessageOption func(*core.Message)

// WithMessageType overrides the default agent_to_agent message type.
func WithMessageType(messageType core.MessageType) MessageOption {
	return func(m *core.Message) { m.Type = messageType }
}

// WithMessageMetadata attaches metadata to the outgoing message.
func WithMessageMetadata(metadata map[string]any) MessageOption {
	return func(m *core.Message) { m.Metadata = metadata }
}

// Communicate sends a message to another agent or a human operator. The
// transition to COMMUNICATING is always restored to IDLE. It reports
// delivery: true when the message was recorded and, if a router is
// attached, delivered; false on any failure. It never returns an error or
// panics.
func (b *Base) Communicate(ctx context.Context, recipient, content string, opts ...MessageOption) (sent bool) {
	b.UpdateStatus(ctx, core.StateCommunicating)
	defer b.UpdateStatus(ctx, core.StateIdle)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("agent.communicate.panic",
				slog.String("agent_id", b.id),
				slog.String("recipient", recipient),
				slog.String("panic", fmt.Sprint(r)),
			)
			sent = false
		}
	}()

	msg := core.NewMessage(b.id, recipient, core.MessageAgentToAgent, content)
	for _, opt := range opts {
		opt(&msg)
	}

	b.remember(ctx, "communication", map[string]any{
		"recipient_id": recipient,
		"message":      content,
		"message_type": string(msg.Type),
		"metadata":     msg.Metadata,
		"sent_at":      msg.SentAt.UTC().Format(time.RFC3339Nano),
	})

	b.mu.RLock()
	router := b.router
	b.mu.RUnlock()
	if router != nil {
		if err := router.Route(ctx, msg); err != nil {
			b.logger.Error("agent.message.route_error",
				slog.String("agent_id", b.id),
				slog.String("recipient", recipient),
				slog.String("error", err.Error()),
			)
			return false
		}
	}

	b.metrics.RecordMessageSent(ctx, b.id, string(msg.Type))
	b.emit(ctx, core.EventMessageSent, "", map[string]any{
		"message_id": msg.ID,
		"recipient":  recipient,
		"type":       string(msg.Type),
	})
	b.logger.Info("agent.message.sent",
		slog.String("agent_id", b.id),
		slog.String("message_id", msg.ID),
		slog.String("recipient", recipient),
		slog.String("type", string(msg.Type)),
		slog.Bool("routed", router != nil),
	)
	return true
}

// ReceiveMessage records the incoming message and dispatches it to the
// handler registered for its type, falling back to the default handler.
// Handler faults are absorbed and logged, never surfaced to the sender.
func (b *Base) ReceiveMessage(ctx context.Context, msg core.Message) {
	b.remember(ctx, "received_message", map[string]any{
		"sender_id":    msg.Sender,
		"message":      msg.Content,
		"message_type": string(msg.Type),
		"metadata":     msg.Metadata,
		"received_at":  time.Now().UTC().Format(time.RFC3339Nano),
	})

	b.mu.RLock()
	handler := b.messageHandlers[msg.Type]
	b.mu.RUnlock()
	if handler == nil {
		handler = b.defaultMessageHandler
	}
	b.dispatchMessage(ctx, handler, msg)

	b.emit(ctx, core.EventMessageReceived, "", map[string]any{
		"message_id": msg.ID,
		"sender":     msg.Sender,
		"type":       string(msg.Type),
	})
}

func (b *Base) dispatchMessage(ctx context.Context, handler MessageHandler, msg core.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("agent.message_handler.panic",
				slog.String("agent_id", b.id),
				slog.String("message_id", msg.ID),
				slog.String("sender", msg.Sender),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := handler(ctx, msg); err != nil {
		b.logger.Error("agent.message_handler.error",
			slog.String("agent_id", b.id),
			slog.String("message_id", msg.ID),
			slog.String("sender", msg.Sender),
			slog.String("error", err.Error()),
		)
		return
	}
	b.logger.Info("agent.message.processed",
		slog.String("agent_id", b.id),
		slog.String("message_id", msg.ID),
		slog.String("sender", msg.Sender),
	)
}

// defaultMessageHandler is the fallback for message types without a
// registered handler. Concrete agents override it per type through
// RegisterMessageHandler.
func (b *Base) defaultMessageHandler(_ context.Context, _ core.Message) error {
	return nil
}

// RegisterMessageHandler installs the handler for a message type, replacing
// any previous handler for that type.
func (b *Base) RegisterMessageHandler(messageType core.MessageType, handler MessageHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messageHandlers[messageType] = handler
}

// RegisterStatusCallback appends a callback invoked on every state
// transition, in registration order. Callbacks cannot be removed.
func (b *Base) RegisterStatusCallback(cb StatusCallback) {
	if cb == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCallbacks = append(b.statusCallbacks, cb)
}
