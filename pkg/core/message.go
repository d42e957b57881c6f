package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageType classifies the direction and origin of a message.
type MessageType string

const (
	MessageAgentToAgent MessageType = "agent_to_agent"
	MessageAgentToHuman MessageType = "agent_to_human"
	MessageHumanToAgent MessageType = "human_to_agent"
	MessageSystem       MessageType = "system"
)

// Message is a directed message between agents or between an agent and a
// human operator. Messages are immutable once constructed.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Type      MessageType
	Content   string
	Metadata  map[string]any
	SentAt    time.Time
}

// NewMessage creates a message with a generated ID and send timestamp.
func NewMessage(sender, recipient string, messageType MessageType, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Type:      messageType,
		Content:   content,
		SentAt:    time.Now().UTC(),
	}
}

// WithMetadata returns a copy of the message with metadata attached.
func (m Message) WithMetadata(metadata map[string]any) Message {
	m.Metadata = metadata
	return m
}
