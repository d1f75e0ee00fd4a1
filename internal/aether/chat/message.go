// Package chat implements the conversation engine: prompt assembly with the
// refined-memory index, the in-band recall protocol, and paced multi-bubble
// delivery of the reply into the message log.
package chat

import "time"

// Role is the author of a logged message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Type is the kind of a logged message.
type Type string

const (
	TypeText        Type = "text"
	TypeTransfer    Type = "transfer"
	TypeInteraction Type = "interaction" // a poke
	TypeVoice       Type = "voice"
	TypeEmoji       Type = "emoji"
)

// Valid reports whether t is a known message type.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeTransfer, TypeInteraction, TypeVoice, TypeEmoji:
		return true
	}
	return false
}

// Message is one entry of a character's append-only message log.
type Message struct {
	ID        int64          `json:"id"`
	CharID    string         `json:"char_id"`
	Role      Role           `json:"role"`
	Type      Type           `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
