package models

import (
	"time"

	"github.com/google/uuid"
)

// TypingState records the last keystroke of a user in a conversation.
type TypingState struct {
	ConversationID uuid.UUID `json:"conversationId" db:"conversation_id"`
	UserID         string    `json:"userId" db:"user_id"`
	TypedAt        time.Time `json:"typedAt" db:"typed_at"`
}

// ReadReceipt is the read watermark of a user in a conversation.
type ReadReceipt struct {
	ConversationID uuid.UUID `json:"conversationId" db:"conversation_id"`
	UserID         string    `json:"userId" db:"user_id"`
	LastReadAt     time.Time `json:"lastReadAt" db:"last_read_at"`
}
