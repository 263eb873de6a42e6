package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable apart from IsDeleted. Deleting a message keeps the row
// so ordering and unread counts are unaffected.
type Message struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID uuid.UUID `json:"conversationId" db:"conversation_id"`
	SenderID       string    `json:"senderId" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	IsDeleted      bool      `json:"isDeleted" db:"is_deleted"`
}
