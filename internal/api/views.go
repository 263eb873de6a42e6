package api

import (
	"time"

	"gator-chat/internal/models"

	"github.com/google/uuid"
)

// DeletedMessagePlaceholder replaces the content of soft-deleted messages
// wherever messages are rendered.
const DeletedMessagePlaceholder = "This message was deleted"

type MessageView struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	IsDeleted      bool      `json:"isDeleted"`
}

func NewMessageView(msg *models.Message) *MessageView {
	if msg == nil {
		return nil
	}
	view := &MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
		IsDeleted:      msg.IsDeleted,
	}
	if msg.IsDeleted {
		view.Content = DeletedMessagePlaceholder
	}
	return view
}

func NewMessageViews(msgs []*models.Message) []*MessageView {
	views := make([]*MessageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, NewMessageView(msg))
	}
	return views
}

// ConversationSummary is one sidebar row.
type ConversationSummary struct {
	ID           uuid.UUID               `json:"id"`
	Kind         models.ConversationKind `json:"kind"`
	Name         string                  `json:"name,omitempty"`
	Image        string                  `json:"image,omitempty"`
	Participants []string                `json:"participants"`
	Admins       []string                `json:"admins,omitempty"`
	LastActivity time.Time               `json:"lastActivity"`
	OtherUser    *models.User            `json:"otherUser,omitempty"`
	LastMessage  *MessageView            `json:"lastMessage,omitempty"`
	UnreadCount  int                     `json:"unreadCount"`
}

// Member is a participant of a conversation annotated with its admin flag.
type Member struct {
	models.User
	IsAdmin bool `json:"isAdmin"`
}

// TypingIndicator names the user currently typing. It stops being valid at
// ExpiresAt unless the user types again.
type TypingIndicator struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Since     time.Time `json:"since"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expiry is zero for a nil indicator.
func (t *TypingIndicator) Expiry() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.ExpiresAt
}

type UnreadCount struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Count          int       `json:"count"`
}

type ConversationIDResponse struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
