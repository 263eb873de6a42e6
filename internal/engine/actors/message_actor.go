package actors

import (
	"strings"
	"time"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for MessageActor
type (
	SendMessageMsg struct {
		SenderID       string
		ConversationID uuid.UUID
		Content        string
	}

	// ListMessagesMsg returns the conversation's log oldest first, soft
	// deleted messages included.
	ListMessagesMsg struct {
		ConversationID uuid.UUID
	}

	DeleteMessageMsg struct {
		CallerID  string
		MessageID uuid.UUID
	}

	// GetLastMessagesMsg maps each conversation to its newest message.
	// Conversations without messages are absent from the result.
	GetLastMessagesMsg struct {
		ConversationIDs []uuid.UUID
	}
)

// MessageActor owns the append-only message log.
type MessageActor struct {
	deps *Deps
}

func NewMessageActor(deps *Deps) actor.Actor {
	return &MessageActor{deps: deps}
}

func (a *MessageActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.deps.Logger.Debug("MessageActor started")
	case *actor.Stopping:
		a.deps.Logger.Debug("MessageActor stopping")
	case *SendMessageMsg:
		a.handleSend(context, msg)
	case *ListMessagesMsg:
		a.handleList(context, msg)
	case *DeleteMessageMsg:
		a.handleDelete(context, msg)
	case *GetLastMessagesMsg:
		a.handleGetLast(context, msg)
	default:
		a.deps.Logger.Debug("MessageActor: unknown message", "type", typeName(msg))
	}
}

func (a *MessageActor) handleSend(context actor.Context, msg *SendMessageMsg) {
	startTime := time.Now()
	if strings.TrimSpace(msg.Content) == "" {
		context.Respond(utils.NewValidationError("message content is required"))
		return
	}

	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if _, err := requireParticipant(ctx, a.deps.DB, msg.ConversationID, msg.SenderID); err != nil {
		respondErr(context, err)
		return
	}

	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      a.deps.Stamps.Next(),
	}
	if err := a.deps.DB.SaveMessage(ctx, message); err != nil {
		respondErr(context, err)
		return
	}
	// Moves last activity forward only, so a slower concurrent send cannot
	// roll it back.
	if err := a.deps.DB.TouchConversation(ctx, msg.ConversationID, message.CreatedAt); err != nil {
		a.deps.Logger.Warn("Failed to bump conversation activity", "conversation", msg.ConversationID, "error", err)
	}

	a.deps.Logger.Debug("Message sent", "conversation", msg.ConversationID, "message", message.ID)
	publish(context, &Change{Topic: TopicMessages, ConversationID: msg.ConversationID, UserID: msg.SenderID})
	a.deps.Metrics.AddOperationLatency("send_message", time.Since(startTime))
	context.Respond(message)
}

func (a *MessageActor) handleList(context actor.Context, msg *ListMessagesMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	messages, err := a.deps.DB.GetConversationMessages(ctx, msg.ConversationID)
	if err != nil {
		respondErr(context, err)
		return
	}
	context.Respond(messages)
}

func (a *MessageActor) handleDelete(context actor.Context, msg *DeleteMessageMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	message, err := a.deps.DB.GetMessage(ctx, msg.MessageID)
	if err != nil {
		respondErr(context, err)
		return
	}
	if message.SenderID != msg.CallerID {
		context.Respond(utils.NewPermissionDeniedError("can only delete your own messages"))
		return
	}
	if err := a.deps.DB.MarkMessageDeleted(ctx, msg.MessageID); err != nil {
		respondErr(context, err)
		return
	}

	publish(context, &Change{Topic: TopicMessages, ConversationID: message.ConversationID, UserID: msg.CallerID})
	context.Respond(true)
}

func (a *MessageActor) handleGetLast(context actor.Context, msg *GetLastMessagesMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	last := make(map[uuid.UUID]*models.Message, len(msg.ConversationIDs))
	for _, id := range msg.ConversationIDs {
		message, err := a.deps.DB.GetLastMessage(ctx, id)
		if err != nil {
			respondErr(context, err)
			return
		}
		if message != nil {
			last[id] = message
		}
	}
	context.Respond(last)
}
