package engine

import (
	"gator-chat/internal/engine/actors"
	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/google/uuid"
)

type QueryKind string

const (
	QueryCurrentUser   QueryKind = "currentUser"
	QueryUsers         QueryKind = "users"
	QueryConversations QueryKind = "conversations"
	QueryMembers       QueryKind = "members"
	QueryMessages      QueryKind = "messages"
	QueryTyping        QueryKind = "typing"
	QueryUnread        QueryKind = "unread"
)

// Query names a read that can be subscribed to. ConversationID is required
// by the conversation-scoped kinds and ignored by the others.
type Query struct {
	Kind           QueryKind `json:"kind"`
	ConversationID uuid.UUID `json:"conversationId"`
}

func (q Query) scoped() bool {
	switch q.Kind {
	case QueryMembers, QueryMessages, QueryTyping, QueryUnread:
		return true
	}
	return false
}

func (q Query) Validate() error {
	switch q.Kind {
	case QueryCurrentUser, QueryUsers, QueryConversations, QueryMembers, QueryMessages, QueryTyping, QueryUnread:
	default:
		return utils.NewValidationError("unknown query kind: " + string(q.Kind))
	}
	if q.scoped() && q.ConversationID == uuid.Nil {
		return utils.NewValidationError("conversationId is required for " + string(q.Kind))
	}
	return nil
}

// DependsOn reports whether change may alter the result of q for viewer.
// It over-approximates; subscribers compare results before pushing.
func (q Query) DependsOn(change *actors.Change, viewer string) bool {
	sameConversation := change.ConversationID == q.ConversationID

	switch q.Kind {
	case QueryCurrentUser:
		return change.Topic == actors.TopicUsers && change.UserID == viewer
	case QueryUsers:
		return change.Topic == actors.TopicUsers
	case QueryConversations:
		switch change.Topic {
		case actors.TopicUsers, actors.TopicConversations, actors.TopicMessages:
			return true
		case actors.TopicReceipts:
			return change.UserID == viewer
		}
	case QueryMembers:
		return change.Topic == actors.TopicUsers ||
			(change.Topic == actors.TopicConversations && sameConversation)
	case QueryMessages:
		return sameConversation &&
			(change.Topic == actors.TopicMessages || change.Topic == actors.TopicConversations)
	case QueryTyping:
		return change.Topic == actors.TopicUsers ||
			(sameConversation && (change.Topic == actors.TopicTyping || change.Topic == actors.TopicConversations))
	case QueryUnread:
		if !sameConversation {
			return false
		}
		switch change.Topic {
		case actors.TopicMessages, actors.TopicConversations:
			return true
		case actors.TopicReceipts:
			return change.UserID == viewer
		}
	}
	return false
}

// Evaluate runs q on behalf of id. Results are JSON-ready.
func (e *Engine) Evaluate(id *models.Identity, q Query) (interface{}, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	switch q.Kind {
	case QueryCurrentUser:
		return e.CurrentUser(id)
	case QueryUsers:
		return e.ListOtherUsers(id)
	case QueryConversations:
		return e.ListConversations(id)
	case QueryMembers:
		return e.ListMembers(id, q.ConversationID)
	case QueryMessages:
		return e.ListMessages(id, q.ConversationID)
	case QueryTyping:
		return e.CurrentTyper(id, q.ConversationID)
	default:
		return e.UnreadCount(id, q.ConversationID)
	}
}
