package actors

import (
	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

type Topic string

const (
	TopicUsers         Topic = "users"
	TopicConversations Topic = "conversations"
	TopicMessages      Topic = "messages"
	TopicTyping        Topic = "typing"
	TopicReceipts      Topic = "receipts"
)

// Change is published on the actor system's event stream after every
// successful mutation. ConversationID is uuid.Nil for user changes; UserID is
// the user whose row changed, when there is one.
type Change struct {
	Topic          Topic
	ConversationID uuid.UUID
	UserID         string
}

func publish(context actor.Context, change *Change) {
	context.ActorSystem().EventStream.Publish(change)
}
