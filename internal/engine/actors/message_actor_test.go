package actors

import (
	"context"
	"testing"
	"time"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageOrderingAndActivity(t *testing.T) {
	env := newTestEnv(t)
	pid := env.spawn(func() actor.Actor { return NewMessageActor(env.deps) })
	convID := env.seedDirect(t, "alice", "bob")

	// Same clock tick for every send: stamps must still strictly increase.
	var sent []*models.Message
	for _, sender := range []string{"alice", "bob", "alice"} {
		sent = append(sent, env.request(t, pid, &SendMessageMsg{SenderID: sender, ConversationID: convID, Content: "hi"}).(*models.Message))
	}
	for i := 1; i < len(sent); i++ {
		assert.True(t, sent[i].CreatedAt.After(sent[i-1].CreatedAt))
	}

	listed := env.request(t, pid, &ListMessagesMsg{ConversationID: convID}).([]*models.Message)
	require.Len(t, listed, 3)
	for i := range sent {
		assert.Equal(t, sent[i].ID, listed[i].ID)
	}

	conv, err := env.db.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, sent[2].CreatedAt, conv.LastActivity)
	assert.Len(t, env.published(TopicMessages), 3)
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	pid := env.spawn(func() actor.Actor { return NewMessageActor(env.deps) })
	convID := env.seedDirect(t, "alice", "bob")

	env.requireCode(t, pid, &SendMessageMsg{SenderID: "alice", ConversationID: convID, Content: "   "}, utils.ErrValidation)
	env.requireCode(t, pid, &SendMessageMsg{SenderID: "mallory", ConversationID: convID, Content: "hi"}, utils.ErrPermissionDenied)
	env.requireCode(t, pid, &SendMessageMsg{SenderID: "alice", ConversationID: uuid.New(), Content: "hi"}, utils.ErrNotFound)
}

func TestSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	pid := env.spawn(func() actor.Actor { return NewMessageActor(env.deps) })
	convID := env.seedDirect(t, "alice", "bob")
	msg := env.request(t, pid, &SendMessageMsg{SenderID: "alice", ConversationID: convID, Content: "oops"}).(*models.Message)

	env.requireCode(t, pid, &DeleteMessageMsg{CallerID: "bob", MessageID: msg.ID}, utils.ErrPermissionDenied)
	env.requireCode(t, pid, &DeleteMessageMsg{CallerID: "alice", MessageID: uuid.New()}, utils.ErrNotFound)
	assert.Equal(t, true, env.request(t, pid, &DeleteMessageMsg{CallerID: "alice", MessageID: msg.ID}))

	listed := env.request(t, pid, &ListMessagesMsg{ConversationID: convID}).([]*models.Message)
	require.Len(t, listed, 1, "soft delete keeps the row")
	assert.True(t, listed[0].IsDeleted)
	assert.Equal(t, "oops", listed[0].Content, "masking happens at presentation")
}

func TestGetLastMessages(t *testing.T) {
	env := newTestEnv(t)
	pid := env.spawn(func() actor.Actor { return NewMessageActor(env.deps) })
	busy := env.seedDirect(t, "alice", "bob")
	quiet := env.seedDirect(t, "alice", "carol")

	env.request(t, pid, &SendMessageMsg{SenderID: "alice", ConversationID: busy, Content: "first"})
	env.clock.Advance(time.Second)
	last := env.request(t, pid, &SendMessageMsg{SenderID: "bob", ConversationID: busy, Content: "second"}).(*models.Message)

	result := env.request(t, pid, &GetLastMessagesMsg{ConversationIDs: []uuid.UUID{busy, quiet}}).(map[uuid.UUID]*models.Message)
	assert.Equal(t, last.ID, result[busy].ID)
	_, ok := result[quiet]
	assert.False(t, ok)
}
