package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gator-chat/internal/api"
	"gator-chat/internal/database"
	"gator-chat/internal/engine/actors"
	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const typingWindow = 2 * time.Second

func newTestEngine(t *testing.T) (*Engine, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)

	e := NewEngine(system, Options{
		DB:           database.NewMemoryDB(),
		Clock:        clock,
		Logger:       utils.DiscardLogger(),
		Timeout:      5 * time.Second,
		TypingWindow: typingWindow,
		AvatarStyle:  "identicon",
	})
	return e, clock
}

func ident(sub string) *models.Identity {
	return &models.Identity{Subject: sub, Name: strings.ToUpper(sub[:1]) + sub[1:], Email: sub + "@example.com"}
}

func mustUpsert(t *testing.T, e *Engine, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		_, err := e.UpsertUser(ident(sub), "")
		require.NoError(t, err)
	}
}

func TestAnonymousCallers(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob")
	convID, err := e.ResolveDirect(ident("alice"), "bob")
	require.NoError(t, err)

	_, err = e.UpsertUser(nil, "")
	assert.True(t, utils.IsErrorCode(err, utils.ErrUnauthenticated))
	_, err = e.ResolveDirect(nil, "bob")
	assert.True(t, utils.IsErrorCode(err, utils.ErrUnauthenticated))
	_, err = e.SendMessage(nil, convID, "hi")
	assert.True(t, utils.IsErrorCode(err, utils.ErrUnauthenticated))
	assert.True(t, utils.IsErrorCode(e.SetTyping(nil, convID), utils.ErrUnauthenticated))
	assert.True(t, utils.IsErrorCode(e.MarkRead(nil, convID), utils.ErrUnauthenticated))
	assert.True(t, utils.IsErrorCode(e.SetOffline(&models.Identity{}), utils.ErrUnauthenticated))

	user, err := e.CurrentUser(nil)
	require.NoError(t, err)
	assert.Nil(t, user)

	users, err := e.ListOtherUsers(nil)
	require.NoError(t, err)
	assert.Empty(t, users)

	convs, err := e.ListConversations(nil)
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)

	msgs, err := e.ListMessages(nil, convID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	count, err := e.UnreadCount(nil, convID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertUserAvatarPrecedence(t *testing.T) {
	e, _ := newTestEngine(t)

	user, err := e.UpsertUser(ident("alice"), "https://img.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.png", user.ImageURL)
	assert.True(t, user.IsOnline)

	bob := ident("bob")
	bob.PictureURL = "https://idp.example.com/bob.png"
	user, err = e.UpsertUser(bob, "")
	require.NoError(t, err)
	assert.Equal(t, bob.PictureURL, user.ImageURL)

	user, err = e.UpsertUser(ident("carol"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.ImageURL, "https://api.dicebear.com/7.x/identicon/svg?seed="))

	regenerated, err := e.RegenerateAvatar(ident("carol"), "")
	require.NoError(t, err)
	assert.NotEqual(t, user.ImageURL, regenerated.ImageURL)

	require.NoError(t, e.SetOffline(ident("carol")))
	current, err := e.CurrentUser(ident("carol"))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.False(t, current.IsOnline)

	others, err := e.ListOtherUsers(ident("carol"))
	require.NoError(t, err)
	assert.Len(t, others, 2)
	for _, other := range others {
		assert.NotEqual(t, "carol", other.IdentityID)
	}
}

func TestConcurrentResolveDirect(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob")

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			self, other := "alice", "bob"
			if i%2 == 1 {
				self, other = other, self
			}
			id, err := e.ResolveDirect(ident(self), other)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	convs, err := e.ListConversations(ident("alice"))
	require.NoError(t, err)
	assert.Len(t, convs, 1)

	_, err = e.ResolveDirect(ident("alice"), "alice")
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))
}

func TestSidebarSummaries(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob", "carol")
	alice, bob := ident("alice"), ident("bob")

	direct, err := e.ResolveDirect(alice, "bob")
	require.NoError(t, err)
	group, err := e.CreateGroup(alice, "team", "", []string{"bob", "carol"})
	require.NoError(t, err)

	_, err = e.SendMessage(alice, direct, "hello")
	require.NoError(t, err)
	_, err = e.SendMessage(alice, direct, "are you there?")
	require.NoError(t, err)

	convs, err := e.ListConversations(bob)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, direct, convs[0].ID, "the conversation with the newest message comes first")
	require.NotNil(t, convs[0].OtherUser)
	assert.Equal(t, "alice", convs[0].OtherUser.IdentityID)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "are you there?", convs[0].LastMessage.Content)
	assert.Equal(t, 2, convs[0].UnreadCount)

	assert.Equal(t, group, convs[1].ID)
	assert.Equal(t, "team", convs[1].Name)
	assert.Nil(t, convs[1].OtherUser)
	assert.Nil(t, convs[1].LastMessage)
	assert.Equal(t, []string{"alice"}, convs[1].Admins)

	own, err := e.UnreadCount(alice, direct)
	require.NoError(t, err)
	assert.Zero(t, own, "own messages never count as unread")

	require.NoError(t, e.MarkRead(bob, direct))
	count, err := e.UnreadCount(bob, direct)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = e.SendMessage(alice, direct, "ping")
	require.NoError(t, err)
	count, err = e.UnreadCount(bob, direct)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSoftDeleteMasksContent(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob")
	alice, bob := ident("alice"), ident("bob")
	convID, err := e.ResolveDirect(alice, "bob")
	require.NoError(t, err)

	sent, err := e.SendMessage(alice, convID, "oops")
	require.NoError(t, err)

	err = e.DeleteMessage(bob, sent.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrPermissionDenied))
	require.NoError(t, e.DeleteMessage(alice, sent.ID))

	msgs, err := e.ListMessages(bob, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsDeleted)
	assert.Equal(t, api.DeletedMessagePlaceholder, msgs[0].Content)

	count, err := e.UnreadCount(bob, convID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "deleted messages still count")

	err = e.DeleteMessage(alice, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestCurrentTyper(t *testing.T) {
	e, clock := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob")
	alice, bob := ident("alice"), ident("bob")
	convID, err := e.ResolveDirect(alice, "bob")
	require.NoError(t, err)

	require.NoError(t, e.SetTyping(alice, convID))

	typer, err := e.CurrentTyper(bob, convID)
	require.NoError(t, err)
	require.NotNil(t, typer)
	assert.Equal(t, "alice", typer.UserID)
	assert.Equal(t, "Alice", typer.Name)
	assert.Equal(t, typer.Since.Add(typingWindow), typer.ExpiresAt)

	own, err := e.CurrentTyper(alice, convID)
	require.NoError(t, err)
	assert.Nil(t, own)

	clock.Advance(typer.ExpiresAt.Sub(clock.Now()))
	typer, err = e.CurrentTyper(bob, convID)
	require.NoError(t, err)
	assert.Nil(t, typer)

	require.NoError(t, e.SetTyping(alice, convID))
	require.NoError(t, e.ClearTyping(alice, convID))
	typer, err = e.CurrentTyper(bob, convID)
	require.NoError(t, err)
	assert.Nil(t, typer)
}

func TestTyperWithoutUserRecord(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice")
	convID, err := e.ResolveDirect(ident("alice"), "ghost")
	require.NoError(t, err)

	require.NoError(t, e.SetTyping(ident("ghost"), convID))
	typer, err := e.CurrentTyper(ident("alice"), convID)
	require.NoError(t, err)
	assert.Nil(t, typer)

	mustUpsert(t, e, "ghost")
	require.NoError(t, e.SetTyping(ident("ghost"), convID))
	typer, err = e.CurrentTyper(ident("alice"), convID)
	require.NoError(t, err)
	require.NotNil(t, typer)
	assert.Equal(t, "Ghost", typer.Name)
}

func TestNonMembersSeeNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob", "mallory")
	alice, mallory := ident("alice"), ident("mallory")
	convID, err := e.ResolveDirect(alice, "bob")
	require.NoError(t, err)
	_, err = e.SendMessage(alice, convID, "secret")
	require.NoError(t, err)
	require.NoError(t, e.SetTyping(alice, convID))

	msgs, err := e.ListMessages(mallory, convID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	members, err := e.ListMembers(mallory, convID)
	require.NoError(t, err)
	assert.Empty(t, members)

	typer, err := e.CurrentTyper(mallory, convID)
	require.NoError(t, err)
	assert.Nil(t, typer)

	count, err := e.UnreadCount(mallory, convID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = e.SendMessage(mallory, convID, "let me in")
	assert.True(t, utils.IsErrorCode(err, utils.ErrPermissionDenied))
	assert.True(t, utils.IsErrorCode(e.MarkRead(mallory, convID), utils.ErrPermissionDenied))

	msgs, err = e.ListMessages(alice, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, msgs, "unknown conversations read as empty")
}

func TestGroupMembersAndCascade(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob")
	alice, bob := ident("alice"), ident("bob")

	group, err := e.CreateGroup(alice, "team", "https://img.example.com/team.png", []string{"bob", "unregistered"})
	require.NoError(t, err)

	members, err := e.ListMembers(bob, group)
	require.NoError(t, err)
	require.Len(t, members, 2, "participants without a user record are skipped")
	assert.Equal(t, "alice", members[0].IdentityID)
	assert.True(t, members[0].IsAdmin)
	assert.Equal(t, "bob", members[1].IdentityID)
	assert.False(t, members[1].IsAdmin)

	assert.True(t, utils.IsErrorCode(e.AddMembers(bob, group, []string{"carol"}), utils.ErrPermissionDenied))
	assert.True(t, utils.IsErrorCode(e.KickMember(alice, group, "alice"), utils.ErrValidation))

	_, err = e.SendMessage(bob, group, "hi all")
	require.NoError(t, err)
	require.NoError(t, e.SetTyping(bob, group))
	require.NoError(t, e.MarkRead(alice, group))

	assert.True(t, utils.IsErrorCode(e.DeleteGroup(bob, group), utils.ErrPermissionDenied))
	require.NoError(t, e.DeleteGroup(alice, group))

	convs, err := e.ListConversations(bob)
	require.NoError(t, err)
	assert.Empty(t, convs)

	_, err = e.SendMessage(bob, group, "anyone?")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestReapTyping(t *testing.T) {
	e, clock := newTestEngine(t)
	convID, err := e.ResolveDirect(ident("alice"), "bob")
	require.NoError(t, err)
	require.NoError(t, e.SetTyping(ident("alice"), convID))

	removed, err := e.ReapTyping()
	require.NoError(t, err)
	assert.Zero(t, removed)

	clock.Advance(typingWindow + time.Second)
	removed, err = e.ReapTyping()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestEvaluate(t *testing.T) {
	e, _ := newTestEngine(t)
	mustUpsert(t, e, "alice", "bob")
	convID, err := e.ResolveDirect(ident("alice"), "bob")
	require.NoError(t, err)

	_, err = e.Evaluate(ident("alice"), Query{Kind: "bogus"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))
	_, err = e.Evaluate(ident("alice"), Query{Kind: QueryMessages})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))

	result, err := e.Evaluate(ident("alice"), Query{Kind: QueryUnread, ConversationID: convID})
	require.NoError(t, err)
	assert.Equal(t, 0, result)

	result, err = e.Evaluate(ident("alice"), Query{Kind: QueryCurrentUser})
	require.NoError(t, err)
	user, ok := result.(*models.User)
	require.True(t, ok)
	assert.Equal(t, "alice", user.IdentityID)
}

func TestQueryDependsOn(t *testing.T) {
	conv := uuid.New()
	other := uuid.New()

	tests := []struct {
		name   string
		query  Query
		change actors.Change
		want   bool
	}{
		{"own profile", Query{Kind: QueryCurrentUser}, actors.Change{Topic: actors.TopicUsers, UserID: "alice"}, true},
		{"someone else's profile", Query{Kind: QueryCurrentUser}, actors.Change{Topic: actors.TopicUsers, UserID: "bob"}, false},
		{"directory", Query{Kind: QueryUsers}, actors.Change{Topic: actors.TopicUsers, UserID: "bob"}, true},
		{"sidebar on message", Query{Kind: QueryConversations}, actors.Change{Topic: actors.TopicMessages, ConversationID: other}, true},
		{"sidebar on own receipt", Query{Kind: QueryConversations}, actors.Change{Topic: actors.TopicReceipts, UserID: "alice"}, true},
		{"sidebar on other receipt", Query{Kind: QueryConversations}, actors.Change{Topic: actors.TopicReceipts, UserID: "bob"}, false},
		{"sidebar ignores typing", Query{Kind: QueryConversations}, actors.Change{Topic: actors.TopicTyping, ConversationID: conv}, false},
		{"messages same conversation", Query{Kind: QueryMessages, ConversationID: conv}, actors.Change{Topic: actors.TopicMessages, ConversationID: conv}, true},
		{"messages other conversation", Query{Kind: QueryMessages, ConversationID: conv}, actors.Change{Topic: actors.TopicMessages, ConversationID: other}, false},
		{"typing", Query{Kind: QueryTyping, ConversationID: conv}, actors.Change{Topic: actors.TopicTyping, ConversationID: conv}, true},
		{"typing name change", Query{Kind: QueryTyping, ConversationID: conv}, actors.Change{Topic: actors.TopicUsers, UserID: "bob"}, true},
		{"unread own receipt", Query{Kind: QueryUnread, ConversationID: conv}, actors.Change{Topic: actors.TopicReceipts, ConversationID: conv, UserID: "alice"}, true},
		{"unread other receipt", Query{Kind: QueryUnread, ConversationID: conv}, actors.Change{Topic: actors.TopicReceipts, ConversationID: conv, UserID: "bob"}, false},
		{"members on kick", Query{Kind: QueryMembers, ConversationID: conv}, actors.Change{Topic: actors.TopicConversations, ConversationID: conv, UserID: "bob"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := tt.change
			assert.Equal(t, tt.want, tt.query.DependsOn(&change, "alice"))
		})
	}
}

func TestTypingReaperLoop(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	db := database.NewMemoryDB()
	e := NewEngine(system, Options{DB: db, Clock: clock, Logger: utils.DiscardLogger(), TypingWindow: typingWindow})

	convID, err := e.ResolveDirect(ident("alice"), "bob")
	require.NoError(t, err)
	require.NoError(t, e.SetTyping(ident("alice"), convID))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunTypingReaper(ctx, 10*time.Second) }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool {
		states, err := db.GetTypingStates(context.Background(), convID)
		return err == nil && len(states) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
