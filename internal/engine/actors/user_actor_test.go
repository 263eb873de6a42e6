package actors

import (
	"testing"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserUpsertLifecycle(t *testing.T) {
	for _, cacheSize := range []int{0, 16} {
		env := newTestEnv(t)
		pid := env.spawn(func() actor.Actor { return NewUserActor(env.deps, cacheSize) })

		first := env.request(t, pid, &UpsertUserMsg{
			Identity: models.Identity{Subject: "alice", Email: "a@example.com"},
			ImageURL: "https://img/first.svg",
		}).(*models.User)
		assert.Equal(t, models.DefaultDisplayName, first.Name, "missing name falls back")
		assert.True(t, first.IsOnline)

		second := env.request(t, pid, &UpsertUserMsg{
			Identity: models.Identity{Subject: "alice", Name: "Alice"},
			ImageURL: "https://img/second.svg",
		}).(*models.User)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Alice", second.Name)
		assert.Equal(t, "", second.Email)
		assert.Equal(t, "https://img/first.svg", second.ImageURL, "avatar only set on creation")

		assert.Len(t, env.published(TopicUsers), 2)
	}
}

func TestUserUpsertRequiresSubject(t *testing.T) {
	env := newTestEnv(t)
	pid := env.spawn(func() actor.Actor { return NewUserActor(env.deps, 8) })
	env.requireCode(t, pid, &UpsertUserMsg{}, utils.ErrUnauthenticated)
}

func TestUserOnlineStateMachine(t *testing.T) {
	env := newTestEnv(t)
	pid := env.spawn(func() actor.Actor { return NewUserActor(env.deps, 8) })

	assert.Equal(t, false, env.request(t, pid, &SetOnlineMsg{IdentityID: "ghost"}), "unknown user is a no-op")

	env.request(t, pid, &UpsertUserMsg{Identity: models.Identity{Subject: "alice"}})
	assert.Equal(t, true, env.request(t, pid, &SetOnlineMsg{IdentityID: "alice", Online: false}))

	user := env.request(t, pid, &GetUserMsg{IdentityID: "alice"}).(*models.User)
	assert.False(t, user.IsOnline, "cache reflects the write")

	env.request(t, pid, &SetOnlineMsg{IdentityID: "alice", Online: true})
	user = env.request(t, pid, &GetUserMsg{IdentityID: "alice"}).(*models.User)
	assert.True(t, user.IsOnline)
}

func TestUserAvatarAndListing(t *testing.T) {
	env := newTestEnv(t)
	pid := env.spawn(func() actor.Actor { return NewUserActor(env.deps, 8) })
	for _, id := range []string{"alice", "bob", "carol"} {
		env.request(t, pid, &UpsertUserMsg{Identity: models.Identity{Subject: id, Name: id}})
	}

	updated := env.request(t, pid, &UpdateAvatarMsg{IdentityID: "bob", ImageURL: "https://img/bob.svg"}).(*models.User)
	assert.Equal(t, "https://img/bob.svg", updated.ImageURL)
	assert.Equal(t, "bob", updated.Name, "avatar change leaves other fields alone")
	env.requireCode(t, pid, &UpdateAvatarMsg{IdentityID: "ghost", ImageURL: "x"}, utils.ErrNotFound)

	others := env.request(t, pid, &ListUsersMsg{ExcludeID: "alice"}).([]*models.User)
	require.Len(t, others, 2)
	for _, u := range others {
		assert.NotEqual(t, "alice", u.IdentityID)
	}

	some := env.request(t, pid, &GetUsersMsg{IdentityIDs: []string{"carol", "ghost", "bob"}}).([]*models.User)
	require.Len(t, some, 2)
	assert.Equal(t, "bob", some[0].IdentityID)
	assert.Equal(t, "carol", some[1].IdentityID)

	env.requireCode(t, pid, &GetUserMsg{IdentityID: "ghost"}, utils.ErrNotFound)
}
