package actors

import (
	"time"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Message types for UserActor
type (
	// UpsertUserMsg creates the user on first contact and refreshes name,
	// email and online state afterwards. ImageURL is only used on creation.
	UpsertUserMsg struct {
		Identity models.Identity
		ImageURL string
	}

	// SetOnlineMsg flips the online flag. Unknown users are ignored.
	SetOnlineMsg struct {
		IdentityID string
		Online     bool
	}

	UpdateAvatarMsg struct {
		IdentityID string
		ImageURL   string
	}

	GetUserMsg struct {
		IdentityID string
	}

	GetUsersMsg struct {
		IdentityIDs []string
	}

	// ListUsersMsg returns every user except ExcludeID.
	ListUsersMsg struct {
		ExcludeID string
	}
)

// UserActor owns the user directory. It keeps a read-through cache of users
// by identity id that every write goes through.
type UserActor struct {
	deps  *Deps
	cache *lru.Cache[string, *models.User] // nil when disabled
}

func NewUserActor(deps *Deps, cacheSize int) actor.Actor {
	a := &UserActor{deps: deps}
	if cacheSize > 0 {
		cache, err := lru.New[string, *models.User](cacheSize)
		if err == nil {
			a.cache = cache
		}
	}
	return a
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.deps.Logger.Debug("UserActor started", "cache", a.cache != nil)
	case *actor.Stopping:
		a.deps.Logger.Debug("UserActor stopping")
	case *UpsertUserMsg:
		a.handleUpsert(context, msg)
	case *SetOnlineMsg:
		a.handleSetOnline(context, msg)
	case *UpdateAvatarMsg:
		a.handleUpdateAvatar(context, msg)
	case *GetUserMsg:
		a.handleGetUser(context, msg)
	case *GetUsersMsg:
		a.handleGetUsers(context, msg)
	case *ListUsersMsg:
		a.handleListUsers(context, msg)
	default:
		a.deps.Logger.Debug("UserActor: unknown message", "type", typeName(msg))
	}
}

func (a *UserActor) handleUpsert(context actor.Context, msg *UpsertUserMsg) {
	startTime := time.Now()
	if msg.Identity.Subject == "" {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	user := &models.User{
		IdentityID: msg.Identity.Subject,
		Name:       msg.Identity.DisplayName(),
		Email:      msg.Identity.Email,
		ImageURL:   msg.ImageURL,
		IsOnline:   true,
	}
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	created, err := a.deps.DB.UpsertUser(ctx, user)
	if err != nil {
		respondErr(context, err)
		return
	}
	if created {
		a.deps.Logger.Info("User created", "identity", user.IdentityID)
	}

	a.remember(user)
	publish(context, &Change{Topic: TopicUsers, UserID: user.IdentityID})
	a.deps.Metrics.AddOperationLatency("upsert_user", time.Since(startTime))
	context.Respond(copyUser(user))
}

func (a *UserActor) handleSetOnline(context actor.Context, msg *SetOnlineMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	err := a.deps.DB.SetUserOnline(ctx, msg.IdentityID, msg.Online)
	if utils.IsErrorCode(err, utils.ErrNotFound) {
		context.Respond(false)
		return
	}
	if err != nil {
		respondErr(context, err)
		return
	}

	if cached, ok := a.cachedUser(msg.IdentityID); ok {
		cached.IsOnline = msg.Online
		a.remember(cached)
	}
	publish(context, &Change{Topic: TopicUsers, UserID: msg.IdentityID})
	context.Respond(true)
}

func (a *UserActor) handleUpdateAvatar(context actor.Context, msg *UpdateAvatarMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if err := a.deps.DB.UpdateUserAvatar(ctx, msg.IdentityID, msg.ImageURL); err != nil {
		respondErr(context, err)
		return
	}
	if a.cache != nil {
		a.cache.Remove(msg.IdentityID)
	}
	user, err := a.load(msg.IdentityID)
	if err != nil {
		respondErr(context, err)
		return
	}
	publish(context, &Change{Topic: TopicUsers, UserID: msg.IdentityID})
	context.Respond(user)
}

func (a *UserActor) handleGetUser(context actor.Context, msg *GetUserMsg) {
	user, err := a.load(msg.IdentityID)
	if err != nil {
		respondErr(context, err)
		return
	}
	context.Respond(user)
}

// handleGetUsers serves what it can from the cache and fetches the rest in
// one storage call. Unknown ids are skipped.
func (a *UserActor) handleGetUsers(context actor.Context, msg *GetUsersMsg) {
	ids := models.NormalizeIDs(msg.IdentityIDs)
	users := make([]*models.User, 0, len(ids))
	missing := make([]string, 0)
	for _, id := range ids {
		if cached, ok := a.cachedUser(id); ok {
			users = append(users, cached)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		ctx, cancel := a.deps.dbContext()
		defer cancel()
		fetched, err := a.deps.DB.GetUsersByIdentity(ctx, missing)
		if err != nil {
			respondErr(context, err)
			return
		}
		for _, user := range fetched {
			a.remember(user)
			users = append(users, copyUser(user))
		}
	}
	sortUsersByIdentity(users)
	context.Respond(users)
}

func (a *UserActor) handleListUsers(context actor.Context, msg *ListUsersMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	all, err := a.deps.DB.GetAllUsers(ctx)
	if err != nil {
		respondErr(context, err)
		return
	}
	others := make([]*models.User, 0, len(all))
	for _, user := range all {
		if user.IdentityID != msg.ExcludeID {
			others = append(others, user)
		}
	}
	context.Respond(others)
}

func (a *UserActor) load(identityID string) (*models.User, error) {
	if cached, ok := a.cachedUser(identityID); ok {
		return cached, nil
	}
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	user, err := a.deps.DB.GetUserByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	a.remember(user)
	return copyUser(user), nil
}

// cachedUser returns a copy of the cached user.
func (a *UserActor) cachedUser(identityID string) (*models.User, bool) {
	if a.cache == nil {
		return nil, false
	}
	user, ok := a.cache.Get(identityID)
	if !ok {
		return nil, false
	}
	return copyUser(user), true
}

func (a *UserActor) remember(user *models.User) {
	if a.cache != nil {
		a.cache.Add(user.IdentityID, copyUser(user))
	}
}

func copyUser(user *models.User) *models.User {
	cp := *user
	return &cp
}
