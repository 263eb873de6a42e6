package engine

import (
	"fmt"
	"log/slog"
	"time"

	"gator-chat/internal/api"
	"gator-chat/internal/database"
	"gator-chat/internal/engine/actors"
	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Options configures NewEngine. Zero values fall back to defaults.
type Options struct {
	DB            database.DBAdapter
	Clock         clockwork.Clock
	Metrics       *utils.MetricsCollector
	Logger        *slog.Logger
	Timeout       time.Duration
	TypingWindow  time.Duration
	UserCacheSize int
	AvatarStyle   string
}

// Engine coordinates communication between actors. It resolves the caller's
// identity, routes each operation to the one actor that owns it and turns
// actor replies into typed results.
type Engine struct {
	system  *actor.ActorSystem
	metrics *utils.MetricsCollector
	logger  *slog.Logger
	clock   clockwork.Clock

	timeout      time.Duration
	typingWindow time.Duration
	avatarStyle  string

	userActor         *actor.PID
	conversationActor *actor.PID
	messageActor      *actor.PID
	presenceActor     *actor.PID
	receiptActor      *actor.PID
}

func NewEngine(system *actor.ActorSystem, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.NewMetricsCollector()
	}
	if opts.Logger == nil {
		opts.Logger = utils.DiscardLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.TypingWindow <= 0 {
		opts.TypingWindow = 2 * time.Second
	}

	deps := &actors.Deps{
		DB:      opts.DB,
		Stamps:  utils.NewTimestamper(opts.Clock, opts.DB.TimestampPrecision()),
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
		Timeout: opts.Timeout,
	}
	context := system.Root
	spawn := func(producer func() actor.Actor) *actor.PID {
		return context.Spawn(actor.PropsFromProducer(producer))
	}

	return &Engine{
		system:       system,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		clock:        opts.Clock,
		timeout:      opts.Timeout,
		typingWindow: opts.TypingWindow,
		avatarStyle:  opts.AvatarStyle,

		userActor:         spawn(func() actor.Actor { return actors.NewUserActor(deps, opts.UserCacheSize) }),
		conversationActor: spawn(func() actor.Actor { return actors.NewConversationActor(deps) }),
		messageActor:      spawn(func() actor.Actor { return actors.NewMessageActor(deps) }),
		presenceActor:     spawn(func() actor.Actor { return actors.NewPresenceActor(deps, opts.TypingWindow) }),
		receiptActor:      spawn(func() actor.Actor { return actors.NewReceiptActor(deps) }),
	}
}

// System returns the actor system; change events are published on its
// event stream.
func (e *Engine) System() *actor.ActorSystem {
	return e.system
}

// request sends msg to pid and waits for a reply of type T. AppError replies
// come back as errors.
func request[T any](e *Engine, pid *actor.PID, operation string, msg interface{}) (T, error) {
	var zero T
	startTime := time.Now()
	e.metrics.IncrementRequests(operation)

	result, err := e.system.Root.RequestFuture(pid, msg, e.timeout).Result()
	e.metrics.AddOperationLatency(operation, time.Since(startTime))
	if err != nil {
		e.metrics.IncrementErrors(operation, utils.ErrActorTimeout)
		e.logger.Error("Actor request failed", "operation", operation, "error", err)
		return zero, utils.NewActorTimeoutError(operation, err)
	}

	switch v := result.(type) {
	case *utils.AppError:
		e.metrics.IncrementErrors(operation, v.Code)
		if v.Code == utils.ErrDatabase {
			e.logger.Error("Storage error", "operation", operation, "error", v)
		}
		return zero, v
	case T:
		return v, nil
	}
	return zero, fmt.Errorf("%s: unexpected reply %T", operation, result)
}

// subject returns the caller's identity id or Unauthenticated.
func subject(id *models.Identity) (string, error) {
	if id == nil || id.Subject == "" {
		return "", utils.NewUnauthenticatedError()
	}
	return id.Subject, nil
}

// degrade turns caller errors of a query into its empty result. Only
// infrastructure failures reach the caller.
func degrade[T any](value T, err error, empty T) (T, error) {
	if err == nil {
		return value, nil
	}
	if utils.IsErrorCode(err, utils.ErrNotFound) ||
		utils.IsErrorCode(err, utils.ErrPermissionDenied) ||
		utils.IsErrorCode(err, utils.ErrUnauthenticated) {
		return empty, nil
	}
	return empty, err
}

// visibleConversation loads a conversation the viewer participates in.
func (e *Engine) visibleConversation(viewer string, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := request[*models.Conversation](e, e.conversationActor, "get_conversation", &actors.GetConversationMsg{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewer) {
		return nil, utils.NewPermissionDeniedError("not a participant of this conversation")
	}
	return conv, nil
}

// --- User Directory ---

// UpsertUser records the caller on first contact and marks them online.
// imageURL falls back to the identity's picture, then to a generated avatar.
func (e *Engine) UpsertUser(id *models.Identity, imageURL string) (*models.User, error) {
	if _, err := subject(id); err != nil {
		return nil, err
	}
	if imageURL == "" {
		imageURL = id.PictureURL
	}
	if imageURL == "" {
		imageURL = utils.NewAvatarURL(e.avatarStyle)
	}
	return request[*models.User](e, e.userActor, "upsert_user", &actors.UpsertUserMsg{Identity: *id, ImageURL: imageURL})
}

// SetOffline is a no-op for callers that were never upserted.
func (e *Engine) SetOffline(id *models.Identity) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	return e.SetPresence(sub, false)
}

// SetPresence flips a user's online flag without identity gating. The
// websocket hub calls it on first connect and last disconnect.
func (e *Engine) SetPresence(identityID string, online bool) error {
	_, err := request[bool](e, e.userActor, "set_presence", &actors.SetOnlineMsg{IdentityID: identityID, Online: online})
	return err
}

// RegenerateAvatar replaces the caller's avatar. An empty imageURL generates one.
func (e *Engine) RegenerateAvatar(id *models.Identity, imageURL string) (*models.User, error) {
	sub, err := subject(id)
	if err != nil {
		return nil, err
	}
	if imageURL == "" {
		imageURL = utils.NewAvatarURL(e.avatarStyle)
	}
	return request[*models.User](e, e.userActor, "regenerate_avatar", &actors.UpdateAvatarMsg{IdentityID: sub, ImageURL: imageURL})
}

// CurrentUser returns nil for anonymous or unknown callers.
func (e *Engine) CurrentUser(id *models.Identity) (*models.User, error) {
	sub, err := subject(id)
	if err != nil {
		return nil, nil
	}
	user, err := request[*models.User](e, e.userActor, "current_user", &actors.GetUserMsg{IdentityID: sub})
	return degrade(user, err, nil)
}

// ListOtherUsers returns every user except the caller.
func (e *Engine) ListOtherUsers(id *models.Identity) ([]*models.User, error) {
	sub, err := subject(id)
	if err != nil {
		return []*models.User{}, nil
	}
	users, err := request[[]*models.User](e, e.userActor, "list_users", &actors.ListUsersMsg{ExcludeID: sub})
	return degrade(users, err, []*models.User{})
}

// --- Conversation Store ---

func (e *Engine) ResolveDirect(id *models.Identity, otherUserID string) (uuid.UUID, error) {
	sub, err := subject(id)
	if err != nil {
		return uuid.Nil, err
	}
	return request[uuid.UUID](e, e.conversationActor, "resolve_direct", &actors.ResolveDirectMsg{SelfID: sub, OtherID: otherUserID})
}

func (e *Engine) CreateGroup(id *models.Identity, name, image string, memberIDs []string) (uuid.UUID, error) {
	sub, err := subject(id)
	if err != nil {
		return uuid.Nil, err
	}
	return request[uuid.UUID](e, e.conversationActor, "create_group", &actors.CreateGroupMsg{
		CreatorID: sub,
		Name:      name,
		Image:     image,
		MemberIDs: memberIDs,
	})
}

func (e *Engine) DeleteGroup(id *models.Identity, conversationID uuid.UUID) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	_, err = request[bool](e, e.conversationActor, "delete_group", &actors.DeleteGroupMsg{CallerID: sub, ConversationID: conversationID})
	return err
}

func (e *Engine) KickMember(id *models.Identity, conversationID uuid.UUID, memberID string) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	_, err = request[bool](e, e.conversationActor, "kick_member", &actors.KickMemberMsg{
		CallerID:       sub,
		ConversationID: conversationID,
		MemberID:       memberID,
	})
	return err
}

func (e *Engine) AddMembers(id *models.Identity, conversationID uuid.UUID, memberIDs []string) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	_, err = request[bool](e, e.conversationActor, "add_members", &actors.AddMembersMsg{
		CallerID:       sub,
		ConversationID: conversationID,
		MemberIDs:      memberIDs,
	})
	return err
}

// ListMembers returns the participants of a conversation the caller belongs
// to, annotated with their admin flag. Participants without a user record
// are skipped.
func (e *Engine) ListMembers(id *models.Identity, conversationID uuid.UUID) ([]*api.Member, error) {
	members, err := e.listMembers(id, conversationID)
	return degrade(members, err, []*api.Member{})
}

func (e *Engine) listMembers(id *models.Identity, conversationID uuid.UUID) ([]*api.Member, error) {
	sub, err := subject(id)
	if err != nil {
		return nil, err
	}
	conv, err := e.visibleConversation(sub, conversationID)
	if err != nil {
		return nil, err
	}
	users, err := request[[]*models.User](e, e.userActor, "get_users", &actors.GetUsersMsg{IdentityIDs: conv.ParticipantIDs()})
	if err != nil {
		return nil, err
	}
	members := make([]*api.Member, 0, len(users))
	for _, user := range users {
		members = append(members, &api.Member{User: *user, IsAdmin: conv.IsAdmin(user.IdentityID)})
	}
	return members, nil
}

// ListConversations builds the caller's sidebar: every conversation they
// participate in with the other user, the last message and the unread count,
// most recently active first.
func (e *Engine) ListConversations(id *models.Identity) ([]*api.ConversationSummary, error) {
	summaries, err := e.listConversations(id)
	return degrade(summaries, err, []*api.ConversationSummary{})
}

func (e *Engine) listConversations(id *models.Identity) ([]*api.ConversationSummary, error) {
	sub, err := subject(id)
	if err != nil {
		return nil, err
	}
	convs, err := request[[]*models.Conversation](e, e.conversationActor, "list_conversations", &actors.ListUserConversationsMsg{UserID: sub})
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []*api.ConversationSummary{}, nil
	}

	ids := make([]uuid.UUID, len(convs))
	otherIDs := make([]string, 0, len(convs))
	for i, conv := range convs {
		ids[i] = conv.ID
		if other := conv.OtherParticipant(sub); other != "" {
			otherIDs = append(otherIDs, other)
		}
	}

	lastMessages, err := request[map[uuid.UUID]*models.Message](e, e.messageActor, "last_messages", &actors.GetLastMessagesMsg{ConversationIDs: ids})
	if err != nil {
		return nil, err
	}
	unread, err := request[map[uuid.UUID]int](e, e.receiptActor, "unread_counts", &actors.UnreadCountsMsg{ViewerID: sub, ConversationIDs: ids})
	if err != nil {
		return nil, err
	}
	others, err := request[[]*models.User](e, e.userActor, "get_users", &actors.GetUsersMsg{IdentityIDs: otherIDs})
	if err != nil {
		return nil, err
	}
	usersByID := make(map[string]*models.User, len(others))
	for _, user := range others {
		usersByID[user.IdentityID] = user
	}

	summaries := make([]*api.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := &api.ConversationSummary{
			ID:           conv.ID,
			Kind:         conv.Kind,
			Participants: conv.ParticipantIDs(),
			Admins:       conv.AdminIDs(),
			LastActivity: conv.LastActivity,
			LastMessage:  api.NewMessageView(lastMessages[conv.ID]),
			UnreadCount:  unread[conv.ID],
		}
		if conv.Group != nil {
			summary.Name = conv.Group.Name
			summary.Image = conv.Group.Image
		} else {
			summary.OtherUser = usersByID[conv.OtherParticipant(sub)]
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// --- Message Store ---

func (e *Engine) SendMessage(id *models.Identity, conversationID uuid.UUID, content string) (*api.MessageView, error) {
	sub, err := subject(id)
	if err != nil {
		return nil, err
	}
	msg, err := request[*models.Message](e, e.messageActor, "send_message", &actors.SendMessageMsg{
		SenderID:       sub,
		ConversationID: conversationID,
		Content:        content,
	})
	if err != nil {
		return nil, err
	}
	return api.NewMessageView(msg), nil
}

// ListMessages returns the conversation's messages oldest first with
// deleted content masked.
func (e *Engine) ListMessages(id *models.Identity, conversationID uuid.UUID) ([]*api.MessageView, error) {
	views, err := e.listMessages(id, conversationID)
	return degrade(views, err, []*api.MessageView{})
}

func (e *Engine) listMessages(id *models.Identity, conversationID uuid.UUID) ([]*api.MessageView, error) {
	sub, err := subject(id)
	if err != nil {
		return nil, err
	}
	if _, err := e.visibleConversation(sub, conversationID); err != nil {
		return nil, err
	}
	msgs, err := request[[]*models.Message](e, e.messageActor, "list_messages", &actors.ListMessagesMsg{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	return api.NewMessageViews(msgs), nil
}

func (e *Engine) DeleteMessage(id *models.Identity, messageID uuid.UUID) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	_, err = request[bool](e, e.messageActor, "delete_message", &actors.DeleteMessageMsg{CallerID: sub, MessageID: messageID})
	return err
}

// --- Presence Tracker ---

func (e *Engine) SetTyping(id *models.Identity, conversationID uuid.UUID) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	_, err = request[bool](e, e.presenceActor, "set_typing", &actors.SetTypingMsg{UserID: sub, ConversationID: conversationID})
	return err
}

func (e *Engine) ClearTyping(id *models.Identity, conversationID uuid.UUID) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	_, err = request[bool](e, e.presenceActor, "clear_typing", &actors.ClearTypingMsg{UserID: sub, ConversationID: conversationID})
	return err
}

// CurrentTyper returns who, other than the caller, typed in the conversation
// within the typing window, or nil.
func (e *Engine) CurrentTyper(id *models.Identity, conversationID uuid.UUID) (*api.TypingIndicator, error) {
	indicator, err := e.currentTyper(id, conversationID)
	return degrade(indicator, err, nil)
}

func (e *Engine) currentTyper(id *models.Identity, conversationID uuid.UUID) (*api.TypingIndicator, error) {
	sub, err := subject(id)
	if err != nil {
		return nil, err
	}
	if _, err := e.visibleConversation(sub, conversationID); err != nil {
		return nil, err
	}
	typers, err := request[[]*models.TypingState](e, e.presenceActor, "current_typer", &actors.ActiveTypersMsg{ConversationID: conversationID, ViewerID: sub})
	if err != nil || len(typers) == 0 {
		return nil, err
	}

	// A typer with no user record shows no indicator.
	typer := typers[0]
	user, err := request[*models.User](e, e.userActor, "get_user", &actors.GetUserMsg{IdentityID: typer.UserID})
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &api.TypingIndicator{
		UserID:    typer.UserID,
		Name:      user.Name,
		Since:     typer.TypedAt,
		ExpiresAt: typer.TypedAt.Add(e.typingWindow),
	}, nil
}

// ReapTyping deletes typing rows older than the typing window.
func (e *Engine) ReapTyping() (int64, error) {
	return request[int64](e, e.presenceActor, "reap_typing", &actors.ReapTypingMsg{})
}

// --- Read-Receipt Tracker ---

func (e *Engine) MarkRead(id *models.Identity, conversationID uuid.UUID) error {
	sub, err := subject(id)
	if err != nil {
		return err
	}
	_, err = request[bool](e, e.receiptActor, "mark_read", &actors.MarkReadMsg{UserID: sub, ConversationID: conversationID})
	return err
}

// UnreadCount counts messages from others created after the caller's
// read watermark. Soft-deleted messages count.
func (e *Engine) UnreadCount(id *models.Identity, conversationID uuid.UUID) (int, error) {
	count, err := e.unreadCount(id, conversationID)
	return degrade(count, err, 0)
}

func (e *Engine) unreadCount(id *models.Identity, conversationID uuid.UUID) (int, error) {
	sub, err := subject(id)
	if err != nil {
		return 0, err
	}
	if _, err := e.visibleConversation(sub, conversationID); err != nil {
		return 0, err
	}
	counts, err := request[map[uuid.UUID]int](e, e.receiptActor, "unread_count", &actors.UnreadCountsMsg{
		ViewerID:        sub,
		ConversationIDs: []uuid.UUID{conversationID},
	})
	if err != nil {
		return 0, err
	}
	return counts[conversationID], nil
}
