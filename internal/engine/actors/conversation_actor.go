package actors

import (
	"strings"
	"time"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for ConversationActor
type (
	ResolveDirectMsg struct {
		SelfID  string
		OtherID string
	}

	CreateGroupMsg struct {
		CreatorID string
		Name      string
		Image     string
		MemberIDs []string
	}

	DeleteGroupMsg struct {
		CallerID       string
		ConversationID uuid.UUID
	}

	KickMemberMsg struct {
		CallerID       string
		ConversationID uuid.UUID
		MemberID       string
	}

	AddMembersMsg struct {
		CallerID       string
		ConversationID uuid.UUID
		MemberIDs      []string
	}

	GetConversationMsg struct {
		ConversationID uuid.UUID
	}

	// ListUserConversationsMsg returns the user's conversations, most recently
	// active first.
	ListUserConversationsMsg struct {
		UserID string
	}
)

// ConversationActor owns conversations and their membership. Serialising
// mutations here keeps direct resolution idempotent inside one process; the
// store's unique pair key covers concurrent processes.
type ConversationActor struct {
	deps *Deps
}

func NewConversationActor(deps *Deps) actor.Actor {
	return &ConversationActor{deps: deps}
}

func (a *ConversationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.deps.Logger.Debug("ConversationActor started")
	case *actor.Stopping:
		a.deps.Logger.Debug("ConversationActor stopping")
	case *ResolveDirectMsg:
		a.handleResolveDirect(context, msg)
	case *CreateGroupMsg:
		a.handleCreateGroup(context, msg)
	case *DeleteGroupMsg:
		a.handleDeleteGroup(context, msg)
	case *KickMemberMsg:
		a.handleKickMember(context, msg)
	case *AddMembersMsg:
		a.handleAddMembers(context, msg)
	case *GetConversationMsg:
		a.handleGetConversation(context, msg)
	case *ListUserConversationsMsg:
		a.handleListUserConversations(context, msg)
	default:
		a.deps.Logger.Debug("ConversationActor: unknown message", "type", typeName(msg))
	}
}

func (a *ConversationActor) handleResolveDirect(context actor.Context, msg *ResolveDirectMsg) {
	startTime := time.Now()
	if msg.OtherID == "" {
		context.Respond(utils.NewValidationError("other user id is required"))
		return
	}
	if msg.SelfID == msg.OtherID {
		context.Respond(utils.NewValidationError("cannot start a conversation with yourself"))
		return
	}

	ctx, cancel := a.deps.dbContext()
	defer cancel()
	candidate := models.NewDirectConversation(msg.SelfID, msg.OtherID, a.deps.Stamps.Next())
	conv, created, err := a.deps.DB.FindOrCreateDirectConversation(ctx, candidate)
	if err != nil {
		respondErr(context, err)
		return
	}
	if created {
		a.deps.Logger.Info("Direct conversation created", "conversation", conv.ID)
		publish(context, &Change{Topic: TopicConversations, ConversationID: conv.ID})
	}
	a.deps.Metrics.AddOperationLatency("resolve_direct", time.Since(startTime))
	context.Respond(conv.ID)
}

func (a *ConversationActor) handleCreateGroup(context actor.Context, msg *CreateGroupMsg) {
	startTime := time.Now()
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		context.Respond(utils.NewValidationError("group name is required"))
		return
	}
	members := withoutID(models.NormalizeIDs(msg.MemberIDs), msg.CreatorID)
	if len(members) == 0 {
		context.Respond(utils.NewValidationError("a group needs at least one other member"))
		return
	}

	conv := models.NewGroupConversation(msg.CreatorID, name, strings.TrimSpace(msg.Image), members, a.deps.Stamps.Next())
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if err := a.deps.DB.CreateGroupConversation(ctx, conv); err != nil {
		respondErr(context, err)
		return
	}

	a.deps.Logger.Info("Group created", "conversation", conv.ID, "members", len(conv.Group.Participants))
	publish(context, &Change{Topic: TopicConversations, ConversationID: conv.ID})
	a.deps.Metrics.AddOperationLatency("create_group", time.Since(startTime))
	context.Respond(conv.ID)
}

func (a *ConversationActor) handleDeleteGroup(context actor.Context, msg *DeleteGroupMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if _, err := a.loadGroupAsAdmin(msg.ConversationID, msg.CallerID); err != nil {
		respondErr(context, err)
		return
	}
	if err := a.deps.DB.DeleteConversation(ctx, msg.ConversationID); err != nil {
		respondErr(context, err)
		return
	}

	a.deps.Logger.Info("Group deleted", "conversation", msg.ConversationID, "by", msg.CallerID)
	publish(context, &Change{Topic: TopicConversations, ConversationID: msg.ConversationID})
	context.Respond(true)
}

func (a *ConversationActor) handleKickMember(context actor.Context, msg *KickMemberMsg) {
	conv, err := a.loadGroupAsAdmin(msg.ConversationID, msg.CallerID)
	if err != nil {
		respondErr(context, err)
		return
	}
	if !conv.HasParticipant(msg.MemberID) {
		context.Respond(utils.NewAppError(utils.ErrNotFound, "member not found in group: "+msg.MemberID, nil))
		return
	}
	if conv.IsAdmin(msg.MemberID) && len(conv.Group.Admins) == 1 {
		context.Respond(utils.NewValidationError("cannot remove the only admin of a group"))
		return
	}

	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if err := a.deps.DB.RemoveConversationMember(ctx, msg.ConversationID, msg.MemberID); err != nil {
		respondErr(context, err)
		return
	}

	a.deps.Logger.Info("Member removed", "conversation", msg.ConversationID, "member", msg.MemberID)
	publish(context, &Change{Topic: TopicConversations, ConversationID: msg.ConversationID, UserID: msg.MemberID})
	context.Respond(true)
}

func (a *ConversationActor) handleAddMembers(context actor.Context, msg *AddMembersMsg) {
	members := models.NormalizeIDs(msg.MemberIDs)
	if len(members) == 0 {
		context.Respond(utils.NewValidationError("no members to add"))
		return
	}
	if _, err := a.loadGroupAsAdmin(msg.ConversationID, msg.CallerID); err != nil {
		respondErr(context, err)
		return
	}

	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if err := a.deps.DB.AddConversationMembers(ctx, msg.ConversationID, members); err != nil {
		respondErr(context, err)
		return
	}

	a.deps.Logger.Info("Members added", "conversation", msg.ConversationID, "count", len(members))
	publish(context, &Change{Topic: TopicConversations, ConversationID: msg.ConversationID})
	context.Respond(true)
}

func (a *ConversationActor) handleGetConversation(context actor.Context, msg *GetConversationMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	conv, err := a.deps.DB.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		respondErr(context, err)
		return
	}
	context.Respond(conv)
}

func (a *ConversationActor) handleListUserConversations(context actor.Context, msg *ListUserConversationsMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	convs, err := a.deps.DB.GetConversationsForUser(ctx, msg.UserID)
	if err != nil {
		respondErr(context, err)
		return
	}
	context.Respond(convs)
}

// loadGroupAsAdmin returns the group when callerID administers it.
func (a *ConversationActor) loadGroupAsAdmin(conversationID uuid.UUID, callerID string) (*models.Conversation, error) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	conv, err := a.deps.DB.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, utils.NewValidationError("operation only applies to group conversations")
	}
	if !conv.IsAdmin(callerID) {
		return nil, utils.NewPermissionDeniedError("only group admins can do this")
	}
	return conv, nil
}

func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
