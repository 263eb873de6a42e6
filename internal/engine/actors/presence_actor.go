package actors

import (
	"time"

	"gator-chat/internal/models"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for PresenceActor
type (
	SetTypingMsg struct {
		UserID         string
		ConversationID uuid.UUID
	}

	ClearTypingMsg struct {
		UserID         string
		ConversationID uuid.UUID
	}

	// ActiveTypersMsg returns the fresh typing rows of everyone but ViewerID,
	// most recent first.
	ActiveTypersMsg struct {
		ConversationID uuid.UUID
		ViewerID       string
	}

	// ReapTypingMsg deletes rows that fell out of the typing window.
	ReapTypingMsg struct{}
)

// PresenceActor tracks who is typing where. A row is considered active
// while now - TypedAt < window.
type PresenceActor struct {
	deps   *Deps
	window time.Duration
}

func NewPresenceActor(deps *Deps, window time.Duration) actor.Actor {
	return &PresenceActor{deps: deps, window: window}
}

func (a *PresenceActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.deps.Logger.Debug("PresenceActor started", "window", a.window)
	case *actor.Stopping:
		a.deps.Logger.Debug("PresenceActor stopping")
	case *SetTypingMsg:
		a.handleSetTyping(context, msg)
	case *ClearTypingMsg:
		a.handleClearTyping(context, msg)
	case *ActiveTypersMsg:
		a.handleActiveTypers(context, msg)
	case *ReapTypingMsg:
		a.handleReap(context)
	default:
		a.deps.Logger.Debug("PresenceActor: unknown message", "type", typeName(msg))
	}
}

func (a *PresenceActor) handleSetTyping(context actor.Context, msg *SetTypingMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if _, err := requireParticipant(ctx, a.deps.DB, msg.ConversationID, msg.UserID); err != nil {
		respondErr(context, err)
		return
	}

	state := &models.TypingState{
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		TypedAt:        a.deps.Stamps.Next(),
	}
	if err := a.deps.DB.UpsertTypingState(ctx, state); err != nil {
		respondErr(context, err)
		return
	}
	publish(context, &Change{Topic: TopicTyping, ConversationID: msg.ConversationID, UserID: msg.UserID})
	context.Respond(true)
}

func (a *PresenceActor) handleClearTyping(context actor.Context, msg *ClearTypingMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if err := a.deps.DB.DeleteTypingState(ctx, msg.ConversationID, msg.UserID); err != nil {
		respondErr(context, err)
		return
	}
	publish(context, &Change{Topic: TopicTyping, ConversationID: msg.ConversationID, UserID: msg.UserID})
	context.Respond(true)
}

func (a *PresenceActor) handleActiveTypers(context actor.Context, msg *ActiveTypersMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	states, err := a.deps.DB.GetTypingStates(ctx, msg.ConversationID)
	if err != nil {
		respondErr(context, err)
		return
	}

	now := a.deps.Stamps.Clock().Now()
	active := make([]*models.TypingState, 0, len(states))
	for _, state := range states {
		if state.UserID != msg.ViewerID && now.Sub(state.TypedAt) < a.window {
			active = append(active, state)
		}
	}
	context.Respond(active)
}

func (a *PresenceActor) handleReap(context actor.Context) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	cutoff := a.deps.Stamps.Clock().Now().Add(-a.window)
	removed, err := a.deps.DB.DeleteTypingStatesBefore(ctx, cutoff)
	if err != nil {
		respondErr(context, err)
		return
	}
	if removed > 0 {
		a.deps.Logger.Debug("Reaped stale typing states", "removed", removed)
	}
	context.Respond(removed)
}
