package actors

import (
	stdctx "context"
	"time"

	"gator-chat/internal/models"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for ReceiptActor
type (
	MarkReadMsg struct {
		UserID         string
		ConversationID uuid.UUID
	}

	// UnreadCountsMsg counts, per conversation, messages from others created
	// after the viewer's watermark.
	UnreadCountsMsg struct {
		ViewerID        string
		ConversationIDs []uuid.UUID
	}
)

// ReceiptActor owns the per-user read watermarks.
type ReceiptActor struct {
	deps *Deps
}

func NewReceiptActor(deps *Deps) actor.Actor {
	return &ReceiptActor{deps: deps}
}

func (a *ReceiptActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.deps.Logger.Debug("ReceiptActor started")
	case *actor.Stopping:
		a.deps.Logger.Debug("ReceiptActor stopping")
	case *MarkReadMsg:
		a.handleMarkRead(context, msg)
	case *UnreadCountsMsg:
		a.handleUnreadCounts(context, msg)
	default:
		a.deps.Logger.Debug("ReceiptActor: unknown message", "type", typeName(msg))
	}
}

func (a *ReceiptActor) handleMarkRead(context actor.Context, msg *MarkReadMsg) {
	ctx, cancel := a.deps.dbContext()
	defer cancel()
	if _, err := requireParticipant(ctx, a.deps.DB, msg.ConversationID, msg.UserID); err != nil {
		respondErr(context, err)
		return
	}

	receipt := &models.ReadReceipt{
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		LastReadAt:     a.deps.Stamps.Next(),
	}
	if err := a.deps.DB.UpsertReadReceipt(ctx, receipt); err != nil {
		respondErr(context, err)
		return
	}
	publish(context, &Change{Topic: TopicReceipts, ConversationID: msg.ConversationID, UserID: msg.UserID})
	context.Respond(true)
}

func (a *ReceiptActor) handleUnreadCounts(context actor.Context, msg *UnreadCountsMsg) {
	startTime := time.Now()
	ctx, cancel := a.deps.dbContext()
	defer cancel()

	counts := make(map[uuid.UUID]int, len(msg.ConversationIDs))
	for _, id := range msg.ConversationIDs {
		count, err := a.unreadCount(ctx, id, msg.ViewerID)
		if err != nil {
			respondErr(context, err)
			return
		}
		counts[id] = count
	}
	a.deps.Metrics.AddOperationLatency("unread_counts", time.Since(startTime))
	context.Respond(counts)
}

// unreadCount treats a missing receipt as a watermark at the zero time.
func (a *ReceiptActor) unreadCount(ctx stdctx.Context, conversationID uuid.UUID, viewerID string) (int, error) {
	receipt, err := a.deps.DB.GetReadReceipt(ctx, conversationID, viewerID)
	if err != nil {
		return 0, err
	}
	var watermark time.Time
	if receipt != nil {
		watermark = receipt.LastReadAt
	}
	return a.deps.DB.CountUnread(ctx, conversationID, viewerID, watermark)
}
