package actors

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gator-chat/internal/database"
	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Deps is what every store actor needs. Stamps must be built with the
// store's TimestampPrecision.
type Deps struct {
	DB      database.DBAdapter
	Stamps  *utils.Timestamper
	Metrics *utils.MetricsCollector
	Logger  *slog.Logger
	Timeout time.Duration // bound on a single storage call
}

func (d *Deps) dbContext() (stdctx.Context, stdctx.CancelFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return stdctx.WithTimeout(stdctx.Background(), timeout)
}

// respondErr replies with err as an AppError so callers can branch on Code.
func respondErr(context actor.Context, err error) {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		context.Respond(appErr)
		return
	}
	context.Respond(utils.NewAppError(utils.ErrDatabase, "storage operation failed", err))
}

// requireParticipant loads the conversation and fails with PermissionDenied
// when userID is not one of its participants.
func requireParticipant(ctx stdctx.Context, db database.DBAdapter, conversationID uuid.UUID, userID string) (*models.Conversation, error) {
	conv, err := db.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, utils.NewPermissionDeniedError("not a participant of this conversation")
	}
	return conv, nil
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}

func sortUsersByIdentity(users []*models.User) {
	slices.SortFunc(users, func(a, b *models.User) int { return strings.Compare(a.IdentityID, b.IdentityID) })
}
