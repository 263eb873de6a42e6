// internal/database/database.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gator-chat/internal/config"
	"gator-chat/internal/models"

	"github.com/google/uuid"
)

// DBAdapter defines the storage operations the chat engine needs. Every
// method is one atomic unit against the rows it touches; multi-row
// operations (direct dedup-and-create, group deletion) never leave partial
// state behind.
type DBAdapter interface {
	// Connection
	Close(ctx context.Context) error
	// TimestampPrecision is the resolution timestamps survive a round trip with.
	TimestampPrecision() time.Duration

	// User methods
	UpsertUser(ctx context.Context, user *models.User) (bool, error)
	GetUserByIdentity(ctx context.Context, identityID string) (*models.User, error)
	GetUsersByIdentity(ctx context.Context, identityIDs []string) ([]*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	SetUserOnline(ctx context.Context, identityID string, online bool) error
	UpdateUserAvatar(ctx context.Context, identityID, imageURL string) error

	// Conversation methods
	FindOrCreateDirectConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error)
	CreateGroupConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	AddConversationMembers(ctx context.Context, id uuid.UUID, userIDs []string) error
	RemoveConversationMember(ctx context.Context, id uuid.UUID, userID string) error
	TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteConversation(ctx context.Context, id uuid.UUID) error

	// Message methods
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
	GetLastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)
	MarkMessageDeleted(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, conversationID uuid.UUID, viewerID string, after time.Time) (int, error)

	// Typing methods
	UpsertTypingState(ctx context.Context, state *models.TypingState) error
	DeleteTypingState(ctx context.Context, conversationID uuid.UUID, userID string) error
	GetTypingStates(ctx context.Context, conversationID uuid.UUID) ([]*models.TypingState, error)
	DeleteTypingStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Read receipt methods
	UpsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) error
	GetReadReceipt(ctx context.Context, conversationID uuid.UUID, userID string) (*models.ReadReceipt, error)
}

// Open connects to the backend selected by cfg.Type and prepares its schema.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (DBAdapter, error) {
	switch cfg.Type {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		return NewMemoryDB(), nil
	case "mongo":
		db, err := NewMongoDB(ctx, cfg.URI, cfg.Name, logger)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			db.Close(ctx)
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgresDB(cfg.URI, logger)
		if err != nil {
			return nil, err
		}
		if err := db.InitializeTables(ctx); err != nil {
			db.Close(ctx)
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}
