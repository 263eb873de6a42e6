// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// directCreateAttempts bounds the insert-or-select loop when a concurrent
// creator deletes the row between our conflict and our read.
const directCreateAttempts = 3

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	DB     *sqlx.DB
	logger *slog.Logger
}

type conversationRow struct {
	ID           uuid.UUID      `db:"id"`
	Kind         string         `db:"kind"`
	Name         sql.NullString `db:"name"`
	Image        sql.NullString `db:"image"`
	DirectKey    sql.NullString `db:"direct_key"`
	LastActivity time.Time      `db:"last_activity"`
	CreatedAt    time.Time      `db:"created_at"`
}

type memberRow struct {
	ConversationID uuid.UUID `db:"conversation_id"`
	UserID         string    `db:"user_id"`
	IsAdmin        bool      `db:"is_admin"`
}

const conversationColumns = "id, kind, name, image, direct_key, last_activity, created_at"
const userColumns = "id, identity_id, name, email, image_url, is_online, created_at, updated_at"
const messageColumns = "id, conversation_id, sender_id, content, created_at, is_deleted"

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, logger *slog.Logger) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Connected to PostgreSQL")

	return &PostgresDB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	p.logger.Info("Closing PostgreSQL connection")
	return p.DB.Close()
}

func (p *PostgresDB) TimestampPrecision() time.Duration { return time.Microsecond }

// InitializeTables applies the embedded goose migrations.
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, p.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, p.DB.DB)
	if err == nil {
		p.logger.Info("Database schema ready", "version", version)
	}
	return nil
}

// --- User Methods ---

// UpsertUser inserts the user or refreshes name, email and online flag on an
// existing row. The stored row is copied back into user.
func (p *PostgresDB) UpsertUser(ctx context.Context, user *models.User) (bool, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, identity_id, name, email, image_url, is_online, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (identity_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, is_online = EXCLUDED.is_online, updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted`

	var row struct {
		models.User
		Inserted bool `db:"inserted"`
	}
	err := p.DB.QueryRowxContext(ctx, query,
		user.ID, user.IdentityID, user.Name, user.Email, user.ImageURL, user.IsOnline, now,
	).StructScan(&row)
	if err != nil {
		return false, utils.NewAppError(utils.ErrDatabase, "failed to upsert user", err)
	}
	*user = row.User
	return row.Inserted, nil
}

func (p *PostgresDB) GetUserByIdentity(ctx context.Context, identityID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE identity_id = $1`
	var user models.User
	err := p.DB.GetContext(ctx, &user, query, identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.NewAppError(utils.ErrNotFound, "user not found: "+identityID, err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by identity", err)
	}
	return &user, nil
}

func (p *PostgresDB) GetUsersByIdentity(ctx context.Context, identityIDs []string) ([]*models.User, error) {
	users := []*models.User{}
	ids := models.NormalizeIDs(identityIDs)
	if len(ids) == 0 {
		return users, nil
	}
	query, args, err := psql.Select(userColumns).From("users").
		Where(squirrel.Eq{"identity_id": ids}).
		OrderBy("identity_id").
		ToSql()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to build users query", err)
	}
	if err := p.DB.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query users by identity", err)
	}
	return users, nil
}

// GetAllUsers fetches all users, newest first.
func (p *PostgresDB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	users := []*models.User{}
	if err := p.DB.SelectContext(ctx, &users, query); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query all users", err)
	}
	return users, nil
}

func (p *PostgresDB) SetUserOnline(ctx context.Context, identityID string, online bool) error {
	query := `UPDATE users SET is_online = $1, updated_at = NOW() WHERE identity_id = $2`
	return p.execOne(ctx, p.DB, "user not found for online update", query, online, identityID)
}

func (p *PostgresDB) UpdateUserAvatar(ctx context.Context, identityID, imageURL string) error {
	query := `UPDATE users SET image_url = $1, updated_at = NOW() WHERE identity_id = $2`
	return p.execOne(ctx, p.DB, "user not found for avatar update", query, imageURL, identityID)
}

// --- Conversation Methods ---

// FindOrCreateDirectConversation returns the conversation already stored for
// the pair, or inserts conv. The unique direct_key makes concurrent creators
// converge on one row.
func (p *PostgresDB) FindOrCreateDirectConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	if conv.Direct == nil {
		return nil, false, utils.NewValidationError("not a direct conversation")
	}
	key := DirectPairKey(conv.Direct.Participants[0], conv.Direct.Participants[1])

	for attempt := 0; attempt < directCreateAttempts; attempt++ {
		result, created, err := p.insertDirect(ctx, conv, key)
		if err != nil {
			return nil, false, err
		}
		if result != nil {
			return result, created, nil
		}
		p.logger.Debug("Direct conversation vanished after conflict, retrying", "attempt", attempt+1)
	}
	return nil, false, utils.NewAppError(utils.ErrDatabase, "failed to resolve direct conversation", nil)
}

func (p *PostgresDB) insertDirect(ctx context.Context, conv *models.Conversation, key string) (*models.Conversation, bool, error) {
	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, utils.NewAppError(utils.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback() // Rollback is ignored if tx is committed.

	var id uuid.UUID
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO conversations (id, kind, direct_key, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (direct_key) DO NOTHING
		RETURNING id`,
		conv.ID, models.DirectKind, key, conv.LastActivity, conv.CreatedAt,
	).Scan(&id)

	switch {
	case err == nil:
		for _, userID := range conv.Direct.Participants {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conversation_members (conversation_id, user_id, is_admin) VALUES ($1, $2, FALSE)`,
				conv.ID, userID,
			); err != nil {
				return nil, false, utils.NewAppError(utils.ErrDatabase, "failed to insert direct member", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, false, utils.NewAppError(utils.ErrDatabase, "failed to commit direct conversation", err)
		}
		return conv.Clone(), true, nil
	case errors.Is(err, sql.ErrNoRows):
		// Conflict: someone else owns the pair.
		var row conversationRow
		err = tx.GetContext(ctx, &row, `SELECT `+conversationColumns+` FROM conversations WHERE direct_key = $1`, key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, utils.NewAppError(utils.ErrDatabase, "failed to load existing direct conversation", err)
		}
		convs, err := p.hydrate(ctx, tx, []conversationRow{row})
		if err != nil {
			return nil, false, err
		}
		return convs[0], false, tx.Commit()
	default:
		return nil, false, utils.NewAppError(utils.ErrDatabase, "failed to insert direct conversation", err)
	}
}

func (p *PostgresDB) CreateGroupConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.Group == nil {
		return utils.NewValidationError("not a group conversation")
	}
	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, kind, name, image, last_activity, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		conv.ID, models.GroupKind, conv.Group.Name, conv.Group.Image, conv.LastActivity, conv.CreatedAt,
	)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to insert group conversation", err)
	}

	insert := psql.Insert("conversation_members").Columns("conversation_id", "user_id", "is_admin")
	for _, userID := range conv.Group.Participants {
		insert = insert.Values(conv.ID, userID, conv.IsAdmin(userID))
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to build member insert", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to insert group members", err)
	}
	return tx.Commit()
}

func (p *PostgresDB) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var row conversationRow
	err := p.DB.GetContext(ctx, &row, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.NewNotFoundError("conversation", id)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation", err)
	}
	convs, err := p.hydrate(ctx, p.DB, []conversationRow{row})
	if err != nil {
		return nil, err
	}
	return convs[0], nil
}

// GetConversationsForUser returns every conversation userID participates in,
// most recently active first.
func (p *PostgresDB) GetConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query, args, err := psql.Select(conversationColumns).From("conversations").
		Where("id IN (SELECT conversation_id FROM conversation_members WHERE user_id = ?)", userID).
		OrderBy("last_activity DESC", "id").
		ToSql()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to build conversations query", err)
	}
	rows := []conversationRow{}
	if err := p.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversations for user", err)
	}
	return p.hydrate(ctx, p.DB, rows)
}

func (p *PostgresDB) AddConversationMembers(ctx context.Context, id uuid.UUID, userIDs []string) error {
	ids := models.NormalizeIDs(userIDs)
	if len(ids) == 0 {
		return nil
	}
	insert := psql.Insert("conversation_members").Columns("conversation_id", "user_id", "is_admin").
		Suffix("ON CONFLICT (conversation_id, user_id) DO NOTHING")
	for _, userID := range ids {
		insert = insert.Values(id, userID, false)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to build member insert", err)
	}
	if _, err := p.DB.ExecContext(ctx, query, args...); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to add conversation members", err)
	}
	return nil
}

func (p *PostgresDB) RemoveConversationMember(ctx context.Context, id uuid.UUID, userID string) error {
	query := `DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`
	return p.execOne(ctx, p.DB, "member not found", query, id, userID)
}

// TouchConversation moves last_activity forward to at. It never moves it back.
func (p *PostgresDB) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	query, args, err := psql.Update("conversations").
		Set("last_activity", squirrel.Expr("GREATEST(last_activity, ?)", at)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to build touch query", err)
	}
	return p.execOne(ctx, p.DB, "conversation not found for touch", query, args...)
}

// DeleteConversation removes the conversation with its members, messages,
// typing states and read receipts in one transaction.
func (p *PostgresDB) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to begin transaction for delete conversation", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"messages", "typing_states", "read_receipts", "conversation_members"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE conversation_id = $1`, id); err != nil {
			return utils.NewAppError(utils.ErrDatabase, "failed to delete from "+table, err)
		}
	}
	if err := p.execOne(ctx, tx, "conversation not found for deletion", `DELETE FROM conversations WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Message Methods ---

func (p *PostgresDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at, is_deleted)
		VALUES (:id, :conversation_id, :sender_id, :content, :created_at, :is_deleted)`
	if _, err := p.DB.NamedExecContext(ctx, query, msg); err != nil {
		if isForeignKeyViolation(err) {
			return utils.NewAppError(utils.ErrNotFound, "conversation not found", err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to save message", err)
	}
	return nil
}

func (p *PostgresDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := p.DB.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.NewNotFoundError("message", id)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query message", err)
	}
	return &msg, nil
}

// GetConversationMessages returns messages oldest first.
func (p *PostgresDB) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id`
	messages := []*models.Message{}
	if err := p.DB.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation messages", err)
	}
	return messages, nil
}

func (p *PostgresDB) GetLastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	var msg models.Message
	err := p.DB.GetContext(ctx, &msg, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query last message", err)
	}
	return &msg, nil
}

func (p *PostgresDB) MarkMessageDeleted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE messages SET is_deleted = TRUE WHERE id = $1`
	return p.execOne(ctx, p.DB, "message not found for deletion", query, id)
}

func (p *PostgresDB) CountUnread(ctx context.Context, conversationID uuid.UUID, viewerID string, after time.Time) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("messages").
		Where(squirrel.And{
			squirrel.Eq{"conversation_id": conversationID},
			squirrel.Gt{"created_at": after},
			squirrel.NotEq{"sender_id": viewerID},
		}).
		ToSql()
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to build unread query", err)
	}
	var count int
	if err := p.DB.GetContext(ctx, &count, query, args...); err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to count unread messages", err)
	}
	return count, nil
}

// --- Typing Methods ---

func (p *PostgresDB) UpsertTypingState(ctx context.Context, state *models.TypingState) error {
	query := `
		INSERT INTO typing_states (conversation_id, user_id, typed_at)
		VALUES (:conversation_id, :user_id, :typed_at)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET typed_at = EXCLUDED.typed_at`
	if _, err := p.DB.NamedExecContext(ctx, query, state); err != nil {
		if isForeignKeyViolation(err) {
			return utils.NewAppError(utils.ErrNotFound, "conversation not found", err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to upsert typing state", err)
	}
	return nil
}

func (p *PostgresDB) DeleteTypingState(ctx context.Context, conversationID uuid.UUID, userID string) error {
	query := `DELETE FROM typing_states WHERE conversation_id = $1 AND user_id = $2`
	if _, err := p.DB.ExecContext(ctx, query, conversationID, userID); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to delete typing state", err)
	}
	return nil
}

// GetTypingStates returns the conversation's rows, most recent keystroke first.
func (p *PostgresDB) GetTypingStates(ctx context.Context, conversationID uuid.UUID) ([]*models.TypingState, error) {
	query := `SELECT conversation_id, user_id, typed_at FROM typing_states WHERE conversation_id = $1 ORDER BY typed_at DESC, user_id`
	states := []*models.TypingState{}
	if err := p.DB.SelectContext(ctx, &states, query, conversationID); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query typing states", err)
	}
	return states, nil
}

func (p *PostgresDB) DeleteTypingStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := p.DB.ExecContext(ctx, `DELETE FROM typing_states WHERE typed_at < $1`, cutoff)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to reap typing states", err)
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

// --- Read Receipt Methods ---

func (p *PostgresDB) UpsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) error {
	query := `
		INSERT INTO read_receipts (conversation_id, user_id, last_read_at)
		VALUES (:conversation_id, :user_id, :last_read_at)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET last_read_at = EXCLUDED.last_read_at`
	if _, err := p.DB.NamedExecContext(ctx, query, receipt); err != nil {
		if isForeignKeyViolation(err) {
			return utils.NewAppError(utils.ErrNotFound, "conversation not found", err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to upsert read receipt", err)
	}
	return nil
}

func (p *PostgresDB) GetReadReceipt(ctx context.Context, conversationID uuid.UUID, userID string) (*models.ReadReceipt, error) {
	query := `SELECT conversation_id, user_id, last_read_at FROM read_receipts WHERE conversation_id = $1 AND user_id = $2`
	var receipt models.ReadReceipt
	err := p.DB.GetContext(ctx, &receipt, query, conversationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query read receipt", err)
	}
	return &receipt, nil
}

// --- Helpers ---

// execOne runs an update or delete that must affect exactly one row.
func (p *PostgresDB) execOne(ctx context.Context, db sqlx.ExecerContext, notFound, query string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to execute update", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to get rows affected after update", err)
	}
	if rowsAffected == 0 {
		return utils.NewAppError(utils.ErrNotFound, notFound, nil)
	}
	return nil
}

// hydrate loads members for rows and assembles conversations in row order.
func (p *PostgresDB) hydrate(ctx context.Context, db sqlx.QueryerContext, rows []conversationRow) ([]*models.Conversation, error) {
	convs := make([]*models.Conversation, 0, len(rows))
	if len(rows) == 0 {
		return convs, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	query, args, err := psql.Select("conversation_id", "user_id", "is_admin").From("conversation_members").
		Where(squirrel.Eq{"conversation_id": ids}).
		OrderBy("conversation_id", "user_id").
		ToSql()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to build members query", err)
	}
	members := []memberRow{}
	if err := sqlx.SelectContext(ctx, db, &members, query, args...); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation members", err)
	}
	byConv := make(map[uuid.UUID][]memberRow, len(rows))
	for _, m := range members {
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m)
	}

	for _, row := range rows {
		conv := &models.Conversation{
			ID:           row.ID,
			Kind:         models.ConversationKind(row.Kind),
			LastActivity: row.LastActivity.UTC(),
			CreatedAt:    row.CreatedAt.UTC(),
		}
		list := byConv[row.ID]
		switch conv.Kind {
		case models.DirectKind:
			if len(list) != 2 {
				return nil, utils.NewAppError(utils.ErrDatabase, fmt.Sprintf("direct conversation %s has %d members", row.ID, len(list)), nil)
			}
			conv.Direct = &models.DirectConversation{Participants: [2]string{list[0].UserID, list[1].UserID}}
		default:
			group := &models.GroupConversation{
				Name:         row.Name.String,
				Image:        row.Image.String,
				Participants: make([]string, 0, len(list)),
				Admins:       []string{},
			}
			for _, m := range list {
				group.Participants = append(group.Participants, m.UserID)
				if m.IsAdmin {
					group.Admins = append(group.Admins, m.UserID)
				}
			}
			conv.Group = group
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// foreignKeyViolation is the SQLSTATE Postgres reports when a row points at a
// conversation that no longer exists.
const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
