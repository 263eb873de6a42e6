package database

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/google/uuid"
)

type typingKey struct {
	conversationID uuid.UUID
	userID         string
}

// MemoryDB keeps every relation in process memory behind one lock. It is the
// store used by tests and by DB_TYPE=memory.
type MemoryDB struct {
	mu sync.RWMutex

	users         map[string]*models.User
	conversations map[uuid.UUID]*models.Conversation
	directKeys    map[string]uuid.UUID
	messages      map[uuid.UUID]*models.Message
	convMessages  map[uuid.UUID][]uuid.UUID
	typing        map[typingKey]*models.TypingState
	receipts      map[typingKey]*models.ReadReceipt
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         make(map[string]*models.User),
		conversations: make(map[uuid.UUID]*models.Conversation),
		directKeys:    make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID]*models.Message),
		convMessages:  make(map[uuid.UUID][]uuid.UUID),
		typing:        make(map[typingKey]*models.TypingState),
		receipts:      make(map[typingKey]*models.ReadReceipt),
	}
}

func (m *MemoryDB) Close(ctx context.Context) error { return nil }

func (m *MemoryDB) TimestampPrecision() time.Duration { return time.Microsecond }

// --- User Methods ---

func (m *MemoryDB) UpsertUser(ctx context.Context, user *models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.users[user.IdentityID]; ok {
		existing.Name = user.Name
		existing.Email = user.Email
		existing.IsOnline = user.IsOnline
		existing.UpdatedAt = now
		*user = *existing
		return false, nil
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	m.users[user.IdentityID] = &stored
	return true, nil
}

func (m *MemoryDB) GetUserByIdentity(ctx context.Context, identityID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[identityID]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "user not found: "+identityID, nil)
	}
	cp := *user
	return &cp, nil
}

func (m *MemoryDB) GetUsersByIdentity(ctx context.Context, identityIDs []string) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*models.User, 0, len(identityIDs))
	for _, id := range models.NormalizeIDs(identityIDs) {
		if user, ok := m.users[id]; ok {
			cp := *user
			users = append(users, &cp)
		}
	}
	return users, nil
}

func (m *MemoryDB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		cp := *user
		users = append(users, &cp)
	}
	slices.SortFunc(users, func(a, b *models.User) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return users, nil
}

func (m *MemoryDB) SetUserOnline(ctx context.Context, identityID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[identityID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "user not found for online update", nil)
	}
	user.IsOnline = online
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryDB) UpdateUserAvatar(ctx context.Context, identityID, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[identityID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "user not found for avatar update", nil)
	}
	user.ImageURL = imageURL
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Conversation Methods ---

func (m *MemoryDB) FindOrCreateDirectConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	if conv.Direct == nil {
		return nil, false, utils.NewValidationError("not a direct conversation")
	}
	key := DirectPairKey(conv.Direct.Participants[0], conv.Direct.Participants[1])

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.directKeys[key]; ok {
		return m.conversations[id].Clone(), false, nil
	}
	m.conversations[conv.ID] = conv.Clone()
	m.directKeys[key] = conv.ID
	return conv.Clone(), true, nil
}

func (m *MemoryDB) CreateGroupConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.Group == nil {
		return utils.NewValidationError("not a group conversation")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations[conv.ID] = conv.Clone()
	return nil
}

func (m *MemoryDB) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, utils.NewNotFoundError("conversation", id)
	}
	return conv.Clone(), nil
}

func (m *MemoryDB) GetConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs := make([]*models.Conversation, 0)
	for _, conv := range m.conversations {
		if conv.HasParticipant(userID) {
			convs = append(convs, conv.Clone())
		}
	}
	slices.SortFunc(convs, func(a, b *models.Conversation) int { return b.LastActivity.Compare(a.LastActivity) })
	return convs, nil
}

func (m *MemoryDB) AddConversationMembers(ctx context.Context, id uuid.UUID, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return utils.NewNotFoundError("conversation", id)
	}
	if conv.Group == nil {
		return utils.NewValidationError("members can only be added to a group")
	}
	conv.Group.Participants = models.NormalizeIDs(append(conv.Group.Participants, userIDs...))
	return nil
}

func (m *MemoryDB) RemoveConversationMember(ctx context.Context, id uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return utils.NewNotFoundError("conversation", id)
	}
	if conv.Group == nil {
		return utils.NewValidationError("members can only be removed from a group")
	}
	remove := func(s string) bool { return s == userID }
	conv.Group.Participants = slices.DeleteFunc(conv.Group.Participants, remove)
	conv.Group.Admins = slices.DeleteFunc(conv.Group.Admins, remove)
	return nil
}

func (m *MemoryDB) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return utils.NewNotFoundError("conversation", id)
	}
	if at.After(conv.LastActivity) {
		conv.LastActivity = at
	}
	return nil
}

func (m *MemoryDB) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return utils.NewNotFoundError("conversation", id)
	}
	for _, msgID := range m.convMessages[id] {
		delete(m.messages, msgID)
	}
	delete(m.convMessages, id)
	for key := range m.typing {
		if key.conversationID == id {
			delete(m.typing, key)
		}
	}
	for key := range m.receipts {
		if key.conversationID == id {
			delete(m.receipts, key)
		}
	}
	if conv.Direct != nil {
		delete(m.directKeys, DirectPairKey(conv.Direct.Participants[0], conv.Direct.Participants[1]))
	}
	delete(m.conversations, id)
	return nil
}

// --- Message Methods ---

func (m *MemoryDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return utils.NewNotFoundError("conversation", msg.ConversationID)
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	m.convMessages[msg.ConversationID] = append(m.convMessages[msg.ConversationID], msg.ID)
	return nil
}

func (m *MemoryDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, utils.NewNotFoundError("message", id)
	}
	cp := *msg
	return &cp, nil
}

func (m *MemoryDB) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.convMessages[conversationID]
	messages := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		cp := *m.messages[id]
		messages = append(messages, &cp)
	}
	slices.SortStableFunc(messages, func(a, b *models.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return messages, nil
}

func (m *MemoryDB) GetLastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	messages, err := m.GetConversationMessages(ctx, conversationID)
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return messages[len(messages)-1], nil
}

func (m *MemoryDB) MarkMessageDeleted(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return utils.NewNotFoundError("message", id)
	}
	msg.IsDeleted = true
	return nil
}

func (m *MemoryDB) CountUnread(ctx context.Context, conversationID uuid.UUID, viewerID string, after time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, id := range m.convMessages[conversationID] {
		msg := m.messages[id]
		if msg.CreatedAt.After(after) && msg.SenderID != viewerID {
			count++
		}
	}
	return count, nil
}

// --- Typing Methods ---

func (m *MemoryDB) UpsertTypingState(ctx context.Context, state *models.TypingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[state.ConversationID]; !ok {
		return utils.NewNotFoundError("conversation", state.ConversationID)
	}
	cp := *state
	m.typing[typingKey{state.ConversationID, state.UserID}] = &cp
	return nil
}

func (m *MemoryDB) DeleteTypingState(ctx context.Context, conversationID uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.typing, typingKey{conversationID, userID})
	return nil
}

// GetTypingStates returns the conversation's rows, most recent keystroke first.
func (m *MemoryDB) GetTypingStates(ctx context.Context, conversationID uuid.UUID) ([]*models.TypingState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]*models.TypingState, 0)
	for key, state := range m.typing {
		if key.conversationID == conversationID {
			cp := *state
			states = append(states, &cp)
		}
	}
	slices.SortFunc(states, func(a, b *models.TypingState) int {
		if c := b.TypedAt.Compare(a.TypedAt); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return states, nil
}

func (m *MemoryDB) DeleteTypingStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, state := range m.typing {
		if state.TypedAt.Before(cutoff) {
			delete(m.typing, key)
			removed++
		}
	}
	return removed, nil
}

// --- Read Receipt Methods ---

func (m *MemoryDB) UpsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[receipt.ConversationID]; !ok {
		return utils.NewNotFoundError("conversation", receipt.ConversationID)
	}
	cp := *receipt
	m.receipts[typingKey{receipt.ConversationID, receipt.UserID}] = &cp
	return nil
}

func (m *MemoryDB) GetReadReceipt(ctx context.Context, conversationID uuid.UUID, userID string) (*models.ReadReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	receipt, ok := m.receipts[typingKey{conversationID, userID}]
	if !ok {
		return nil, nil
	}
	cp := *receipt
	return &cp, nil
}

// counts is used by tests to assert cascade deletes.
func (m *MemoryDB) counts(conversationID uuid.UUID) (messages, typing, receipts int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			messages++
		}
	}
	for key := range m.typing {
		if key.conversationID == conversationID {
			typing++
		}
	}
	for key := range m.receipts {
		if key.conversationID == conversationID {
			receipts++
		}
	}
	return messages, typing, receipts
}
